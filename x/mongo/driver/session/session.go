package session

import (
	"errors"
	"sync"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/readconcern"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

// ErrSessionEnded occurs when an operation is attempted on a Client whose
// EndSession has already been called.
var ErrSessionEnded = errors.New("session: session has ended")

// ErrNoTransactStarted occurs when CommitTransaction/AbortTransaction is
// called without a preceding StartTransaction.
var ErrNoTransactStarted = errors.New("session: no transaction started")

// ErrTransactInProgress occurs when StartTransaction is called while a
// transaction is already in progress on this session.
var ErrTransactInProgress = errors.New("session: transaction already in progress")

// TransactionState is a session's position in the multi-document
// transaction lifecycle (spec.md §6): None -> Starting -> InProgress ->
// Committed/Aborted, with Starting/InProgress able to return to None only
// via a fresh StartTransaction after a terminal state.
type TransactionState uint8

const (
	None TransactionState = iota
	Starting
	InProgress
	Committed
	Aborted
)

func (s TransactionState) String() string {
	switch s {
	case Starting:
		return "starting"
	case InProgress:
		return "in progress"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "none"
	}
}

// Client is a logical client session: the lsid/txnNumber every command
// within it carries, the causal-consistency and transaction state threaded
// through ApplyCommand, and (for sharded transactions) the mongos/service
// this session is pinned to once a transaction has read or written there.
type Client struct {
	SessionID     bson.Raw
	ClusterTime   bson.Raw
	OperationTime *bson.Timestamp

	Consistent bool // causally consistent session
	Terminated bool

	TxnNumber        int64
	TransactionState TransactionState
	RetryingCommit   bool
	CurrentRc        *readconcern.ReadConcern
	CurrentWc        *writeconcern.WriteConcern
	RecoveryToken    bson.Raw

	PinnedServerAddr address.Address
	PinnedServiceID  *[12]byte

	pool   *Pool
	server *ServerSession
	mu     sync.Mutex
}

// NewClientSession checks out a ServerSession from pool and wraps it in a
// causally-consistent-by-default Client.
func NewClientSession(pool *Pool, sessionTimeoutMinutes int64) *Client {
	ss := pool.GetSession(sessionTimeoutMinutes)
	return &Client{
		SessionID:  ss.SessionID,
		Consistent: true,
		pool:       pool,
		server:     ss,
	}
}

// EndSession returns this session's server session to the pool and marks
// the Client unusable for further commands.
func (c *Client) EndSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Terminated {
		return
	}
	c.Terminated = true
	if c.pool != nil && c.server != nil {
		c.pool.ReturnSession(c.server, 0)
	}
}

// MarkDirty flags the underlying server session as unusable after a
// command on it failed with a network error (spec.md: a dirty session's
// server-side state is unknown and it must never be reused).
func (c *Client) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server != nil {
		c.server.Dirty = true
	}
}

// IncrementTxnNumber advances this session's transaction number, used both
// for starting a new multi-document transaction and for each individual
// retryable write.
func (c *Client) IncrementTxnNumber() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TxnNumber++
}

// StartTransaction begins a new multi-document transaction (spec.md §6):
// advances the transaction number and moves the state to Starting, when no
// transaction is already in progress.
func (c *Client) StartTransaction(rc *readconcern.ReadConcern, wc *writeconcern.WriteConcern) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TransactionState == Starting || c.TransactionState == InProgress {
		return ErrTransactInProgress
	}
	c.TxnNumber++
	c.TransactionState = Starting
	c.CurrentRc = rc
	c.CurrentWc = wc
	c.RetryingCommit = false
	c.PinnedServerAddr = ""
	c.PinnedServiceID = nil
	c.RecoveryToken = nil
	return nil
}

// ApplyCommand transitions Starting to InProgress once the first command
// of a transaction has actually been sent. It does not read desc and does
// not change the session's operation time.
func (c *Client) ApplyCommand(desc description.Server) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TransactionState == Starting {
		c.TransactionState = InProgress
	}
}

// CommitTransaction moves a Starting/InProgress transaction to Committed.
func (c *Client) CommitTransaction() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TransactionState == None {
		return ErrNoTransactStarted
	}
	c.TransactionState = Committed
	return nil
}

// AbortTransaction moves a Starting/InProgress transaction to Aborted.
func (c *Client) AbortTransaction() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TransactionState != Starting && c.TransactionState != InProgress {
		return ErrNoTransactStarted
	}
	c.TransactionState = Aborted
	return nil
}

// ClearTransactionState resets a terminal (Committed/Aborted) transaction
// back to None so the session can start a fresh one.
func (c *Client) ClearTransactionState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TransactionState = None
}

// TransactionRunning reports whether a transaction has been started and not
// yet committed or aborted.
func (c *Client) TransactionRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TransactionState == Starting || c.TransactionState == InProgress
}

// TransactionStarting reports whether this is the first command of a new
// transaction (the one that must carry startTransaction:true).
func (c *Client) TransactionStarting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TransactionState == Starting
}

// TransactionInProgress reports whether a transaction's first command has
// already been sent.
func (c *Client) TransactionInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TransactionState == InProgress
}

// PinToServer pins a sharded transaction's subsequent commands to a
// specific mongos (spec.md §6.2: every statement of a sharded transaction
// must reach the same mongos to avoid opening a distinct transaction
// context on each).
func (c *Client) PinToServer(addr address.Address, serviceID *[12]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PinnedServerAddr = addr
	c.PinnedServiceID = serviceID
}

// Unpin clears a sharded transaction's server pin, called once the
// transaction has committed, aborted, or hit an error requiring
// re-selection.
func (c *Client) Unpin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PinnedServerAddr = ""
	c.PinnedServiceID = nil
}

// AdvanceClusterTime merges an observed $clusterTime document into this
// session's view, keeping whichever compares greater.
func (c *Client) AdvanceClusterTime(clusterTime bson.Raw) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	merged, err := MaxClusterTime(c.ClusterTime, clusterTime)
	if err != nil {
		return err
	}
	c.ClusterTime = merged
	return nil
}

// AdvanceOperationTime records the latest operationTime this session has
// observed, for causally consistent reads.
func (c *Client) AdvanceOperationTime(ts *bson.Timestamp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts == nil {
		return nil
	}
	if c.OperationTime == nil || ts.Compare(*c.OperationTime) > 0 {
		c.OperationTime = ts
	}
	return nil
}

// UpdateRecoveryToken stores the recoveryToken a sharded transaction's
// commit/abort reply carried, so a subsequent commitTransaction retry can
// resume at the right shard set.
func (c *Client) UpdateRecoveryToken(token bson.Raw) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(token) > 0 {
		c.RecoveryToken = token
	}
}
