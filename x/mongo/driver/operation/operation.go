// Package operation implements the generic command-execution engine
// (spec.md §4.6): build a command document, select and check out a server
// connection, send it as OP_MSG, decode the reply, fold session/cluster-time
// state, and retry once for the codes spec.md marks retryable. Concrete
// operations (Find, InsertMany, ...) are thin CommandFn builders on top of
// this engine; the engine itself never imports topology, the same layering
// driver.Deployment/driver.Server/driver.Connection were designed for.
package operation

import (
	"context"
	"errors"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/readconcern"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/wiremessage"
)

// Type distinguishes a read from a write operation, since spec.md §4.6
// defines a distinct retryable-error set and error label for each.
type Type uint8

const (
	Read Type = iota
	Write
)

// RetryMode controls whether Execute retries once after a retryable error.
type RetryMode uint8

const (
	RetryNone RetryMode = iota
	RetryOnce
)

// latencyWindow is the default local threshold applied after narrowing by
// read preference (spec.md §4.3 step 3).
const latencyWindow = 15 * time.Millisecond

// CommandFn appends a command's fields (everything but the document's outer
// braces) to dst, given the server the command will run against.
type CommandFn func(dst []byte, desc description.Server) ([]byte, error)

// Batches carries a pre-split batch of documents to append as an OP_MSG
// document-sequence section (e.g. "documents" for insert, "deletes" for
// delete), avoiding boxing each one into a BSON array inside the command
// body.
type Batches struct {
	Identifier string
	Documents  [][]byte
}

// ResponseInfo is passed to an Operation's ProcessResponseFn once a reply
// has been read and validated (but before error-extraction, so a
// ProcessResponseFn can inspect a reply that carries both a result and a
// partial error, e.g. a bulk write).
type ResponseInfo struct {
	ServerResponse bsoncore.Document
	Server         driver.Server
	Connection     driver.Connection
}

// Operation is the generic engine every concrete operation in this package
// builds on.
type Operation struct {
	CommandFn         CommandFn
	Database          string
	Deployment        driver.Deployment
	Selector          description.ServerSelector
	ReadPreference    *readpref.ReadPref
	ReadConcern       *readconcern.ReadConcern
	WriteConcern      *writeconcern.WriteConcern
	Session           *session.Client
	Clock             *session.ClusterClock
	Type              Type
	RetryMode         RetryMode
	Batches           *Batches
	ProcessResponseFn func(ResponseInfo) error
	CommandMonitor    *event.CommandMonitor

	// PinnedServer, when set, is used directly instead of running server
	// selection -- a getMore/killCursors must stay on the server that owns
	// the cursor (spec.md §4.7).
	PinnedServer driver.Server
	// PinnedConnection, when set, is used directly instead of checking out
	// a new connection from PinnedServer/the selected server -- the
	// load-balanced-mode requirement that a cursor stick to the connection
	// it was created on (spec.md §4.7).
	PinnedConnection driver.Connection
}

// ErrUnacknowledgedWrite is returned by Execute if the caller retried a
// write whose write concern is unacknowledged; an unacknowledged write has
// no result to retry against (spec.md §4.6).
var ErrUnacknowledgedWrite = errors.New("operation: cannot retry an unacknowledged write")

// Execute runs the operation to completion: select a server, send the
// command, decode the reply, and retry once if both RetryMode and the
// topology/session state permit it (spec.md §4.6's retryable reads/writes).
func (op Operation) Execute(ctx context.Context) (bsoncore.Document, error) {
	srv, conn, err := op.selectAndCheckOut(ctx, "")
	if err != nil {
		return nil, err
	}
	pinned := op.PinnedConnection != nil
	if !pinned {
		defer conn.Close()
	}

	res, err := op.roundTrip(ctx, srv, conn)
	if err == nil || !op.retrySupported(conn.Description()) {
		return res, err
	}
	if !driver.IsNetworkError(err) && !isRetryableServerError(err) {
		return res, err
	}

	failedAddr := conn.Address()
	srv.ProcessError(err, conn)
	if !pinned {
		conn.Close()
	}

	srv2, conn2, selErr := op.selectAndCheckOut(ctx, failedAddr)
	if selErr != nil {
		// The original error is more informative than a selection failure
		// encountered only while trying to retry it.
		return res, err
	}
	if !pinned {
		defer conn2.Close()
	}

	retryRes, retryErr := op.roundTrip(ctx, srv2, conn2)
	if retryErr != nil {
		return retryRes, retryErr
	}
	return retryRes, nil
}

func (op Operation) selectAndCheckOut(ctx context.Context, exclude address.Address) (driver.Server, driver.Connection, error) {
	if op.PinnedConnection != nil {
		srv := op.PinnedServer
		return srv, op.PinnedConnection, nil
	}

	srv := op.PinnedServer
	if srv == nil {
		var err error
		srv, err = op.Deployment.SelectServer(ctx, op.selector(exclude))
		if err != nil {
			return nil, nil, err
		}
	}
	conn, err := srv.Connection(ctx)
	if err != nil {
		return nil, nil, err
	}
	return srv, conn, nil
}

// selector returns the caller-supplied selector if set, else a read
// preference (for reads) or write (for writes) selector narrowed by
// latency window, per spec.md §4.3. When exclude is non-empty (a retry
// after that address just failed), it is appended as a final narrowing
// step -- spec.md §4.3 step 4/§4.6's rule that a retry must avoid the
// server that just failed it, unless doing so would empty the set.
func (op Operation) selector(exclude address.Address) description.ServerSelector {
	var chain []description.ServerSelector
	if op.Selector != nil {
		chain = append(chain, op.Selector)
	} else {
		var base description.ServerSelector
		if op.Type == Write {
			base = description.WriteSelector
		} else {
			base = description.ReadPrefSelector(op.ReadPreference, 10*time.Second)
		}
		chain = append(chain, base, description.LatencySelector(op.localThreshold()))
	}
	if exclude != "" {
		chain = append(chain, description.ExcludeAddressSelector(exclude))
	}
	return description.CompositeSelector(chain)
}

// localThreshold returns the deployment's configured local threshold
// (localThresholdMS), falling back to latencyWindow when the deployment
// hasn't been given one.
func (op Operation) localThreshold() time.Duration {
	if op.Deployment != nil {
		if d := op.Deployment.LocalThreshold(); d > 0 {
			return d
		}
	}
	return latencyWindow
}

// roundTrip builds the command, sends it as a single OP_MSG, reads and
// decodes the reply, and folds session/cluster-time bookkeeping.
func (op Operation) roundTrip(ctx context.Context, srv driver.Server, conn driver.Connection) (bsoncore.Document, error) {
	desc := conn.Description()

	cmd, err := op.buildCommand(desc)
	if err != nil {
		return nil, err
	}

	requestID := wiremessage.NextRequestID()
	msg := wiremessage.NewMsg(requestID, cmd)
	if op.Batches != nil {
		msg.AppendSequence(op.Batches.Identifier, op.Batches.Documents)
	}
	wm, err := msg.Append(nil)
	if err != nil {
		return nil, err
	}

	cmdName := commandName(cmd)
	start := time.Now()
	op.publishStarted(cmd, cmdName, int64(requestID), conn.ID())

	if err := conn.WriteWireMessage(ctx, wm); err != nil {
		wErr := driver.NewConnectionError(conn.ID(), "writing wire message", err)
		op.publishFailed(wErr, cmdName, int64(requestID), conn.ID(), time.Since(start))
		return nil, wErr
	}
	reply, err := conn.ReadWireMessage(ctx)
	if err != nil {
		rErr := driver.NewConnectionError(conn.ID(), "reading wire message", err)
		op.publishFailed(rErr, cmdName, int64(requestID), conn.ID(), time.Since(start))
		return nil, rErr
	}

	res, err := decodeReply(reply)
	if err != nil {
		op.publishFailed(err, cmdName, int64(requestID), conn.ID(), time.Since(start))
		return nil, err
	}

	if uerr := updateClusterTimes(op.Session, op.Clock, res); uerr != nil {
		op.publishFailed(uerr, cmdName, int64(requestID), conn.ID(), time.Since(start))
		return res, uerr
	}
	if uerr := updateOperationTime(op.Session, res); uerr != nil {
		op.publishFailed(uerr, cmdName, int64(requestID), conn.ID(), time.Since(start))
		return res, uerr
	}

	cmdErr := driver.ExtractError(bson.Raw(res))
	if cmdErr != nil {
		srv.ProcessError(cmdErr, conn)
		op.publishFailed(cmdErr, cmdName, int64(requestID), conn.ID(), time.Since(start))
		return res, cmdErr
	}

	if op.ProcessResponseFn != nil {
		if perr := op.ProcessResponseFn(ResponseInfo{ServerResponse: res, Server: srv, Connection: conn}); perr != nil {
			op.publishFailed(perr, cmdName, int64(requestID), conn.ID(), time.Since(start))
			return res, perr
		}
	}
	op.publishSucceeded(res, cmdName, int64(requestID), conn.ID(), time.Since(start))
	return res, nil
}

// commandName returns a command document's first field, which is always
// the command's own name (e.g. "find", "insert").
func commandName(cmd bsoncore.Document) string {
	elements, err := cmd.Elements()
	if err != nil || len(elements) == 0 {
		return ""
	}
	return elements[0].Key()
}

func (op Operation) publishStarted(cmd bsoncore.Document, name string, requestID int64, connID string) {
	if op.CommandMonitor == nil || op.CommandMonitor.Started == nil {
		return
	}
	op.CommandMonitor.Started(&event.CommandStartedEvent{
		Command:      cmd,
		DatabaseName: op.Database,
		CommandName:  name,
		RequestID:    requestID,
		ConnectionID: connID,
	})
}

func (op Operation) publishSucceeded(reply bsoncore.Document, name string, requestID int64, connID string, d time.Duration) {
	if op.CommandMonitor == nil || op.CommandMonitor.Succeeded == nil {
		return
	}
	op.CommandMonitor.Succeeded(&event.CommandSucceededEvent{
		Duration:     d,
		Reply:        reply,
		CommandName:  name,
		RequestID:    requestID,
		ConnectionID: connID,
	})
}

func (op Operation) publishFailed(err error, name string, requestID int64, connID string, d time.Duration) {
	if op.CommandMonitor == nil || op.CommandMonitor.Failed == nil {
		return
	}
	op.CommandMonitor.Failed(&event.CommandFailedEvent{
		Duration:     d,
		Failure:      err.Error(),
		CommandName:  name,
		RequestID:    requestID,
		ConnectionID: connID,
	})
}

// buildCommand assembles the full command document: the caller's CommandFn
// output plus $db, read concern, write concern, session fields, and
// $clusterTime, matching the field order real servers expect loosely (order
// is not actually significant to the wire protocol, but keeping $db early
// mirrors how every command in the wild is constructed).
func (op Operation) buildCommand(desc description.Server) ([]byte, error) {
	idx, dst := bsoncore.AppendDocumentStart(nil)

	dst, err := op.CommandFn(dst, desc)
	if err != nil {
		return nil, err
	}
	dst = bsoncore.AppendStringElement(dst, "$db", op.Database)

	dst, err = addReadConcern(dst, op.ReadConcern, op.Session, desc)
	if err != nil {
		return nil, err
	}
	dst, err = addWriteConcern(dst, op.WriteConcern)
	if err != nil {
		return nil, err
	}
	dst, err = addSession(dst, op.Session, desc)
	if err != nil {
		return nil, err
	}
	dst = addClusterTime(dst, op.Session, op.Clock, desc)

	return bsoncore.AppendDocumentEnd(dst, idx)
}

// retrySupported reports whether this operation's session/topology state
// allows one retry, per spec.md §4.6: the deployment must support sessions,
// the operation must not be inside a transaction, and (for writes) the
// write concern must be acknowledged.
func (op Operation) retrySupported(desc description.Server) bool {
	if op.RetryMode != RetryOnce {
		return false
	}
	if desc.WireVersion == nil || !description.SessionsSupported(desc.WireVersion.Max) {
		return false
	}
	if op.Session != nil && (op.Session.TransactionInProgress() || op.Session.TransactionStarting()) {
		return false
	}
	if op.Type == Write && !writeconcern.AckWrite(op.WriteConcern) {
		return false
	}
	return true
}

func isRetryableServerError(err error) bool {
	if cerr, ok := err.(driver.Error); ok {
		return cerr.Retryable()
	}
	return false
}

// addReadConcern appends a "readConcern" element, honoring a starting
// transaction's pinned read concern and the causally-consistent
// afterClusterTime rule (spec.md §4.6).
func addReadConcern(dst []byte, rc *readconcern.ReadConcern, sess *session.Client, desc description.Server) ([]byte, error) {
	if sess != nil && sess.TransactionStarting() && sess.CurrentRc != nil {
		rc = sess.CurrentRc
	}
	if rc == nil && sess != nil && sess.TransactionStarting() && sess.Consistent && sess.OperationTime != nil {
		rc = readconcern.New()
	}
	if rc == nil {
		return dst, nil
	}

	_, data, err := rc.MarshalBSONValue()
	if err != nil {
		return dst, err
	}

	if desc.WireVersion != nil && description.SessionsSupported(desc.WireVersion.Max) &&
		sess != nil && sess.Consistent && sess.OperationTime != nil {
		data = data[:len(data)-1] // drop the trailing NUL to append another element
		data = bsoncore.AppendTimestampElement(data, "afterClusterTime", sess.OperationTime.T, sess.OperationTime.I)
		data, _ = bsoncore.AppendDocumentEnd(data, 0)
	}

	return bsoncore.AppendDocumentElement(dst, "readConcern", data), nil
}

// addWriteConcern appends a "writeConcern" element, omitting it entirely
// for the zero-value write concern (spec.md §5's empty-write-concern rule).
func addWriteConcern(dst []byte, wc *writeconcern.WriteConcern) ([]byte, error) {
	if wc == nil {
		return dst, nil
	}
	t, data, err := wc.MarshalBSONValue()
	if errors.Is(err, writeconcern.ErrEmptyWriteConcern) {
		return dst, nil
	}
	if err != nil {
		return dst, err
	}
	return append(bsoncore.AppendHeader(dst, t, "writeConcern"), data...), nil
}

// addSession appends "lsid" and, for a running or starting transaction,
// "txnNumber"/"startTransaction"/"autocommit" (spec.md §4.6).
func addSession(dst []byte, sess *session.Client, desc description.Server) ([]byte, error) {
	if sess == nil || desc.WireVersion == nil || !description.SessionsSupported(desc.WireVersion.Max) || desc.SessionTimeout < 0 {
		return dst, nil
	}
	if sess.Terminated {
		return dst, session.ErrSessionEnded
	}

	dst = bsoncore.AppendDocumentElement(dst, "lsid", bsoncore.Document(sess.SessionID))

	if sess.TransactionRunning() || sess.RetryingCommit {
		dst = bsoncore.AppendInt64Element(dst, "txnNumber", sess.TxnNumber)
		if sess.TransactionStarting() {
			dst = bsoncore.AppendBooleanElement(dst, "startTransaction", true)
		}
		dst = bsoncore.AppendBooleanElement(dst, "autocommit", false)
	}

	sess.ApplyCommand(desc)
	return dst, nil
}

// addClusterTime appends the higher of the session's and the deployment
// clock's observed $clusterTime, gossiping cluster time the way every
// sessions-aware command does.
func addClusterTime(dst []byte, sess *session.Client, clock *session.ClusterClock, desc description.Server) []byte {
	if desc.WireVersion == nil || !description.SessionsSupported(desc.WireVersion.Max) {
		return dst
	}
	if clock == nil && sess == nil {
		return dst
	}

	var clusterTime bson.Raw
	if clock != nil {
		clusterTime = clock.GetClusterTime()
	}
	if sess != nil {
		merged, err := session.MaxClusterTime(clusterTime, sess.ClusterTime)
		if err == nil {
			clusterTime = merged
		}
	}
	if len(clusterTime) == 0 {
		return dst
	}

	val, err := clusterTime.LookupErr("$clusterTime")
	if err != nil {
		return dst
	}
	return append(bsoncore.AppendHeader(dst, byte(val.Type), "$clusterTime"), val.Value...)
}

// updateClusterTimes folds a reply's $clusterTime (if any) into the session
// and deployment clock.
func updateClusterTimes(sess *session.Client, clock *session.ClusterClock, res bsoncore.Document) error {
	elem, err := res.LookupErr("$clusterTime")
	if err != nil {
		return nil
	}
	idx, doc := bsoncore.AppendDocumentStart(nil)
	doc = bsoncore.AppendHeader(doc, byte(elem.Type), "$clusterTime")
	doc = append(doc, elem.Data...)
	doc, _ = bsoncore.AppendDocumentEnd(doc, idx)

	if sess != nil {
		if err := sess.AdvanceClusterTime(bson.Raw(doc)); err != nil {
			return err
		}
	}
	if clock != nil {
		return clock.AdvanceClusterTime(bson.Raw(doc))
	}
	return nil
}

// updateOperationTime folds a reply's operationTime (if any) into the
// session, for causal consistency.
func updateOperationTime(sess *session.Client, res bsoncore.Document) error {
	if sess == nil {
		return nil
	}
	elem, err := res.LookupErr("operationTime")
	if err != nil {
		return nil
	}
	t, i := elem.Timestamp()
	return sess.AdvanceOperationTime(&bson.Timestamp{T: t, I: i})
}

// decodeReply extracts and validates the single body document of an OP_MSG
// reply (the only shape this driver's servers ever send back).
func decodeReply(wm []byte) (bsoncore.Document, error) {
	hdr, rest, err := wiremessage.ReadHeader(wm)
	if err != nil {
		return nil, err
	}
	msg, err := wiremessage.ReadMsg(hdr, rest)
	if err != nil {
		return nil, err
	}
	body := msg.BodyDocument()
	if body == nil {
		return nil, errors.New("operation: OP_MSG reply carried no body section")
	}
	doc := bsoncore.Document(body)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}
