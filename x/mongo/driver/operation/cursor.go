package operation

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// CursorResponse is the "cursor" subdocument every cursor-producing command
// (find, aggregate, listCollections, getMore, ...) replies with, parsed out
// of the raw command reply (spec.md §4.7).
type CursorResponse struct {
	Server     driver.Server
	Desc       description.Server
	Database   string
	Collection string
	ID         int64
	Batch      []bsoncore.Document
	// PostBatchResumeToken is the change-stream resume token attached to the
	// cursor reply, if any (spec.md §4.7's resume-token priority order).
	PostBatchResumeToken bsoncore.Document
}

// NewCursorResponse parses response's "cursor" subdocument. batchKey is
// "firstBatch" for an initial command reply, "nextBatch" for a getMore
// reply.
func NewCursorResponse(response bsoncore.Document, srv driver.Server, desc description.Server, batchKey string) (CursorResponse, error) {
	val, err := response.LookupErr("cursor")
	if err != nil {
		return CursorResponse{}, fmt.Errorf("operation: reply carried no cursor field: %w", err)
	}
	cur, ok := val.DocumentOK()
	if !ok {
		return CursorResponse{}, fmt.Errorf("operation: cursor field was not a document")
	}

	id, _ := cur.Lookup("id").AsInt64OK()
	ns, _ := cur.Lookup("ns").StringValueOK()
	db, coll := splitNamespace(ns)

	var batch []bsoncore.Document
	if bv, err := cur.LookupErr(batchKey); err == nil {
		vals, err := bv.Values()
		if err != nil {
			return CursorResponse{}, err
		}
		batch = make([]bsoncore.Document, len(vals))
		for i, v := range vals {
			batch[i] = v.Document()
		}
	}

	var token bsoncore.Document
	if tv, err := cur.LookupErr("postBatchResumeToken"); err == nil {
		token = tv.Document()
	}

	return CursorResponse{
		Server:               srv,
		Desc:                 desc,
		Database:             db,
		Collection:           coll,
		ID:                   id,
		Batch:                batch,
		PostBatchResumeToken: token,
	}, nil
}

func splitNamespace(ns string) (db, coll string) {
	i := strings.IndexByte(ns, '.')
	if i < 0 {
		return ns, ""
	}
	return ns[:i], ns[i+1:]
}

// BatchCursor iterates a server-side cursor: the initial batch first, then
// getMore requests against the owning server as the buffer empties (spec.md
// §4.7's batching contract). Not safe for concurrent use.
type BatchCursor struct {
	deployment driver.Deployment
	server     driver.Server
	desc       description.Server
	database   string
	collection string
	id         int64
	batch      []bsoncore.Document
	current    bsoncore.Document

	batchSize     int32
	maxTimeMS     int64
	comment       bsoncore.Value
	hasComment    bool
	postBatchToken bsoncore.Document

	sess  *session.Client
	clock *session.ClusterClock

	// pinnedConn, when set, is used for every getMore/killCursors instead of
	// checking out a new connection -- load-balanced mode's requirement that
	// a cursor stick to the connection that created it (spec.md §4.7).
	pinnedConn driver.Connection
	monitor    *event.CommandMonitor

	closed bool
}

// NewBatchCursor constructs a BatchCursor from a cursor-producing command's
// response.
func NewBatchCursor(res CursorResponse, deployment driver.Deployment, sess *session.Client, clock *session.ClusterClock, batchSize int32, maxTimeMS int64, pinned driver.Connection) *BatchCursor {
	return &BatchCursor{
		deployment:     deployment,
		server:         res.Server,
		desc:           res.Desc,
		database:       res.Database,
		collection:     res.Collection,
		id:             res.ID,
		batch:          res.Batch,
		postBatchToken: res.PostBatchResumeToken,
		batchSize:      batchSize,
		maxTimeMS:      maxTimeMS,
		sess:           sess,
		clock:          clock,
		pinnedConn:     pinned,
	}
}

// Monitor sets the CommandMonitor notified of every getMore/killCursors this
// cursor issues while iterating.
func (bc *BatchCursor) Monitor(m *event.CommandMonitor) *BatchCursor { bc.monitor = m; return bc }

// ID returns the server-side cursor id; 0 means the cursor is exhausted.
func (bc *BatchCursor) ID() int64 { return bc.id }

// PostBatchResumeToken returns the most recent reply's resume token, or nil
// if none was present.
func (bc *BatchCursor) PostBatchResumeToken() bsoncore.Document { return bc.postBatchToken }

// Next advances to the next document, issuing a getMore when the buffered
// batch is empty and the cursor is not yet exhausted. Returns false once
// there is nothing left to iterate.
func (bc *BatchCursor) Next(ctx context.Context) bool {
	if len(bc.batch) == 0 {
		if bc.id == 0 || bc.closed {
			return false
		}
		if err := bc.getMore(ctx); err != nil {
			return false
		}
		if len(bc.batch) == 0 {
			return false
		}
	}
	bc.current, bc.batch = bc.batch[0], bc.batch[1:]
	return true
}

// Current returns the document Next most recently advanced to.
func (bc *BatchCursor) Current() bsoncore.Document { return bc.current }

func (bc *BatchCursor) getMore(ctx context.Context) error {
	gm := NewGetMore(bc.id, bc.collection).
		Database(bc.database).
		Deployment(bc.deployment).
		Session(bc.sess).
		ClusterClock(bc.clock).
		BatchSize(bc.batchSize).
		MaxTimeMS(bc.maxTimeMS).
		Monitor(bc.monitor)
	gm.pinnedServer = bc.server
	gm.pinnedConn = bc.pinnedConn

	res, err := gm.Execute(ctx)
	if err != nil {
		return err
	}
	bc.id = res.ID
	bc.batch = res.Batch
	bc.postBatchToken = res.PostBatchResumeToken
	bc.server = res.Server
	bc.desc = res.Desc
	return nil
}

// Close kills the underlying server-side cursor if it hasn't been
// exhausted, firing the killCursors command without waiting for it (spec.md
// §4.7's drop semantics: don't block the caller on cursor cleanup).
func (bc *BatchCursor) Close(ctx context.Context) error {
	if bc.closed {
		return nil
	}
	bc.closed = true
	if bc.id == 0 {
		return nil
	}

	kc := NewKillCursors(bc.collection, []int64{bc.id}).
		Database(bc.database).
		Deployment(bc.deployment).
		Monitor(bc.monitor)
	kc.pinnedServer = bc.server
	kc.pinnedConn = bc.pinnedConn

	go func() { _, _ = kc.Execute(context.Background()) }()
	return nil
}
