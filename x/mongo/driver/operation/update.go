package operation

import (
	"context"
	"errors"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// UpdateStatement is one entry of an update command's "updates" array
// (spec.md §4.6).
type UpdateStatement struct {
	Filter bsoncore.Document
	Update bsoncore.Document // a modifier document or (for a replacement) a replacement document
	Upsert bool
	Multi  bool
}

func (u UpdateStatement) encode() bsoncore.Document {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDocumentElement(dst, "q", u.Filter)
	dst = bsoncore.AppendDocumentElement(dst, "u", u.Update)
	if u.Upsert {
		dst = bsoncore.AppendBooleanElement(dst, "upsert", true)
	}
	if u.Multi {
		dst = bsoncore.AppendBooleanElement(dst, "multi", true)
	}
	dst, _ = bsoncore.AppendDocumentEnd(dst, idx)
	return dst
}

// Update performs an update command over a batch of update statements
// (spec.md §4.6).
type Update struct {
	updates []UpdateStatement
	ordered *bool

	collection   string
	database     string
	deployment   driver.Deployment
	writeConcern *writeconcern.WriteConcern
	session      *session.Client
	clock        *session.ClusterClock
	retry        RetryMode
	monitor      *event.CommandMonitor
}

// NewUpdate constructs an Update for the given collection and statements.
func NewUpdate(collection string, updates ...UpdateStatement) *Update {
	return &Update{collection: collection, updates: updates}
}

func (u *Update) Ordered(ordered bool) *Update                       { u.ordered = &ordered; return u }
func (u *Update) Database(db string) *Update                         { u.database = db; return u }
func (u *Update) Deployment(d driver.Deployment) *Update             { u.deployment = d; return u }
func (u *Update) WriteConcern(wc *writeconcern.WriteConcern) *Update { u.writeConcern = wc; return u }
func (u *Update) Session(s *session.Client) *Update                 { u.session = s; return u }
func (u *Update) ClusterClock(c *session.ClusterClock) *Update       { u.clock = c; return u }
func (u *Update) Retry(r RetryMode) *Update                          { u.retry = r; return u }
func (u *Update) Monitor(m *event.CommandMonitor) *Update             { u.monitor = m; return u }

func (u *Update) command(dst []byte, _ description.Server) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "update", u.collection)
	if u.ordered != nil {
		dst = bsoncore.AppendBooleanElement(dst, "ordered", *u.ordered)
	}
	return dst, nil
}

// Execute runs the update and returns the raw command reply (n, nModified,
// upserted, writeErrors, writeConcernError).
func (u *Update) Execute(ctx context.Context) (bsoncore.Document, error) {
	if u.deployment == nil {
		return nil, errors.New("operation: Update requires a Deployment")
	}
	docs := make([]bsoncore.Document, len(u.updates))
	for i, stmt := range u.updates {
		docs[i] = stmt.encode()
	}
	// A single-statement, non-multi update is safe to retry (spec.md §4.6's
	// retryable-write rule excludes multi-document writes).
	retry := u.retry
	if len(u.updates) != 1 || u.updates[0].Multi {
		retry = RetryNone
	}

	op := Operation{
		CommandFn:    u.command,
		Database:     u.database,
		Deployment:   u.deployment,
		WriteConcern: u.writeConcern,
		Session:      u.session,
		Clock:        u.clock,
		Type:         Write,
		RetryMode:    retry,
		CommandMonitor: u.monitor,
		Batches:      &Batches{Identifier: "updates", Documents: toRawDocs(docs)},
	}
	return op.Execute(ctx)
}
