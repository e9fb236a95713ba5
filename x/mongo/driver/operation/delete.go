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

// DeleteStatement is one entry of a delete command's "deletes" array.
type DeleteStatement struct {
	Filter bsoncore.Document
	Limit  int32 // 0 deletes all matches, 1 deletes at most one
}

func (d DeleteStatement) encode() bsoncore.Document {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendDocumentElement(dst, "q", d.Filter)
	dst = bsoncore.AppendInt32Element(dst, "limit", d.Limit)
	dst, _ = bsoncore.AppendDocumentEnd(dst, idx)
	return dst
}

// Delete performs a delete command over a batch of delete statements
// (spec.md §4.6).
type Delete struct {
	deletes []DeleteStatement
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

// NewDelete constructs a Delete for the given collection and statements.
func NewDelete(collection string, deletes ...DeleteStatement) *Delete {
	return &Delete{collection: collection, deletes: deletes}
}

func (d *Delete) Ordered(ordered bool) *Delete                       { d.ordered = &ordered; return d }
func (d *Delete) Database(db string) *Delete                         { d.database = db; return d }
func (d *Delete) Deployment(dep driver.Deployment) *Delete           { d.deployment = dep; return d }
func (d *Delete) WriteConcern(wc *writeconcern.WriteConcern) *Delete { d.writeConcern = wc; return d }
func (d *Delete) Session(s *session.Client) *Delete                  { d.session = s; return d }
func (d *Delete) ClusterClock(c *session.ClusterClock) *Delete       { d.clock = c; return d }
func (d *Delete) Retry(r RetryMode) *Delete                          { d.retry = r; return d }
func (d *Delete) Monitor(m *event.CommandMonitor) *Delete             { d.monitor = m; return d }

func (d *Delete) command(dst []byte, _ description.Server) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "delete", d.collection)
	if d.ordered != nil {
		dst = bsoncore.AppendBooleanElement(dst, "ordered", *d.ordered)
	}
	return dst, nil
}

// Execute runs the delete and returns the raw command reply.
func (d *Delete) Execute(ctx context.Context) (bsoncore.Document, error) {
	if d.deployment == nil {
		return nil, errors.New("operation: Delete requires a Deployment")
	}
	docs := make([]bsoncore.Document, len(d.deletes))
	for i, stmt := range d.deletes {
		docs[i] = stmt.encode()
	}
	retry := d.retry
	if len(d.deletes) != 1 || d.deletes[0].Limit != 1 {
		retry = RetryNone
	}

	op := Operation{
		CommandFn:    d.command,
		Database:     d.database,
		Deployment:   d.deployment,
		WriteConcern: d.writeConcern,
		Session:      d.session,
		Clock:        d.clock,
		Type:         Write,
		RetryMode:    retry,
		CommandMonitor: d.monitor,
		Batches:      &Batches{Identifier: "deletes", Documents: toRawDocs(docs)},
	}
	return op.Execute(ctx)
}
