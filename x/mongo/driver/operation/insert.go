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

// defaultMaxWriteBatchSize is used when a server's hello reply hasn't
// reported maxWriteBatchSize yet (e.g. the very first write against a
// freshly discovered server).
const defaultMaxWriteBatchSize = 100000

// Insert performs an insert command over a batch of documents (spec.md
// §4.6), splitting across maxWriteBatchSize into multiple insert commands
// when the batch is larger than the selected server allows.
type Insert struct {
	documents []bsoncore.Document
	ordered   *bool

	collection   string
	database     string
	deployment   driver.Deployment
	writeConcern *writeconcern.WriteConcern
	session      *session.Client
	clock        *session.ClusterClock
	retry        RetryMode
	monitor      *event.CommandMonitor
}

// NewInsert constructs an Insert for the given collection and documents.
func NewInsert(collection string, documents ...bsoncore.Document) *Insert {
	return &Insert{collection: collection, documents: documents}
}

func (i *Insert) Ordered(ordered bool) *Insert                     { i.ordered = &ordered; return i }
func (i *Insert) Database(db string) *Insert                       { i.database = db; return i }
func (i *Insert) Deployment(d driver.Deployment) *Insert           { i.deployment = d; return i }
func (i *Insert) WriteConcern(wc *writeconcern.WriteConcern) *Insert { i.writeConcern = wc; return i }
func (i *Insert) Session(s *session.Client) *Insert                { i.session = s; return i }
func (i *Insert) ClusterClock(c *session.ClusterClock) *Insert     { i.clock = c; return i }
func (i *Insert) Retry(r RetryMode) *Insert                        { i.retry = r; return i }
func (i *Insert) Monitor(m *event.CommandMonitor) *Insert          { i.monitor = m; return i }

func (i *Insert) command(dst []byte, _ description.Server) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "insert", i.collection)
	if i.ordered != nil {
		dst = bsoncore.AppendBooleanElement(dst, "ordered", *i.ordered)
	}
	return dst, nil
}

// Execute runs the insert and returns the raw command reply of the last
// batch sent (n, writeErrors, writeConcernError). A document slice larger
// than the selected server's maxWriteBatchSize is split into multiple
// insert commands; the caller never needs to know the limit in advance.
func (i *Insert) Execute(ctx context.Context) (bsoncore.Document, error) {
	if i.deployment == nil {
		return nil, errors.New("operation: Insert requires a Deployment")
	}

	maxBatch := defaultMaxWriteBatchSize
	if srv, err := i.deployment.SelectServer(ctx, description.WriteSelector); err == nil {
		if n := srv.Description().MaxWriteBatchSize; n > 0 {
			maxBatch = int(n)
		}
	}

	docs := toRawDocs(i.documents)
	if len(docs) == 0 {
		return i.executeBatch(ctx, nil)
	}

	var result bsoncore.Document
	for start := 0; start < len(docs); start += maxBatch {
		end := start + maxBatch
		if end > len(docs) {
			end = len(docs)
		}
		res, err := i.executeBatch(ctx, docs[start:end])
		if err != nil {
			return res, err
		}
		result = res
	}
	return result, nil
}

func (i *Insert) executeBatch(ctx context.Context, batch []bsoncore.Document) (bsoncore.Document, error) {
	op := Operation{
		CommandFn:      i.command,
		Database:       i.database,
		Deployment:     i.deployment,
		WriteConcern:   i.writeConcern,
		Session:        i.session,
		Clock:          i.clock,
		Type:           Write,
		RetryMode:      i.retry,
		CommandMonitor: i.monitor,
		Batches:        &Batches{Identifier: "documents", Documents: batch},
	}
	return op.Execute(ctx)
}
