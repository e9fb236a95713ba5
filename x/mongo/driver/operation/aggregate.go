package operation

import (
	"context"
	"errors"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/readconcern"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// Aggregate performs an aggregate command (spec.md §4.6). Used both for
// ordinary aggregation pipelines and, with a $changeStream first stage, to
// open a change stream (spec.md §4.7's resumable-cursor requirement).
type Aggregate struct {
	pipeline  bsoncore.Document // a BSON array of pipeline stage documents
	batchSize int32
	maxTimeMS int64

	collection     string // empty runs the pipeline against the database (db-level aggregate)
	database       string
	deployment     driver.Deployment
	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	writeConcern   *writeconcern.WriteConcern
	session        *session.Client
	clock          *session.ClusterClock
	selector       description.ServerSelector
	monitor        *event.CommandMonitor
	retry          RetryMode
}

// NewAggregate constructs an Aggregate for the given collection (empty for
// a database-level aggregate) and pipeline.
func NewAggregate(collection string, pipeline bsoncore.Document) *Aggregate {
	return &Aggregate{collection: collection, pipeline: pipeline}
}

func (a *Aggregate) BatchSize(n int32) *Aggregate                      { a.batchSize = n; return a }
func (a *Aggregate) MaxTimeMS(ms int64) *Aggregate                     { a.maxTimeMS = ms; return a }
func (a *Aggregate) Database(db string) *Aggregate                     { a.database = db; return a }
func (a *Aggregate) Deployment(d driver.Deployment) *Aggregate         { a.deployment = d; return a }
func (a *Aggregate) ReadPreference(rp *readpref.ReadPref) *Aggregate   { a.readPreference = rp; return a }
func (a *Aggregate) ReadConcern(rc *readconcern.ReadConcern) *Aggregate { a.readConcern = rc; return a }
func (a *Aggregate) WriteConcern(wc *writeconcern.WriteConcern) *Aggregate {
	a.writeConcern = wc
	return a
}
func (a *Aggregate) Session(s *session.Client) *Aggregate              { a.session = s; return a }
func (a *Aggregate) ClusterClock(c *session.ClusterClock) *Aggregate   { a.clock = c; return a }
func (a *Aggregate) ServerSelector(s description.ServerSelector) *Aggregate {
	a.selector = s
	return a
}
func (a *Aggregate) Monitor(m *event.CommandMonitor) *Aggregate { a.monitor = m; return a }

// Retry sets the retry behavior applied after a retryable error
// (spec.md §4.6's retryReads), RetryNone by default.
func (a *Aggregate) Retry(r RetryMode) *Aggregate { a.retry = r; return a }

func (a *Aggregate) command(dst []byte, _ description.Server) ([]byte, error) {
	target := a.collection
	if target == "" {
		dst = bsoncore.AppendInt32Element(dst, "aggregate", 1)
	} else {
		dst = bsoncore.AppendStringElement(dst, "aggregate", target)
	}
	dst = bsoncore.AppendArrayElement(dst, "pipeline", a.pipeline)
	cursorIdx, dst2 := bsoncore.AppendDocumentElementStart(dst, "cursor")
	dst = dst2
	if a.batchSize != 0 {
		dst = bsoncore.AppendInt32Element(dst, "batchSize", a.batchSize)
	}
	dst, err := bsoncore.AppendDocumentEnd(dst, cursorIdx)
	if err != nil {
		return nil, err
	}
	if a.maxTimeMS != 0 {
		dst = bsoncore.AppendInt64Element(dst, "maxTimeMS", a.maxTimeMS)
	}
	return dst, nil
}

// Execute runs the aggregate and returns a BatchCursor over its results.
// A writeConcern is only honored for a pipeline that writes (e.g. $out,
// $merge); the caller is responsible for setting one only in that case.
func (a *Aggregate) Execute(ctx context.Context) (*BatchCursor, error) {
	if a.deployment == nil {
		return nil, errors.New("operation: Aggregate requires a Deployment")
	}

	var result CursorResponse
	op := Operation{
		CommandFn:      a.command,
		Database:       a.database,
		Deployment:     a.deployment,
		ReadPreference: a.readPreference,
		ReadConcern:    a.readConcern,
		WriteConcern:   a.writeConcern,
		Session:        a.session,
		Clock:          a.clock,
		Selector:       a.selector,
		Type:           Read,
		RetryMode:      a.retry,
		CommandMonitor: a.monitor,
		ProcessResponseFn: func(info ResponseInfo) error {
			var err error
			result, err = NewCursorResponse(info.ServerResponse, info.Server, info.Server.Description(), "firstBatch")
			return err
		},
	}

	if _, err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return NewBatchCursor(result, a.deployment, a.session, a.clock, a.batchSize, a.maxTimeMS, nil).Monitor(a.monitor), nil
}
