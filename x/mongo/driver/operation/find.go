package operation

import (
	"context"
	"errors"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/readconcern"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// Find performs a find command (spec.md §4.6).
type Find struct {
	filter     bsoncore.Document
	sort       bsoncore.Document
	projection bsoncore.Document
	limit      int64
	skip       int64
	batchSize  int32
	comment    string

	collection     string
	database       string
	deployment     driver.Deployment
	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	session        *session.Client
	clock          *session.ClusterClock
	selector       description.ServerSelector
	retry          RetryMode
	monitor        *event.CommandMonitor
}

// NewFind constructs a Find for the given collection and filter (a nil
// filter is an empty-document match-everything filter).
func NewFind(collection string, filter bsoncore.Document) *Find {
	return &Find{collection: collection, filter: filter}
}

func (f *Find) Sort(sort bsoncore.Document) *Find             { f.sort = sort; return f }
func (f *Find) Projection(p bsoncore.Document) *Find          { f.projection = p; return f }
func (f *Find) Limit(n int64) *Find                           { f.limit = n; return f }
func (f *Find) Skip(n int64) *Find                            { f.skip = n; return f }
func (f *Find) BatchSize(n int32) *Find                       { f.batchSize = n; return f }
func (f *Find) Comment(c string) *Find                        { f.comment = c; return f }
func (f *Find) Database(db string) *Find                      { f.database = db; return f }
func (f *Find) Deployment(d driver.Deployment) *Find          { f.deployment = d; return f }
func (f *Find) ReadPreference(rp *readpref.ReadPref) *Find    { f.readPreference = rp; return f }
func (f *Find) ReadConcern(rc *readconcern.ReadConcern) *Find { f.readConcern = rc; return f }
func (f *Find) Session(s *session.Client) *Find               { f.session = s; return f }
func (f *Find) ClusterClock(c *session.ClusterClock) *Find    { f.clock = c; return f }
func (f *Find) ServerSelector(s description.ServerSelector) *Find { f.selector = s; return f }
func (f *Find) Retry(r RetryMode) *Find                       { f.retry = r; return f }
func (f *Find) Monitor(m *event.CommandMonitor) *Find         { f.monitor = m; return f }

func (f *Find) command(dst []byte, _ description.Server) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "find", f.collection)
	if f.filter != nil {
		dst = bsoncore.AppendDocumentElement(dst, "filter", f.filter)
	}
	if f.sort != nil {
		dst = bsoncore.AppendDocumentElement(dst, "sort", f.sort)
	}
	if f.projection != nil {
		dst = bsoncore.AppendDocumentElement(dst, "projection", f.projection)
	}
	if f.limit != 0 {
		dst = bsoncore.AppendInt64Element(dst, "limit", f.limit)
	}
	if f.skip != 0 {
		dst = bsoncore.AppendInt64Element(dst, "skip", f.skip)
	}
	if f.batchSize != 0 {
		dst = bsoncore.AppendInt32Element(dst, "batchSize", f.batchSize)
	}
	if f.comment != "" {
		dst = bsoncore.AppendStringElement(dst, "comment", f.comment)
	}
	return dst, nil
}

// Execute runs the find and returns a BatchCursor over its results.
func (f *Find) Execute(ctx context.Context) (*BatchCursor, error) {
	if f.deployment == nil {
		return nil, errors.New("operation: Find requires a Deployment")
	}

	var result CursorResponse
	op := Operation{
		CommandFn:      f.command,
		Database:       f.database,
		Deployment:     f.deployment,
		ReadPreference: f.readPreference,
		ReadConcern:    f.readConcern,
		Session:        f.session,
		Clock:          f.clock,
		Selector:       f.selector,
		Type:           Read,
		RetryMode:      f.retry,
		CommandMonitor: f.monitor,
		ProcessResponseFn: func(info ResponseInfo) error {
			var err error
			result, err = NewCursorResponse(info.ServerResponse, info.Server, info.Server.Description(), "firstBatch")
			return err
		},
	}

	if _, err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return NewBatchCursor(result, f.deployment, f.session, f.clock, f.batchSize, 0, nil).Monitor(f.monitor), nil
}
