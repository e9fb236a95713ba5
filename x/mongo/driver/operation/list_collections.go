package operation

import (
	"context"
	"errors"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// ListCollections performs a listCollections command.
type ListCollections struct {
	filter   bsoncore.Document
	nameOnly *bool

	database       string
	deployment     driver.Deployment
	readPreference *readpref.ReadPref
	session        *session.Client
	clock          *session.ClusterClock
	monitor        *event.CommandMonitor
}

// NewListCollections constructs a ListCollections for the given filter (nil
// lists every collection).
func NewListCollections(filter bsoncore.Document) *ListCollections {
	return &ListCollections{filter: filter}
}

func (lc *ListCollections) NameOnly(nameOnly bool) *ListCollections { lc.nameOnly = &nameOnly; return lc }
func (lc *ListCollections) Database(db string) *ListCollections    { lc.database = db; return lc }
func (lc *ListCollections) Deployment(d driver.Deployment) *ListCollections {
	lc.deployment = d
	return lc
}
func (lc *ListCollections) ReadPreference(rp *readpref.ReadPref) *ListCollections {
	lc.readPreference = rp
	return lc
}
func (lc *ListCollections) Session(s *session.Client) *ListCollections { lc.session = s; return lc }
func (lc *ListCollections) ClusterClock(c *session.ClusterClock) *ListCollections {
	lc.clock = c
	return lc
}
func (lc *ListCollections) Monitor(m *event.CommandMonitor) *ListCollections {
	lc.monitor = m
	return lc
}

func (lc *ListCollections) command(dst []byte, _ description.Server) ([]byte, error) {
	dst = bsoncore.AppendInt32Element(dst, "listCollections", 1)
	if lc.filter != nil {
		dst = bsoncore.AppendDocumentElement(dst, "filter", lc.filter)
	}
	if lc.nameOnly != nil {
		dst = bsoncore.AppendBooleanElement(dst, "nameOnly", *lc.nameOnly)
	}
	return dst, nil
}

// Execute runs listCollections and returns a BatchCursor over the results.
func (lc *ListCollections) Execute(ctx context.Context) (*BatchCursor, error) {
	if lc.deployment == nil {
		return nil, errors.New("operation: ListCollections requires a Deployment")
	}

	var result CursorResponse
	op := Operation{
		CommandFn:      lc.command,
		Database:       lc.database,
		Deployment:     lc.deployment,
		ReadPreference: lc.readPreference,
		Session:        lc.session,
		Clock:          lc.clock,
		Type:           Read,
		CommandMonitor: lc.monitor,
		ProcessResponseFn: func(info ResponseInfo) error {
			var err error
			result, err = NewCursorResponse(info.ServerResponse, info.Server, info.Server.Description(), "firstBatch")
			return err
		},
	}

	if _, err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return NewBatchCursor(result, lc.deployment, lc.session, lc.clock, 0, 0, nil).Monitor(lc.monitor), nil
}
