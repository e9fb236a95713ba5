package operation

import (
	"context"
	"errors"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// GetMore performs a getMore command against the server that owns a
// cursor, continuing iteration as the initial batch empties (spec.md §4.7).
type GetMore struct {
	cursorID   int64
	collection string
	database   string
	deployment driver.Deployment
	session    *session.Client
	clock      *session.ClusterClock
	batchSize  int32
	maxTimeMS  int64

	pinnedServer driver.Server
	pinnedConn   driver.Connection
	monitor      *event.CommandMonitor
}

// NewGetMore constructs a GetMore for the given cursor id and collection.
func NewGetMore(cursorID int64, collection string) *GetMore {
	return &GetMore{cursorID: cursorID, collection: collection}
}

func (gm *GetMore) Database(db string) *GetMore                       { gm.database = db; return gm }
func (gm *GetMore) Deployment(d driver.Deployment) *GetMore           { gm.deployment = d; return gm }
func (gm *GetMore) Session(s *session.Client) *GetMore                { gm.session = s; return gm }
func (gm *GetMore) ClusterClock(c *session.ClusterClock) *GetMore     { gm.clock = c; return gm }
func (gm *GetMore) BatchSize(n int32) *GetMore                        { gm.batchSize = n; return gm }
func (gm *GetMore) MaxTimeMS(ms int64) *GetMore                       { gm.maxTimeMS = ms; return gm }
func (gm *GetMore) Monitor(m *event.CommandMonitor) *GetMore          { gm.monitor = m; return gm }

func (gm *GetMore) command(dst []byte, _ description.Server) ([]byte, error) {
	dst = bsoncore.AppendInt64Element(dst, "getMore", gm.cursorID)
	dst = bsoncore.AppendStringElement(dst, "collection", gm.collection)
	if gm.batchSize != 0 {
		dst = bsoncore.AppendInt32Element(dst, "batchSize", gm.batchSize)
	}
	if gm.maxTimeMS != 0 {
		dst = bsoncore.AppendInt64Element(dst, "maxTimeMS", gm.maxTimeMS)
	}
	return dst, nil
}

// Execute runs the getMore and parses the resulting cursor batch.
func (gm *GetMore) Execute(ctx context.Context) (CursorResponse, error) {
	if gm.deployment == nil && gm.pinnedServer == nil {
		return CursorResponse{}, errors.New("operation: GetMore requires a Deployment or a pinned server")
	}

	var result CursorResponse
	op := Operation{
		CommandFn:    gm.command,
		Database:     gm.database,
		Deployment:   gm.deployment,
		Session:      gm.session,
		Clock:        gm.clock,
		Type:         Read,
		PinnedServer: gm.pinnedServer,
		PinnedConnection: gm.pinnedConn,
		CommandMonitor: gm.monitor,
		ProcessResponseFn: func(info ResponseInfo) error {
			var err error
			result, err = NewCursorResponse(info.ServerResponse, info.Server, info.Server.Description(), "nextBatch")
			return err
		},
	}

	if _, err := op.Execute(ctx); err != nil {
		return CursorResponse{}, err
	}
	return result, nil
}
