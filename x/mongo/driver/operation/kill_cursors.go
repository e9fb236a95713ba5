package operation

import (
	"context"
	"strconv"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

// KillCursors performs a killCursors command, releasing server-side cursor
// resources without blocking the caller on the reply (spec.md §4.7's drop
// semantics).
type KillCursors struct {
	collection string
	ids        []int64
	database   string
	deployment driver.Deployment

	pinnedServer driver.Server
	pinnedConn   driver.Connection
	monitor      *event.CommandMonitor
}

// NewKillCursors constructs a KillCursors for the given collection and
// cursor ids.
func NewKillCursors(collection string, ids []int64) *KillCursors {
	return &KillCursors{collection: collection, ids: ids}
}

func (kc *KillCursors) Database(db string) *KillCursors             { kc.database = db; return kc }
func (kc *KillCursors) Deployment(d driver.Deployment) *KillCursors { kc.deployment = d; return kc }
func (kc *KillCursors) Monitor(m *event.CommandMonitor) *KillCursors { kc.monitor = m; return kc }

func (kc *KillCursors) command(dst []byte, _ description.Server) ([]byte, error) {
	dst = bsoncore.AppendStringElement(dst, "killCursors", kc.collection)
	aidx, dst2 := bsoncore.AppendArrayElementStart(dst, "cursors")
	dst = dst2
	for i, id := range kc.ids {
		dst = bsoncore.AppendInt64Element(dst, strconv.Itoa(i), id)
	}
	dst, err := bsoncore.AppendArrayEnd(dst, aidx)
	return dst, err
}

// Execute runs the killCursors command, discarding the result -- the caller
// only needs to know the cursor was asked to close.
func (kc *KillCursors) Execute(ctx context.Context) (bsoncore.Document, error) {
	if kc.deployment == nil && kc.pinnedServer == nil {
		return nil, nil
	}
	op := Operation{
		CommandFn:        kc.command,
		Database:         kc.database,
		Deployment:       kc.deployment,
		Type:             Write,
		PinnedServer:     kc.pinnedServer,
		PinnedConnection: kc.pinnedConn,
		CommandMonitor:   kc.monitor,
	}
	return op.Execute(ctx)
}
