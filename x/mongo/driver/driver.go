// Package driver defines the abstract interfaces the operation execution
// engine depends on (Deployment, Server, Connection) and the error
// taxonomy command replies are decoded into (spec.md §4.6, §7). Concrete
// implementations live in the topology subpackage; keeping the interfaces
// here lets operation depend on them without importing topology, and lets
// topology implement them without importing operation.
package driver

import (
	"context"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/wiremessage"
)

// Deployment represents a set of servers, selectable by a ServerSelector.
type Deployment interface {
	SelectServer(context.Context, description.ServerSelector) (Server, error)
	Kind() description.TopologyKind
	// LocalThreshold returns the latency window server selection keeps
	// candidates within (spec.md §4.3 step 3), zero if unconfigured.
	LocalThreshold() time.Duration
}

// Server represents a single server that operations can be executed
// against, reachable via a checked-out Connection.
type Server interface {
	Connection(context.Context) (Connection, error)
	Description() description.Server
	ProcessError(err error, conn Connection)
	// OperationCount reports the number of operations currently in flight
	// against this server, used by server selection's two-random-choices
	// tie-break (spec.md §4.3 step 6).
	OperationCount() int64
}

// Connection represents a single connection to a server, over which wire
// messages are exchanged.
type Connection interface {
	WriteWireMessage(context.Context, []byte) error
	ReadWireMessage(context.Context) ([]byte, error)
	Description() description.Server
	Close() error
	ID() string
	Address() address.Address
	Stale() bool
}

// Compressor is implemented by Connections that negotiated a wire
// compressor during the handshake.
type Compressor interface {
	CompressWireMessage(src, dst []byte) ([]byte, wiremessage.CompressorID, error)
}

// ErrorProcessor is implemented by types (namely topology.Server) that want
// to learn about errors encountered while using one of their connections,
// to drive SDAM state transitions (spec.md §4.1's error-handling rules).
type ErrorProcessor interface {
	ProcessError(err error, conn Connection)
}
