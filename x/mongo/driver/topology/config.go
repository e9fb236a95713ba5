package topology

import (
	"compress/zlib"
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

// handshakeFunc performs the hello handshake (and, when cfg carries
// credentials, authentication) over a freshly dialed connection, returning
// the resulting server description.
type handshakeFunc func(ctx context.Context, conn *connection) (description.Server, error)

type connectionConfig struct {
	dialer                  Dialer
	tlsConfig               *tls.Config
	disableOCSPEndpointCheck bool
	connectTimeout          time.Duration
	readTimeout             time.Duration
	writeTimeout            time.Duration
	idleTimeout             time.Duration
	compressors             []string
	zlibLevel               int
	handshaker              handshakeFunc
}

// ConnectionOption configures a connection at dial time.
type ConnectionOption func(*connectionConfig)

func newConnectionConfig(opts ...ConnectionOption) *connectionConfig {
	cfg := &connectionConfig{
		dialer:         &net.Dialer{},
		connectTimeout: 30 * time.Second,
		zlibLevel:      zlib.DefaultCompression,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithDialer overrides the network Dialer used to open connections.
func WithDialer(d Dialer) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.dialer = d }
}

// WithTLSConfig enables TLS with the given configuration.
func WithTLSConfig(tc *tls.Config) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.tlsConfig = tc }
}

// WithDisableOCSPEndpointCheck skips querying the certificate's OCSP
// responder directly when the handshake carries no stapled response
// (tlsDisableOCSPEndpointCheck); the stapled-response check still runs.
func WithDisableOCSPEndpointCheck(v bool) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.disableOCSPEndpointCheck = v }
}

// WithConnectTimeout sets the dial timeout.
func WithConnectTimeout(d time.Duration) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.connectTimeout = d }
}

// WithReadWriteTimeout sets both the per-operation read and write deadlines.
func WithReadWriteTimeout(d time.Duration) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.readTimeout, cfg.writeTimeout = d, d }
}

// WithIdleTimeout sets the maximum idle duration before a pooled connection
// is considered expired.
func WithIdleTimeout(d time.Duration) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.idleTimeout = d }
}

// WithCompressors sets the compressor names offered during the handshake,
// in preference order.
func WithCompressors(names []string) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.compressors = names }
}

// WithZlibCompressionLevel sets the zlib compression level used when zlib
// is the negotiated wire compressor; zlib.DefaultCompression otherwise.
func WithZlibCompressionLevel(level int) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.zlibLevel = level }
}

// WithHandshaker sets the function used to perform the hello handshake.
func WithHandshaker(h handshakeFunc) ConnectionOption {
	return func(cfg *connectionConfig) { cfg.handshaker = h }
}

// serverConfig holds the settings a Server's monitor and pool are built
// from.
type serverConfig struct {
	connectionOpts []ConnectionOption
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	minPoolSize       uint64
	maxPoolSize       uint64
	maxConnecting     uint64
	appName           string
	loadBalanced      bool
	authenticator     Authenticator
	serverMonitor     *event.ServerMonitor
	poolMonitor       *event.PoolMonitor
	topologyID        string
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

func newServerConfig(opts ...ServerOption) *serverConfig {
	cfg := &serverConfig{
		heartbeatInterval: 10 * time.Second,
		heartbeatTimeout:  10 * time.Second,
		maxPoolSize:       100,
		maxConnecting:     2,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithConnectionOptions adds ConnectionOptions applied to every connection
// the server's pool creates.
func WithConnectionOptions(opts ...ConnectionOption) ServerOption {
	return func(cfg *serverConfig) { cfg.connectionOpts = append(cfg.connectionOpts, opts...) }
}

// WithHeartbeatInterval sets how often the monitor re-probes an idle
// server.
func WithHeartbeatInterval(d time.Duration) ServerOption {
	return func(cfg *serverConfig) { cfg.heartbeatInterval = d }
}

// WithServerAppName sets the application name sent in the handshake.
func WithServerAppName(name string) ServerOption {
	return func(cfg *serverConfig) { cfg.appName = name }
}

// WithMinPoolSize sets the pool's maintained minimum size.
func WithMinPoolSize(n uint64) ServerOption {
	return func(cfg *serverConfig) { cfg.minPoolSize = n }
}

// WithMaxPoolSize sets the pool's maximum size; 0 means unbounded.
func WithMaxPoolSize(n uint64) ServerOption {
	return func(cfg *serverConfig) { cfg.maxPoolSize = n }
}

// WithMaxConnecting bounds how many connections the pool dials at once.
func WithMaxConnecting(n uint64) ServerOption {
	return func(cfg *serverConfig) { cfg.maxConnecting = n }
}

// WithLoadBalanced marks the server as belonging to a load-balanced
// deployment, which lets the pool's clear bump a per-service_id generation
// (spec.md §4.4) when given a service_id. Connections do not record a
// service_id (connection.serviceID always returns nil), so check-out and
// check-in still compare every connection against the scalar generation.
func WithLoadBalanced(lb bool) ServerOption {
	return func(cfg *serverConfig) { cfg.loadBalanced = lb }
}

// WithAuthenticator sets the Authenticator run after every application
// connection's handshake. Monitor connections never authenticate.
func WithAuthenticator(a Authenticator) ServerOption {
	return func(cfg *serverConfig) { cfg.authenticator = a }
}

// WithServerMonitor sets the monitor notified of this server's SDAM
// lifecycle (opening, description changes, closing).
func WithServerMonitor(m *event.ServerMonitor) ServerOption {
	return func(cfg *serverConfig) { cfg.serverMonitor = m }
}

// WithPoolMonitor sets the monitor notified of this server's connection
// pool events.
func WithPoolMonitor(m *event.PoolMonitor) ServerOption {
	return func(cfg *serverConfig) { cfg.poolMonitor = m }
}

// WithTopologyID tags every event this server publishes with the owning
// Topology's id, so an application monitoring multiple deployments can
// tell their events apart.
func WithTopologyID(id string) ServerOption {
	return func(cfg *serverConfig) { cfg.topologyID = id }
}
