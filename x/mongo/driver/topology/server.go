package topology

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

const minHeartbeatInterval = 500 * time.Millisecond

// ErrServerClosed occurs when an attempt to check out a connection is made
// after the server has been disconnected.
var ErrServerClosed = errors.New("topology: server is closed")

// ErrServerConnected occurs when Connect is called more than once.
var ErrServerConnected = errors.New("topology: server is already connected")

// ErrSubscribeAfterClosed occurs when Subscribe is called on a disconnected
// server.
var ErrSubscribeAfterClosed = errors.New("topology: subscribe called after server closed")

const (
	serverDisconnected int32 = iota
	serverDisconnecting
	serverConnected
)

// updateTopologyCallback lets a Topology fold a server's new description
// into the deployment-wide one (via the fsm) and hand back the description
// that should actually be stored and published to this server's
// subscribers; set by Topology.addServer.
type updateTopologyCallback func(description.Server) description.Server

// Server monitors a single mongod/mongos: a background goroutine sends
// periodic hello commands over a dedicated monitoring connection and folds
// the result into this server's published description, while application
// connections are served from a separate pool.
type Server struct {
	cfg   *serverConfig
	addr  address.Address
	state int32

	monitor    *event.ServerMonitor
	topologyID string

	pool *pool

	done          chan struct{}
	checkNow      chan struct{}
	disconnecting chan struct{}
	closewg       sync.WaitGroup

	desc                   atomic.Value // description.Server
	updateTopologyCallback atomic.Value // updateTopologyCallback

	rttMu         sync.Mutex
	averageRTTSet bool
	averageRTT    time.Duration

	subLock             sync.Mutex
	subscribers         map[uint64]chan description.Server
	currentSubscriberID uint64
	subscriptionsClosed bool

	processErrorLock sync.Mutex
}

// NewServer constructs a Server for addr; it does not start monitoring
// until Connect is called.
func NewServer(addr address.Address, opts ...ServerOption) *Server {
	cfg := newServerConfig(opts...)
	s := &Server{
		cfg:           cfg,
		addr:          addr,
		done:          make(chan struct{}),
		checkNow:      make(chan struct{}, 1),
		disconnecting: make(chan struct{}),
		subscribers:   make(map[uint64]chan description.Server),
		monitor:       cfg.serverMonitor,
		topologyID:    cfg.topologyID,
	}
	s.desc.Store(description.NewDefaultServer(addr))
	s.pool = newPool(addr, cfg)
	return s
}

// Connect starts the server's monitor goroutine and opens its pool for
// checkouts. updateCallback folds this server's descriptions into the
// owning Topology.
func (s *Server) Connect(updateCallback updateTopologyCallback) error {
	if !atomic.CompareAndSwapInt32(&s.state, serverDisconnected, serverConnected) {
		return ErrServerConnected
	}
	s.updateTopologyCallback.Store(updateCallback)
	if s.monitor != nil && s.monitor.ServerOpening != nil {
		s.monitor.ServerOpening(&event.ServerOpeningEvent{Address: s.addr.String(), TopologyID: s.topologyID})
	}
	s.closewg.Add(1)
	go s.update()
	return nil
}

// Disconnect stops the monitor goroutine and disconnects the pool, waiting
// for in-use connections to be returned (or for ctx to expire, after which
// they are forcibly closed).
func (s *Server) Disconnect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, serverConnected, serverDisconnecting) {
		return ErrServerClosed
	}
	s.updateTopologyCallback.Store(updateTopologyCallback(nil))

	select {
	case <-ctx.Done():
		close(s.disconnecting)
		s.done <- struct{}{}
	case s.done <- struct{}{}:
	}

	err := s.pool.disconnect(ctx)
	s.closewg.Wait()
	atomic.StoreInt32(&s.state, serverDisconnected)
	if s.monitor != nil && s.monitor.ServerClosed != nil {
		s.monitor.ServerClosed(&event.ServerClosedEvent{Address: s.addr.String(), TopologyID: s.topologyID})
	}
	return err
}

// Connection checks out a connection from the server's pool, implementing
// driver.Server.
func (s *Server) Connection(ctx context.Context) (driver.Connection, error) {
	if atomic.LoadInt32(&s.state) != serverConnected {
		return nil, ErrServerClosed
	}
	conn, err := s.pool.checkOut(ctx)
	if err != nil {
		s.ProcessHandshakeError(err)
		return nil, err
	}
	return &pooledConnection{connection: conn, pool: s.pool}, nil
}

// pooledConnection wraps a connection so Close returns it to the pool
// instead of tearing down the socket.
type pooledConnection struct {
	*connection
	pool *pool
}

// Close implements driver.Connection by checking the connection back in
// rather than closing the socket.
func (pc *pooledConnection) Close() error {
	pc.pool.checkIn(pc.connection)
	return nil
}

// Description implements driver.Server.
func (s *Server) Description() description.Server {
	return s.desc.Load().(description.Server)
}

// OperationCount implements driver.Server: the number of connections
// currently checked out of this server's pool, used as an in-flight-
// operation proxy for the two-random-choices selection tie-break.
func (s *Server) OperationCount() int64 {
	return s.pool.checkedOut()
}

// ServerSubscription delivers every description this server publishes,
// starting with the current one.
type ServerSubscription struct {
	C  <-chan description.Server
	s  *Server
	id uint64
}

// Unsubscribe removes this subscription; the channel is not closed until
// the server itself disconnects.
func (ss *ServerSubscription) Unsubscribe() {
	ss.s.subLock.Lock()
	defer ss.s.subLock.Unlock()
	delete(ss.s.subscribers, ss.id)
}

// Subscribe returns a subscription whose channel receives every future
// description update, pre-populated with the current description.
func (s *Server) Subscribe() (*ServerSubscription, error) {
	if atomic.LoadInt32(&s.state) != serverConnected {
		return nil, ErrSubscribeAfterClosed
	}
	ch := make(chan description.Server, 1)
	ch <- s.Description()

	s.subLock.Lock()
	defer s.subLock.Unlock()
	if s.subscriptionsClosed {
		return nil, ErrSubscribeAfterClosed
	}
	id := s.currentSubscriberID
	s.currentSubscriberID++
	s.subscribers[id] = ch
	return &ServerSubscription{C: ch, s: s, id: id}, nil
}

// RequestImmediateCheck wakes the monitor goroutine for an out-of-cycle
// heartbeat, used after SDAM error handling invalidates this server's
// description.
func (s *Server) RequestImmediateCheck() {
	select {
	case s.checkNow <- struct{}{}:
	default:
	}
}

// ProcessHandshakeError handles an error surfaced while dialing/handshaking
// a pool connection, before any driver.Error/WriteConcernError taxonomy
// applies: such an error can only mean the server is unreachable.
func (s *Server) ProcessHandshakeError(err error) {
	var connErr driver.ConnectionError
	if !errors.As(err, &connErr) {
		return
	}
	s.updateDescription(description.NewServerFromError(s.addr, err, s.Description().TopologyVersion))
	s.pool.clear(nil)
}

// ProcessError implements driver.ErrorProcessor: the SDAM error-handling
// rules that decide whether an operation error should invalidate this
// server's description and/or clear its pool.
func (s *Server) ProcessError(err error, conn driver.Connection) {
	s.processErrorLock.Lock()
	defer s.processErrorLock.Unlock()

	if err == nil || conn.Stale() {
		return
	}
	desc := conn.Description()

	if cerr, ok := err.(driver.Error); ok && (cerr.NodeIsRecovering() || cerr.NotMaster()) {
		if description.CompareTopologyVersion(desc.TopologyVersion, cerr.TopologyVersion) >= 0 {
			return
		}
		s.updateDescription(description.NewServerFromError(s.addr, err, cerr.TopologyVersion))
		s.RequestImmediateCheck()
		if cerr.NodeIsShuttingDown() || desc.WireVersion == nil || desc.WireVersion.Max < 8 {
			s.pool.clear(nil)
		}
		return
	}
	if wcerr, ok := err.(driver.WriteConcernError); ok && (wcerr.NodeIsRecovering() || wcerr.NotMaster()) {
		if description.CompareTopologyVersion(desc.TopologyVersion, wcerr.TopologyVersion) >= 0 {
			return
		}
		s.updateDescription(description.NewServerFromError(s.addr, err, wcerr.TopologyVersion))
		s.RequestImmediateCheck()
		if wcerr.NodeIsShuttingDown() || desc.WireVersion == nil || desc.WireVersion.Max < 8 {
			s.pool.clear(nil)
		}
		return
	}

	var connErr driver.ConnectionError
	if !errors.As(err, &connErr) {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	s.updateDescription(description.NewServerFromError(s.addr, err, desc.TopologyVersion))
	s.pool.clear(nil)
}

// updateDescription folds desc through the owning Topology's callback (if
// set), stores the result, and publishes it to every subscriber.
func (s *Server) updateDescription(desc description.Server) {
	prev := s.Description()
	if callback, ok := s.updateTopologyCallback.Load().(updateTopologyCallback); ok && callback != nil {
		desc = callback(desc)
	}
	s.desc.Store(desc)

	if s.monitor != nil && s.monitor.ServerDescriptionChanged != nil {
		s.monitor.ServerDescriptionChanged(&event.ServerDescriptionChangedEvent{
			Address:             s.addr.String(),
			TopologyID:          s.topologyID,
			PreviousDescription: event.ServerDescription{Kind: prev.Kind.String(), Address: prev.Addr.String()},
			NewDescription:      event.ServerDescription{Kind: desc.Kind.String(), Address: desc.Addr.String()},
		})
	}

	s.subLock.Lock()
	defer s.subLock.Unlock()
	for _, c := range s.subscribers {
		select {
		case <-c:
		default:
		}
		c <- desc
	}
}

// update runs the monitor loop: an initial heartbeat, then one heartbeat per
// tick of heartbeatInterval (or immediately on RequestImmediateCheck),
// rate-limited so back-to-back immediate checks can't exceed
// minHeartbeatInterval.
func (s *Server) update() {
	defer s.closewg.Done()

	heartbeatTicker := time.NewTicker(s.cfg.heartbeatInterval)
	rateLimiter := time.NewTicker(minHeartbeatInterval)
	defer heartbeatTicker.Stop()
	defer rateLimiter.Stop()

	closeServer := func() {
		s.subLock.Lock()
		for id, c := range s.subscribers {
			close(c)
			delete(s.subscribers, id)
		}
		s.subscriptionsClosed = true
		s.subLock.Unlock()
	}

	var conn *connection
	desc, nextConn := s.heartbeat(nil)
	conn = nextConn
	s.updateDescription(desc)
	s.pool.ready()

	for {
		select {
		case <-s.done:
			closeServer()
			if conn != nil {
				conn.close()
			}
			return
		default:
		}

		select {
		case <-heartbeatTicker.C:
		case <-s.checkNow:
		case <-s.done:
			closeServer()
			if conn != nil {
				conn.close()
			}
			return
		}

		select {
		case <-rateLimiter.C:
		case <-s.done:
			closeServer()
			if conn != nil {
				conn.close()
			}
			return
		}

		desc, conn = s.heartbeat(conn)
		s.updateDescription(desc)
		if desc.Kind == description.Unknown {
			s.pool.pause()
		} else {
			s.pool.ready()
			go s.pool.maintain(context.Background())
		}
	}
}

// heartbeat sends a hello on conn (dialing a fresh monitoring connection if
// conn is nil, expired, or came back from a failed attempt), retrying once
// on failure before reporting the server Unknown.
func (s *Server) heartbeat(conn *connection) (description.Server, *connection) {
	const maxRetry = 2
	var saved error
	var desc description.Server
	var set bool

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
		case <-s.disconnecting:
			cancel()
		}
	}()

	for i := 1; i <= maxRetry; i++ {
		if conn != nil && conn.expired() {
			conn.close()
			conn = nil
		}

		var start time.Time
		var heartbeatDesc *description.Server

		if conn == nil {
			cfg := newConnectionConfig(
				WithConnectTimeout(s.cfg.heartbeatTimeout),
				WithReadWriteTimeout(s.cfg.heartbeatTimeout),
				WithHandshaker(defaultHandshake(s.cfg.appName, nil, nil)),
			)
			conn = newConnection(s.addr, cfg)
			start = time.Now()
			err := conn.connect(ctx, cfg)
			if err != nil {
				saved = err
				conn = nil
				s.pool.clear(nil)
				if s.Description().Kind == description.Unknown {
					break
				}
				continue
			}
			d := conn.desc
			heartbeatDesc = &d
		}

		if heartbeatDesc == nil {
			start = time.Now()
			d, err := defaultHandshake(s.cfg.appName, nil, nil)(ctx, conn)
			if err != nil {
				saved = err
				conn.close()
				conn = nil
				s.pool.clear(nil)
				if s.Description().Kind == description.Unknown {
					break
				}
				continue
			}
			heartbeatDesc = &d
		}

		desc = *heartbeatDesc
		rtt := s.updateAverageRTT(time.Since(start))
		desc = desc.SetAverageRTT(rtt)
		desc.HeartbeatInterval = s.cfg.heartbeatInterval
		set = true
		break
	}

	if !set {
		desc = description.NewServerFromError(s.addr, saved, s.Description().TopologyVersion)
	}
	return desc, conn
}

// updateAverageRTT folds delay into an exponentially weighted moving
// average (alpha 0.2), the same smoothing factor the wire-protocol spec's
// reference drivers use for round-trip-time tracking.
func (s *Server) updateAverageRTT(delay time.Duration) time.Duration {
	s.rttMu.Lock()
	defer s.rttMu.Unlock()
	if !s.averageRTTSet {
		s.averageRTT = delay
		s.averageRTTSet = true
	} else {
		const alpha = 0.2
		s.averageRTT = time.Duration(alpha*float64(delay) + (1-alpha)*float64(s.averageRTT))
	}
	return s.averageRTT
}

var _ driver.Server = (*Server)(nil)
var _ driver.Connection = (*pooledConnection)(nil)
