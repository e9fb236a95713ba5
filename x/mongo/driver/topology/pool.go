package topology

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/nimbusdb/nimbus-go-driver/event"
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
)

// poolState mirrors spec.md §4.4's three pool states.
type poolState int32

const (
	poolPaused poolState = iota
	poolReady
	poolClosed
)

// ErrPoolClosed is returned from checkOut once the pool has been closed.
var ErrPoolClosed = errors.New("topology: connection pool is closed")

// ErrPoolNotReady is returned from checkOut while the pool is paused
// (spec.md §4.4: paused after the server's monitor marks it Unknown, until
// the next successful heartbeat calls markReady).
var ErrPoolNotReady = errors.New("topology: connection pool is paused")

// pool owns a server's connections: a small idle LIFO stack plus dial
// capacity gated by maxConnecting and overall size gated by maxPoolSize.
// Every connection carries the pool generation at the time it was created;
// clear() bumps the generation so stale connections are dropped on check-in
// instead of being reused (spec.md §4.4's pool-clearing invariant).
type pool struct {
	addr    address.Address
	cfg     *connectionConfig
	monitor *event.PoolMonitor

	minSize uint64
	maxSize uint64

	connecting *semaphore.Weighted

	mu         sync.Mutex
	state      poolState
	generation uint64
	// serviceGenerations tracks per-service_id generations for load-balanced
	// mode (spec.md §4.4), where a single pool serves many backends behind
	// one load balancer and only one backend's connections should be
	// invalidated at a time.
	serviceGenerations map[[12]byte]uint64
	loadBalanced       bool

	idle  []*connection
	total uint64

	// generations maps a connection's id to the pool generation it was
	// dialed under, so checkIn/checkOut can detect staleness without
	// widening the connection type itself for a pool-only concern.
	generations map[string]uint64

	closed bool
}

func newPool(addr address.Address, cfg *serverConfig) *pool {
	maxConnecting := cfg.maxConnecting
	if maxConnecting == 0 {
		maxConnecting = 2
	}
	connCfg := newConnectionConfig(cfg.connectionOpts...)
	// Application connections always handshake and, if credentials were
	// configured, authenticate; this runs after the user-supplied
	// connectionOpts so it can't be shadowed by an earlier WithHandshaker.
	connCfg.handshaker = defaultHandshake(cfg.appName, connCfg.compressors, cfg.authenticator)
	p := &pool{
		addr:               addr,
		cfg:                connCfg,
		monitor:            cfg.poolMonitor,
		minSize:            cfg.minPoolSize,
		maxSize:            cfg.maxPoolSize,
		connecting:         semaphore.NewWeighted(int64(maxConnecting)),
		state:              poolPaused,
		serviceGenerations: make(map[[12]byte]uint64),
		loadBalanced:       cfg.loadBalanced,
	}
	p.publish(&event.PoolEvent{
		Type:    event.PoolCreated,
		Address: addr.String(),
		PoolOptions: &event.PoolOptions{
			MaxPoolSize: cfg.maxPoolSize,
			MinPoolSize: cfg.minPoolSize,
		},
	})
	return p
}

// publish delivers evt to the pool's monitor, if one is configured.
func (p *pool) publish(evt *event.PoolEvent) {
	if p.monitor != nil && p.monitor.Event != nil {
		p.monitor.Event(evt)
	}
}

// ready transitions the pool to Ready, called once the server's monitor
// completes a successful heartbeat (spec.md §4.4).
func (p *pool) ready() {
	p.mu.Lock()
	wasReady := p.state == poolReady
	if p.state != poolClosed {
		p.state = poolReady
	}
	p.mu.Unlock()
	if !wasReady {
		p.publish(&event.PoolEvent{Type: event.PoolReady, Address: p.addr.String()})
	}
}

// pause transitions the pool to Paused, called when the monitor marks the
// server Unknown; existing idle connections are kept (they're dropped lazily
// by generation mismatch, not evicted immediately).
func (p *pool) pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != poolClosed {
		p.state = poolPaused
	}
}

// clear bumps the pool's generation (or, for a specific service_id in
// load-balanced mode, that service's generation), invalidating every
// connection checked out or idle under the old generation, then pauses the
// pool. serviceID is nil outside load-balanced mode.
func (p *pool) clear(serviceID *[12]byte) {
	p.mu.Lock()
	if serviceID != nil && p.loadBalanced {
		p.serviceGenerations[*serviceID]++
	} else {
		p.generation++
	}
	p.state = poolPaused
	p.mu.Unlock()
	p.publish(&event.PoolEvent{Type: event.PoolCleared, Address: p.addr.String(), ServiceID: serviceID})
}

func (p *pool) currentGeneration(serviceID *[12]byte) uint64 {
	if serviceID != nil && p.loadBalanced {
		return p.serviceGenerations[*serviceID]
	}
	return p.generation
}

// checkedOut returns the number of connections currently checked out,
// used as this server's in-flight-operation count for the two-random-
// choices server selection tie-break (spec.md §4.3 step 6).
func (p *pool) checkedOut() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(p.total) - int64(len(p.idle))
}

// checkOut returns a ready connection: an idle one from the same
// generation if available, else a freshly dialed one (subject to
// maxConnecting and maxPoolSize).
func (p *pool) checkOut(ctx context.Context) (*connection, error) {
	p.publish(&event.PoolEvent{Type: event.ConnectionCheckOutStarted, Address: p.addr.String()})
	c, err := p.checkOutLocked(ctx)
	if err != nil {
		reason := event.ReasonConnError
		switch {
		case errors.Is(err, ErrPoolClosed):
			reason = event.ReasonPoolClosed
		case errors.Is(err, ErrPoolNotReady), errors.Is(err, context.DeadlineExceeded):
			reason = event.ReasonTimedOut
		}
		p.publish(&event.PoolEvent{Type: event.ConnectionCheckOutFailed, Address: p.addr.String(), Reason: reason})
		return nil, err
	}
	p.publish(&event.PoolEvent{Type: event.ConnectionCheckedOut, Address: p.addr.String(), ConnectionID: c.id})
	return c, nil
}

func (p *pool) checkOutLocked(ctx context.Context) (*connection, error) {
	p.mu.Lock()
	switch p.state {
	case poolClosed:
		p.mu.Unlock()
		return nil, ErrPoolClosed
	case poolPaused:
		p.mu.Unlock()
		return nil, ErrPoolNotReady
	}

	gen := p.generation
	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if c.expired() || p.connGeneration(c) != gen {
			p.total--
			p.mu.Unlock()
			c.close()
			p.mu.Lock()
			continue
		}
		p.mu.Unlock()
		return c, nil
	}

	if p.maxSize > 0 && p.total >= p.maxSize {
		p.mu.Unlock()
		return nil, errors.New("topology: connection pool at maximum size")
	}
	p.total++
	p.mu.Unlock()

	if err := p.connecting.Acquire(ctx, 1); err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	defer p.connecting.Release(1)

	c := newConnection(p.addr, p.cfg)
	p.publish(&event.PoolEvent{Type: event.ConnectionCreated, Address: p.addr.String(), ConnectionID: c.id})
	if err := c.connect(ctx, p.cfg); err != nil {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return nil, err
	}
	p.setConnGeneration(c, gen)
	p.publish(&event.PoolEvent{Type: event.ConnectionReady, Address: p.addr.String(), ConnectionID: c.id})
	return c, nil
}

// checkIn returns c to the idle stack, or closes it if the pool is closed,
// c has expired, or the pool has been cleared since c was checked out.
func (p *pool) checkIn(c *connection) {
	p.mu.Lock()
	if p.state == poolClosed || c.expired() || p.connGeneration(c) != p.currentGeneration(c.serviceID()) {
		p.total--
		p.mu.Unlock()
		c.close()
		p.publish(&event.PoolEvent{Type: event.ConnectionClosed, Address: p.addr.String(), ConnectionID: c.id})
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()
	p.publish(&event.PoolEvent{Type: event.ConnectionCheckedIn, Address: p.addr.String(), ConnectionID: c.id})
}

// remove drops c from the pool entirely (used after a connection errors
// out rather than returning cleanly), decrementing total without adding it
// back to idle.
func (p *pool) remove(c *connection) {
	p.mu.Lock()
	p.total--
	p.mu.Unlock()
	c.close()
	p.publish(&event.PoolEvent{Type: event.ConnectionClosed, Address: p.addr.String(), ConnectionID: c.id})
}

// maintain dials up to minSize idle connections; run periodically by the
// server from a background goroutine while the pool is Ready.
func (p *pool) maintain(ctx context.Context) {
	p.mu.Lock()
	if p.state != poolReady {
		p.mu.Unlock()
		return
	}
	need := int64(0)
	if p.minSize > uint64(len(p.idle))+0 && p.total < p.minSize {
		need = int64(p.minSize - p.total)
	}
	p.mu.Unlock()

	for i := int64(0); i < need; i++ {
		c, err := p.checkOut(ctx)
		if err != nil {
			return
		}
		p.checkIn(c)
	}
}

// disconnect closes every idle connection and marks the pool closed; calls
// to checkOut after this return ErrPoolClosed.
func (p *pool) disconnect(ctx context.Context) error {
	p.mu.Lock()
	p.state = poolClosed
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		c.close()
		p.publish(&event.PoolEvent{Type: event.ConnectionClosed, Address: p.addr.String(), ConnectionID: c.id})
	}
	p.publish(&event.PoolEvent{Type: event.PoolClosed, Address: p.addr.String()})
	return nil
}

// connGeneration/setConnGeneration associate a generation with a
// connection without widening the connection struct itself for every pool
// concern; stored via a side map keyed by connection id since connections
// rarely number in the thousands per pool.
func (p *pool) connGeneration(c *connection) uint64 {
	if g, ok := p.generations[c.id]; ok {
		return g
	}
	return 0
}

func (p *pool) setConnGeneration(c *connection, gen uint64) {
	if p.generations == nil {
		p.generations = make(map[string]uint64)
	}
	p.generations[c.id] = gen
}

func (c *connection) serviceID() *[12]byte { return nil }

var _ driver.Connection = (*connection)(nil)
