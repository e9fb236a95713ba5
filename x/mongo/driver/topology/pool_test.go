package topology

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nimbusdb/nimbus-go-driver/internal/address"
)

// pipeDialer hands out one end of an in-memory net.Pipe per dial, discarding
// the other end; since these tests never set a handshaker, no bytes are
// ever written or read over the connection, so the unused peer is harmless.
func pipeDialer() Dialer {
	return DialerFunc(func(ctx context.Context, network, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		go server.Close()
		return client, nil
	})
}

func newTestPool(opts ...ConnectionOption) *pool {
	allOpts := append([]ConnectionOption{WithDialer(pipeDialer())}, opts...)
	cfg := newConnectionConfig(allOpts...)
	p := &pool{
		addr:               address.Address("a:27017"),
		cfg:                cfg,
		maxSize:            0,
		connecting:         semaphore.NewWeighted(2),
		state:              poolReady,
		serviceGenerations: make(map[[12]byte]uint64),
	}
	return p
}

func TestCheckOutDialsWhenIdleEmpty(t *testing.T) {
	p := newTestPool()
	c, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected a connection")
	}
	if p.total != 1 {
		t.Fatalf("total = %d, want 1", p.total)
	}
}

func TestCheckOutReturnsErrPoolClosed(t *testing.T) {
	p := newTestPool()
	p.state = poolClosed
	if _, err := p.checkOut(context.Background()); err != ErrPoolClosed {
		t.Fatalf("err = %v, want ErrPoolClosed", err)
	}
}

func TestCheckOutReturnsErrPoolNotReady(t *testing.T) {
	p := newTestPool()
	p.state = poolPaused
	if _, err := p.checkOut(context.Background()); err != ErrPoolNotReady {
		t.Fatalf("err = %v, want ErrPoolNotReady", err)
	}
}

func TestCheckInThenCheckOutReusesConnection(t *testing.T) {
	p := newTestPool()
	c, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.checkIn(c)
	if len(p.idle) != 1 {
		t.Fatalf("len(idle) = %d, want 1", len(p.idle))
	}

	reused, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reused != c {
		t.Fatal("expected the idle connection to be reused rather than a new one dialed")
	}
	if p.total != 1 {
		t.Fatalf("total = %d, want 1 (no extra connection dialed)", p.total)
	}
}

func TestClearBumpsGenerationAndDropsStaleIdleConnections(t *testing.T) {
	p := newTestPool()
	c, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.checkIn(c)

	p.clear(nil)
	if p.state != poolPaused {
		t.Fatal("expected clear to pause the pool")
	}
	p.ready()

	fresh, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh == c {
		t.Fatal("expected a stale-generation idle connection to be dropped rather than reused")
	}
	if p.total != 1 {
		t.Fatalf("total = %d, want 1 (the stale connection's slot was released)", p.total)
	}
}

func TestCheckInAfterCloseDiscardsConnection(t *testing.T) {
	p := newTestPool()
	c, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.state = poolClosed
	p.checkIn(c)

	if len(p.idle) != 0 {
		t.Fatal("expected checkIn on a closed pool to discard the connection rather than pool it")
	}
}

func TestRemoveDecrementsTotalAndClosesConnection(t *testing.T) {
	p := newTestPool()
	c, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.remove(c)

	if p.total != 0 {
		t.Fatalf("total = %d, want 0", p.total)
	}
	if !c.expired() {
		t.Fatal("expected remove to close the connection, marking it expired/dead")
	}
}

func TestCheckOutRespectsMaxSize(t *testing.T) {
	p := newTestPool()
	p.maxSize = 1

	if _, err := p.checkOut(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.checkOut(context.Background()); err == nil {
		t.Fatal("expected an error once the pool is at maxSize")
	}
}

func TestDisconnectClosesIdleAndMarksClosed(t *testing.T) {
	p := newTestPool()
	c, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.checkIn(c)

	if err := p.disconnect(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.state != poolClosed {
		t.Fatal("expected disconnect to mark the pool closed")
	}
	if !c.expired() {
		t.Fatal("expected disconnect to close every idle connection")
	}
	if _, err := p.checkOut(context.Background()); err != ErrPoolClosed {
		t.Fatalf("err = %v, want ErrPoolClosed after disconnect", err)
	}
}

func TestExpiredIdleConnectionIsNotReused(t *testing.T) {
	p := newTestPool(WithIdleTimeout(time.Millisecond))
	c, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.checkIn(c)
	time.Sleep(5 * time.Millisecond)

	fresh, err := p.checkOut(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh == c {
		t.Fatal("expected an idle-timeout-expired connection to be dropped rather than reused")
	}
}
