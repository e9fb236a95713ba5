package topology

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/wiremessage"
)

var globalConnectionID uint64

func nextConnectionID() uint64 { return atomic.AddUint64(&globalConnectionID, 1) }

// Dialer opens network connections; implemented by *net.Dialer and
// available for substitution in tests (the teacher's same seam, kept under
// the same name).
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext implements Dialer.
func (f DialerFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// connection is a single wire-protocol connection to one server: dial, an
// optional TLS handshake, the hello/auth handshake, and after that plain
// OP_MSG read/write with an optionally negotiated compressor.
type connection struct {
	id          string
	addr        address.Address
	nc          net.Conn
	desc        description.Server
	compressor  wiremessage.CompressorID
	compressSet bool
	zlibLevel   int

	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	idleDeadline   atomic.Value // time.Time

	requestID int32

	dead  int32 // atomic bool
	stale int32 // atomic bool
}

func newConnection(addr address.Address, cfg *connectionConfig) *connection {
	c := &connection{
		id:             fmt.Sprintf("%s[-%d]", addr, nextConnectionID()),
		addr:           addr,
		connectTimeout: cfg.connectTimeout,
		readTimeout:    cfg.readTimeout,
		writeTimeout:   cfg.writeTimeout,
		idleTimeout:    cfg.idleTimeout,
		zlibLevel:      cfg.zlibLevel,
	}
	c.bumpIdle()
	return c
}

// connect dials addr, optionally performs a TLS handshake, then runs the
// hello handshake to populate c.desc and negotiate compression. handshakeFn
// builds and interprets the hello exchange; it is swapped out during
// monitor heartbeats to bypass authentication.
func (c *connection) connect(ctx context.Context, cfg *connectionConfig) error {
	dialCtx := ctx
	var cancel context.CancelFunc
	if c.connectTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}

	nc, err := cfg.dialer.DialContext(dialCtx, c.addr.Network(), c.addr.String())
	if err != nil {
		return driver.NewConnectionError(c.id, "unable to dial", err)
	}

	if cfg.tlsConfig != nil {
		nc, err = configureTLS(dialCtx, nc, c.addr, cfg.tlsConfig, cfg.disableOCSPEndpointCheck)
		if err != nil {
			nc.Close()
			return driver.NewConnectionError(c.id, "TLS handshake failed", err)
		}
	}
	c.nc = nc

	if cfg.handshaker != nil {
		desc, err := cfg.handshaker(ctx, c)
		if err != nil {
			c.close()
			return driver.NewConnectionError(c.id, "handshake failed", err)
		}
		c.desc = desc
		if len(desc.Compression) > 0 {
			for _, name := range cfg.compressors {
				if id, ok := wiremessage.CompressorIDForName(name); ok {
					for _, serverName := range desc.Compression {
						if serverName == name {
							c.compressor = id
							c.compressSet = true
						}
					}
				}
			}
		}
	}
	return nil
}

func configureTLS(ctx context.Context, nc net.Conn, addr address.Address, cfg *tls.Config, disableOCSPEndpointCheck bool) (net.Conn, error) {
	cfg = cfg.Clone()
	if cfg.ServerName == "" {
		host := addr.String()
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
		cfg.ServerName = host
	}

	client := tls.Client(nc, cfg)
	errCh := make(chan error, 1)
	go func() { errCh <- client.Handshake() }()
	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := verifyOCSPStaple(client.ConnectionState(), disableOCSPEndpointCheck); err != nil {
		return nil, err
	}
	return client, nil
}

// WriteWireMessage implements driver.Connection: wm is a fully encoded
// message (header included), compressed here if a compressor was
// negotiated and the command allows it.
func (c *connection) WriteWireMessage(ctx context.Context, wm []byte) error {
	if atomic.LoadInt32(&c.dead) == 1 {
		return driver.NewConnectionError(c.id, "connection is dead", nil)
	}

	deadline := c.deadline(ctx, c.writeTimeout)
	if err := c.nc.SetWriteDeadline(deadline); err != nil {
		return driver.NewConnectionError(c.id, "failed to set write deadline", err)
	}

	toSend := wm
	if c.compressSet && canCompressWireMessage(wm) {
		compressed, err := compressWireMessage(wm, c.compressor, c.zlibLevel)
		if err != nil {
			return driver.NewConnectionError(c.id, "unable to compress wire message", err)
		}
		toSend = compressed
	}

	if _, err := c.nc.Write(toSend); err != nil {
		c.close()
		return driver.NewConnectionError(c.id, "unable to write wire message to network", err)
	}
	c.bumpIdle()
	return nil
}

// ReadWireMessage implements driver.Connection, returning the decompressed
// message (header included) ready for wiremessage.ReadMsg.
func (c *connection) ReadWireMessage(ctx context.Context) ([]byte, error) {
	if atomic.LoadInt32(&c.dead) == 1 {
		return nil, driver.NewConnectionError(c.id, "connection is dead", nil)
	}

	deadline := c.deadline(ctx, c.readTimeout)
	if err := c.nc.SetReadDeadline(deadline); err != nil {
		return nil, driver.NewConnectionError(c.id, "failed to set read deadline", err)
	}

	var sizeBuf [4]byte
	if _, err := readFull(c.nc, sizeBuf[:]); err != nil {
		c.close()
		return nil, driver.NewConnectionError(c.id, "unable to decode message length", err)
	}
	size := int32(sizeBuf[0]) | int32(sizeBuf[1])<<8 | int32(sizeBuf[2])<<16 | int32(sizeBuf[3])<<24
	if size < 16 {
		c.close()
		return nil, driver.NewConnectionError(c.id, "invalid message length", nil)
	}

	buf := make([]byte, size)
	copy(buf, sizeBuf[:])
	if _, err := readFull(c.nc, buf[4:]); err != nil {
		c.close()
		return nil, driver.NewConnectionError(c.id, "unable to read full message", err)
	}

	hdr, rest, err := wiremessage.ReadHeader(buf)
	if err != nil {
		c.close()
		return nil, driver.NewConnectionError(c.id, "unable to decode header", err)
	}

	if hdr.OpCode == wiremessage.OpCompressed {
		compressed, err := wiremessage.ReadCompressed(hdr, rest)
		if err != nil {
			c.close()
			return nil, driver.NewConnectionError(c.id, "unable to decode OP_COMPRESSED", err)
		}
		out, err := wiremessage.Decompress(nil, compressed.CompressedMessage, compressed.CompressorID, compressed.UncompressedSize)
		if err != nil {
			c.close()
			return nil, driver.NewConnectionError(c.id, "unable to decompress message", err)
		}
		origHdr := wiremessage.Header{
			MessageLength: int32(len(out)) + wiremessage.HeaderLen,
			RequestID:     compressed.Header.RequestID,
			ResponseTo:    compressed.Header.ResponseTo,
			OpCode:        compressed.OriginalOpCode,
		}
		full := origHdr.AppendHeader(make([]byte, 0, len(out)+wiremessage.HeaderLen))
		full = append(full, out...)
		buf = full
	}

	c.bumpIdle()
	return buf, nil
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// canCompressWireMessage reports whether wm's command allows compression;
// auth and handshake commands never do (spec.md's wire protocol carries
// this restriction forward from the server's own requirement).
func canCompressWireMessage(wm []byte) bool {
	hdr, rest, err := wiremessage.ReadHeader(wm)
	if err != nil || hdr.OpCode != wiremessage.OpMsg {
		return false
	}
	msg, err := wiremessage.ReadMsg(hdr, rest)
	if err != nil {
		return false
	}
	body := msg.BodyDocument()
	if body == nil {
		return false
	}
	elems, err := bson.Raw(body).Elements()
	if err != nil || len(elems) == 0 {
		return false
	}
	switch elems[0].Key() {
	case "hello", "isMaster", "ismaster", "saslStart", "saslContinue", "getnonce", "authenticate", "createUser", "updateUser":
		return false
	default:
		return true
	}
}

func compressWireMessage(wm []byte, id wiremessage.CompressorID, zlibLevel int) ([]byte, error) {
	hdr, rest, err := wiremessage.ReadHeader(wm)
	if err != nil {
		return nil, err
	}
	compressed, err := wiremessage.Compress(nil, rest, id, zlibLevel)
	if err != nil {
		return nil, err
	}
	c := wiremessage.Compressed{
		Header:            wiremessage.Header{RequestID: hdr.RequestID, ResponseTo: hdr.ResponseTo},
		OriginalOpCode:    hdr.OpCode,
		UncompressedSize:  int32(len(rest)),
		CompressorID:      id,
		CompressedMessage: compressed,
	}
	return c.Append(nil), nil
}

func (c *connection) deadline(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout != 0 {
		deadline = time.Now().Add(timeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	return deadline
}

func (c *connection) bumpIdle() {
	if c.idleTimeout > 0 {
		c.idleDeadline.Store(time.Now().Add(c.idleTimeout))
	}
}

// expired reports whether c is closed or has been idle longer than its idle
// timeout; there is no limit on a connection's total lifetime.
func (c *connection) expired() bool {
	if atomic.LoadInt32(&c.dead) == 1 {
		return true
	}
	if dl, ok := c.idleDeadline.Load().(time.Time); ok && !dl.IsZero() && time.Now().After(dl) {
		return true
	}
	return false
}

func (c *connection) close() error {
	if !atomic.CompareAndSwapInt32(&c.dead, 0, 1) {
		return nil
	}
	if c.nc == nil {
		return nil
	}
	return c.nc.Close()
}

// Close implements driver.Connection.
func (c *connection) Close() error { return c.close() }

// Description implements driver.Connection.
func (c *connection) Description() description.Server { return c.desc }

// ID implements driver.Connection.
func (c *connection) ID() string { return c.id }

// Address implements driver.Connection.
func (c *connection) Address() address.Address { return c.addr }

// Stale implements driver.Connection: a stale connection belongs to a
// generation the pool has already cleared, so errors from it must not
// affect the server's current description.
func (c *connection) Stale() bool { return atomic.LoadInt32(&c.stale) == 1 }

func (c *connection) markStale() { atomic.StoreInt32(&c.stale, 1) }

// nextRequestID returns the next OP_MSG requestId for this connection.
func (c *connection) nextRequestID() int32 {
	return atomic.AddInt32(&c.requestID, 1)
}
