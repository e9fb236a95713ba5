package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

// serverSessionTimeoutBuffer is subtracted from the deployment's logical
// session timeout before a server session is considered expired and
// dropped from the pool rather than reused, avoiding a race against the
// server's own cleanup sweep.
const serverSessionTimeoutBuffer = time.Minute

// ServerSession is a single server-side logical session: the lsid document
// every command in the session carries, plus bookkeeping to decide when to
// recycle vs. discard it.
type ServerSession struct {
	SessionID bson.Raw
	LastUsed  time.Time
	TxnNumber int64
	Dirty     bool // set after a command on this session got a network error
}

func newServerSession() *ServerSession {
	id := uuid.New()
	idx, doc := bsoncore.AppendDocumentStart(nil)
	doc = bsoncore.AppendBinaryElement(doc, "id", 0x04, id[:])
	doc, _ = bsoncore.AppendDocumentEnd(doc, idx)
	return &ServerSession{SessionID: bson.Raw(doc), LastUsed: time.Now()}
}

// expired reports whether this session is within serverSessionTimeoutBuffer
// of the deployment's session timeout and should not be reused.
func (s *ServerSession) expired(sessionTimeoutMinutes int64) bool {
	if sessionTimeoutMinutes <= 0 {
		return false
	}
	timeout := time.Duration(sessionTimeoutMinutes)*time.Minute - serverSessionTimeoutBuffer
	return time.Since(s.LastUsed) > timeout
}

// Pool is a LIFO pool of ServerSessions, recycling the most recently used
// session first (spec.md's server session pool: LIFO reuse keeps the
// session at the front of the server's own idle-session list warm).
type Pool struct {
	mu       sync.Mutex
	sessions []*ServerSession
}

// NewPool constructs an empty session pool.
func NewPool() *Pool { return &Pool{} }

// GetSession returns a non-expired session from the top of the pool, or a
// freshly generated one if the pool is empty or every pooled session has
// expired.
func (p *Pool) GetSession(sessionTimeoutMinutes int64) *ServerSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.sessions) > 0 {
		s := p.sessions[len(p.sessions)-1]
		p.sessions = p.sessions[:len(p.sessions)-1]
		if !s.expired(sessionTimeoutMinutes) {
			return s
		}
	}
	return newServerSession()
}

// ReturnSession puts s back at the top of the pool, unless it was marked
// dirty (spec.md: a dirty session must never be reused) or has expired.
func (p *Pool) ReturnSession(s *ServerSession, sessionTimeoutMinutes int64) {
	if s == nil || s.Dirty || s.expired(sessionTimeoutMinutes) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, s)
}

// EndSessions drains every pooled session's id, for an endSessions command
// sent at client shutdown (the servers then discard them immediately
// rather than waiting out their idle timeout).
func (p *Pool) EndSessions() []bson.Raw {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]bson.Raw, len(p.sessions))
	for i, s := range p.sessions {
		ids[i] = s.SessionID
	}
	p.sessions = nil
	return ids
}
