package mongo

import (
	"context"

	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// sessionKey is the context.Value key a SessionContext's session.Client is
// stashed under, so a Collection method can pick it up when called with a
// context produced by NewSessionContext instead of an explicit session
// argument.
type sessionKey struct{}

// SessionContext carries a logical session (spec.md §5) alongside a
// context.Context, so operations issued within UseSession/WithTransaction
// share one lsid/txnNumber without every call threading the session
// through explicitly.
type SessionContext interface {
	context.Context
	Session() *session.Client
}

type sessionContext struct {
	context.Context
	sess *session.Client
}

func (sc sessionContext) Session() *session.Client { return sc.sess }

// NewSessionContext returns a context carrying sess, retrievable either via
// SessionContext.Session or SessionFromContext.
func NewSessionContext(ctx context.Context, sess *session.Client) SessionContext {
	return sessionContext{Context: context.WithValue(ctx, sessionKey{}, sess), sess: sess}
}

// SessionFromContext returns the session.Client bound to ctx, if any.
func SessionFromContext(ctx context.Context) (*session.Client, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*session.Client)
	return sess, ok
}
