package auth

import (
	"context"

	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

// PlainAuthenticator implements PLAIN (RFC 4616), a single-round SASL
// mechanism typically used with LDAP-backed deployments.
type PlainAuthenticator struct {
	cred *Credential
}

// Auth implements topology.Authenticator.
func (a *PlainAuthenticator) Auth(ctx context.Context, desc description.Server, conn driver.Connection) error {
	return conductSaslConversation(ctx, conn, authSource(a.cred, true), &plainClient{cred: a.cred})
}

type plainClient struct {
	cred *Credential
	done bool
}

func (c *plainClient) Start() (string, []byte, error) {
	payload := []byte("\x00" + c.cred.Username + "\x00" + c.cred.Password)
	c.done = true
	return "PLAIN", payload, nil
}

func (c *plainClient) Next(challenge []byte) ([]byte, error) {
	return nil, nil
}

func (c *plainClient) Completed() bool { return c.done }

var _ Authenticator = (*PlainAuthenticator)(nil)
var _ saslClient = (*plainClient)(nil)
