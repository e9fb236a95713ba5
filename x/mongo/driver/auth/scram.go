package auth

import (
	"context"

	"github.com/xdg-go/scram"

	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

// ScramAuthenticator implements SCRAM-SHA-1/SCRAM-SHA-256 (RFC 5802),
// MongoDB's default authentication mechanisms.
type ScramAuthenticator struct {
	cred      *Credential
	mechanism string // "SCRAM-SHA-1" or "SCRAM-SHA-256"
}

// Auth implements topology.Authenticator.
func (a *ScramAuthenticator) Auth(ctx context.Context, desc description.Server, conn driver.Connection) error {
	hash := scram.SHA256
	if a.mechanism == "SCRAM-SHA-1" {
		hash = scram.SHA1
	}

	client, err := hash.NewClient(a.cred.Username, a.cred.Password, "")
	if err != nil {
		return err
	}
	conv := client.NewConversation()

	return conductSaslConversation(ctx, conn, authSource(a.cred, false), &scramClient{mechanism: a.mechanism, conv: conv})
}

// scramClient adapts an *scram.ClientConversation to the saslClient
// interface, converting between the library's string-based Step API and
// the wire protocol's raw byte payloads.
type scramClient struct {
	mechanism string
	conv      *scram.ClientConversation
	done      bool
}

func (c *scramClient) Start() (string, []byte, error) {
	resp, err := c.conv.Step("")
	if err != nil {
		return c.mechanism, nil, err
	}
	return c.mechanism, []byte(resp), nil
}

func (c *scramClient) Next(challenge []byte) ([]byte, error) {
	resp, err := c.conv.Step(string(challenge))
	if err != nil {
		return nil, err
	}
	if c.conv.Done() {
		c.done = true
	}
	return []byte(resp), nil
}

func (c *scramClient) Completed() bool {
	return c.done || c.conv.Done()
}

var _ Authenticator = (*ScramAuthenticator)(nil)
var _ saslClient = (*scramClient)(nil)
