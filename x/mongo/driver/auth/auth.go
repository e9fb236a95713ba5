// Package auth implements the SASL/X.509 authentication mechanisms run
// once per connection immediately after the hello handshake (spec.md
// §4.2). Authenticator implementations depend only on driver.Connection,
// wiremessage, and bsoncore -- never on the topology package itself -- so
// that topology.Authenticator (a structurally-matched interface) can be
// satisfied without an import cycle.
package auth

import (
	"context"
	"fmt"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/wiremessage"
)

// Credential holds the pieces of an authentication mechanism negotiation:
// which mechanism to use, the principal, and its secret.
type Credential struct {
	Source    string // authentication database, defaults to "admin" (or "$external" for X.509/PLAIN)
	Username  string
	Password  string
	Mechanism string // SCRAM-SHA-1, SCRAM-SHA-256, MONGODB-X509, PLAIN, or "" (which selects SCRAM-SHA-256)
	Props     map[string]string
}

// Authenticator authenticates a connection against a server, implementing
// topology.Authenticator structurally.
type Authenticator interface {
	Auth(ctx context.Context, desc description.Server, conn driver.Connection) error
}

// CreateAuthenticator builds the Authenticator for cred.Mechanism.
func CreateAuthenticator(cred *Credential) (Authenticator, error) {
	switch cred.Mechanism {
	case "", "SCRAM-SHA-256":
		return &ScramAuthenticator{cred: cred, mechanism: "SCRAM-SHA-256"}, nil
	case "SCRAM-SHA-1":
		return &ScramAuthenticator{cred: cred, mechanism: "SCRAM-SHA-1"}, nil
	case "MONGODB-X509":
		return &X509Authenticator{cred: cred}, nil
	case "PLAIN":
		return &PlainAuthenticator{cred: cred}, nil
	default:
		return nil, fmt.Errorf("auth: unsupported mechanism %q", cred.Mechanism)
	}
}

func authSource(cred *Credential, externalDefault bool) string {
	if cred.Source != "" {
		return cred.Source
	}
	if externalDefault {
		return "$external"
	}
	return "admin"
}

// runCommand sends a single OP_MSG body-section command on conn, returning
// the decoded reply document. Duplicated (in miniature) from
// topology.roundTripCommand rather than shared, since auth must not import
// topology.
func runCommand(ctx context.Context, conn driver.Connection, db string, cmd bsoncore.Document) (bson.Raw, error) {
	idx, full := bsoncore.AppendDocumentStart(nil)
	full = append(full, cmd[4:len(cmd)-1]...)
	full = bsoncore.AppendStringElement(full, "$db", db)
	full, err := bsoncore.AppendDocumentEnd(full, idx)
	if err != nil {
		return nil, err
	}

	msg := wiremessage.NewMsg(1, full)
	wire, err := msg.Append(nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteWireMessage(ctx, wire); err != nil {
		return nil, err
	}
	raw, err := conn.ReadWireMessage(ctx)
	if err != nil {
		return nil, err
	}
	hdr, rest, err := wiremessage.ReadHeader(raw)
	if err != nil {
		return nil, err
	}
	replyMsg, err := wiremessage.ReadMsg(hdr, rest)
	if err != nil {
		return nil, err
	}
	return bson.Raw(replyMsg.BodyDocument()), nil
}

func extractCommandError(reply bson.Raw) error {
	return driver.ExtractError(reply)
}
