package auth

import (
	"context"

	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

// X509Authenticator implements MONGODB-X509: the client's identity is the
// certificate presented during the TLS handshake, so authentication is a
// single `authenticate` command rather than a SASL conversation.
type X509Authenticator struct {
	cred *Credential
}

// Auth implements topology.Authenticator.
func (a *X509Authenticator) Auth(ctx context.Context, desc description.Server, conn driver.Connection) error {
	idx, doc := bsoncore.AppendDocumentStart(nil)
	doc = bsoncore.AppendInt32Element(doc, "authenticate", 1)
	doc = bsoncore.AppendStringElement(doc, "mechanism", "MONGODB-X509")
	if a.cred.Username != "" {
		doc = bsoncore.AppendStringElement(doc, "user", a.cred.Username)
	}
	doc, err := bsoncore.AppendDocumentEnd(doc, idx)
	if err != nil {
		return err
	}

	reply, err := runCommand(ctx, conn, authSource(a.cred, true), doc)
	if err != nil {
		return err
	}
	return extractCommandError(reply)
}

var _ Authenticator = (*X509Authenticator)(nil)
