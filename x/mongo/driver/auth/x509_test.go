package auth

import (
	"context"
	"testing"

	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

func TestX509AuthenticatorAuth(t *testing.T) {
	conn := newFakeConn(okReply())
	a := &X509Authenticator{cred: &Credential{Username: "CN=client,OU=test"}}

	if err := a.Auth(context.Background(), description.Server{}, conn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.sent) != 1 {
		t.Fatalf("expected a single authenticate command, got %d", len(conn.sent))
	}

	cmd := conn.sent[0]
	if mech, err := cmd.LookupErr("mechanism"); err != nil || mech.StringValue() != "MONGODB-X509" {
		t.Fatalf("mechanism = %v, err=%v, want MONGODB-X509", mech, err)
	}
	if user, err := cmd.LookupErr("user"); err != nil || user.StringValue() != "CN=client,OU=test" {
		t.Fatalf("user = %v, err=%v, want CN=client,OU=test", user, err)
	}
	if db, err := cmd.LookupErr("$db"); err != nil || db.StringValue() != "$external" {
		t.Fatalf("$db = %v, err=%v, want $external", db, err)
	}
}

func TestX509AuthenticatorAuthOmitsUserWhenUnset(t *testing.T) {
	conn := newFakeConn(okReply())
	a := &X509Authenticator{cred: &Credential{}}

	if err := a.Auth(context.Background(), description.Server{}, conn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := conn.sent[0].LookupErr("user"); err == nil {
		t.Fatal("expected no user field when the certificate's subject is relied on implicitly")
	}
}

func TestX509AuthenticatorAuthRejected(t *testing.T) {
	conn := newFakeConn(notOKReply("not authorized"))
	a := &X509Authenticator{cred: &Credential{Username: "CN=client"}}

	if err := a.Auth(context.Background(), description.Server{}, conn); err == nil {
		t.Fatal("expected an error when the server rejects the certificate")
	}
}
