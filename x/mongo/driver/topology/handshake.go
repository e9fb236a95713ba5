package topology

import (
	"context"
	"fmt"
	"runtime"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/wiremessage"
)

// clientDriverName/Version identify this driver in the handshake's "client"
// document, the same metadata field every wire-protocol client sends.
const clientDriverName = "nimbus-go-driver"

// DriverVersion is the version string reported in the handshake; set at
// build time via -ldflags, defaulting to "dev".
var DriverVersion = "dev"

// Authenticator performs SASL/X.509 authentication over a freshly
// handshaken connection. Defined in terms of driver.Connection (rather
// than the private *connection type, and rather than importing the auth
// package directly) so the auth package's concrete Authenticator types can
// satisfy it structurally without topology needing to import auth.
type Authenticator interface {
	Auth(ctx context.Context, desc description.Server, conn driver.Connection) error
}

// defaultHandshake builds the hello/isMaster handshake function used both
// for application connections (with optional auth) and for monitor
// heartbeats (with auth always nil).
func defaultHandshake(appName string, compressors []string, auth Authenticator) handshakeFunc {
	return func(ctx context.Context, conn *connection) (description.Server, error) {
		idx, doc := bsoncore.AppendDocumentStart(nil)
		doc = bsoncore.AppendInt32Element(doc, "hello", 1)
		doc = bsoncore.AppendBooleanElement(doc, "helloOk", true)
		{
			cidx, cdoc := bsoncore.AppendDocumentElementStart(doc, "client")
			cdoc = appendClientDoc(cdoc, appName)
			doc, _ = bsoncore.AppendDocumentEnd(cdoc, cidx)
		}
		if len(compressors) > 0 {
			aidx, adoc := bsoncore.AppendArrayElementStart(doc, "compression")
			for i, name := range compressors {
				adoc = bsoncore.AppendStringElement(adoc, itoa(i), name)
			}
			doc = bsoncore.AppendArrayEnd(adoc, aidx)
		}
		doc, err := bsoncore.AppendDocumentEnd(doc, idx)
		if err != nil {
			return description.Server{}, err
		}

		reply, err := roundTripCommand(ctx, conn, "admin", doc)
		if err != nil {
			return description.Server{}, err
		}
		if err := driver.ExtractError(reply); err != nil {
			return description.Server{}, err
		}

		desc, err := description.NewServerFromHello(conn.addr, reply, 0, false)
		if err != nil {
			return description.Server{}, err
		}

		if auth != nil {
			if err := auth.Auth(ctx, desc, conn); err != nil {
				return description.Server{}, fmt.Errorf("topology: authentication failed: %w", err)
			}
		}
		return desc, nil
	}
}

// appendClientDoc appends the handshake's "client" metadata document
// ({application: {name}, os: {type, architecture}, driver: {name, version}})
// to dst, which must already be positioned as the value bytes of a
// "client" document element.
func appendClientDoc(dst []byte, appName string) []byte {
	if appName != "" {
		aidx, adoc := bsoncore.AppendDocumentElementStart(dst, "application")
		adoc = bsoncore.AppendStringElement(adoc, "name", appName)
		dst, _ = bsoncore.AppendDocumentEnd(adoc, aidx)
	}

	osIdx, osDoc := bsoncore.AppendDocumentElementStart(dst, "os")
	osDoc = bsoncore.AppendStringElement(osDoc, "type", runtime.GOOS)
	osDoc = bsoncore.AppendStringElement(osDoc, "architecture", runtime.GOARCH)
	dst, _ = bsoncore.AppendDocumentEnd(osDoc, osIdx)

	drvIdx, drvDoc := bsoncore.AppendDocumentElementStart(dst, "driver")
	drvDoc = bsoncore.AppendStringElement(drvDoc, "name", clientDriverName)
	drvDoc = bsoncore.AppendStringElement(drvDoc, "version", DriverVersion)
	dst, _ = bsoncore.AppendDocumentEnd(drvDoc, drvIdx)

	return dst
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [12]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// roundTripCommand sends a single OP_MSG body-section command on conn and
// returns the decoded reply document.
func roundTripCommand(ctx context.Context, conn *connection, db string, cmd bsoncore.Document) (bson.Raw, error) {
	idx, full := bsoncore.AppendDocumentStart(nil)
	full = append(full, cmd[4:len(cmd)-1]...) // splice cmd's elements into a new doc that also carries $db
	full = bsoncore.AppendStringElement(full, "$db", db)
	full, err := bsoncore.AppendDocumentEnd(full, idx)
	if err != nil {
		return nil, err
	}

	msg := wiremessage.NewMsg(conn.nextRequestID(), full)
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
