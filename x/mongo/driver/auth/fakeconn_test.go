package auth

import (
	"context"
	"io"

	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/wiremessage"
)

// fakeConn is a driver.Connection double that plays back a fixed sequence of
// OP_MSG reply documents and records every command sent to it, so the
// mechanisms above can be exercised without a real server.
type fakeConn struct {
	replies [][]byte
	idx     int
	sent    []bsoncore.Document
}

func newFakeConn(replyDocs ...bsoncore.Document) *fakeConn {
	c := &fakeConn{}
	for _, d := range replyDocs {
		wire, err := wiremessage.NewMsg(int32(len(c.replies)), d).Append(nil)
		if err != nil {
			panic(err)
		}
		c.replies = append(c.replies, wire)
	}
	return c
}

func (c *fakeConn) WriteWireMessage(_ context.Context, wm []byte) error {
	hdr, rest, err := wiremessage.ReadHeader(wm)
	if err != nil {
		return err
	}
	msg, err := wiremessage.ReadMsg(hdr, rest)
	if err != nil {
		return err
	}
	c.sent = append(c.sent, bsoncore.Document(msg.BodyDocument()))
	return nil
}

func (c *fakeConn) ReadWireMessage(_ context.Context) ([]byte, error) {
	if c.idx >= len(c.replies) {
		return nil, io.EOF
	}
	r := c.replies[c.idx]
	c.idx++
	return r, nil
}

func (c *fakeConn) Description() description.Server { return description.Server{} }
func (c *fakeConn) Close() error                     { return nil }
func (c *fakeConn) ID() string                       { return "fake" }
func (c *fakeConn) Address() address.Address         { return address.Address("fake:27017") }
func (c *fakeConn) Stale() bool                      { return false }

func okReply() bsoncore.Document {
	idx, doc := bsoncore.AppendDocumentStart(nil)
	doc = bsoncore.AppendInt32Element(doc, "ok", 1)
	doc, _ = bsoncore.AppendDocumentEnd(doc, idx)
	return bsoncore.Document(doc)
}

func notOKReply(errmsg string) bsoncore.Document {
	idx, doc := bsoncore.AppendDocumentStart(nil)
	doc = bsoncore.AppendInt32Element(doc, "ok", 0)
	doc = bsoncore.AppendStringElement(doc, "errmsg", errmsg)
	doc = bsoncore.AppendInt32Element(doc, "code", 18)
	doc, _ = bsoncore.AppendDocumentEnd(doc, idx)
	return bsoncore.Document(doc)
}

func saslReply(conversationID int32, done bool, payload []byte) bsoncore.Document {
	idx, doc := bsoncore.AppendDocumentStart(nil)
	doc = bsoncore.AppendInt32Element(doc, "ok", 1)
	doc = bsoncore.AppendInt32Element(doc, "conversationId", conversationID)
	doc = bsoncore.AppendBooleanElement(doc, "done", done)
	doc = bsoncore.AppendBinaryElement(doc, "payload", 0x00, payload)
	doc, _ = bsoncore.AppendDocumentEnd(doc, idx)
	return bsoncore.Document(doc)
}
