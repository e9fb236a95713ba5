package operation

import (
	"context"
	"testing"

	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/wiremessage"
)

// writtenDocSequenceLen decodes a wire message previously captured from
// fakeConn.writes and returns the number of documents in its "documents"
// document sequence, the same shape Insert.command's batch produces.
func writtenDocSequenceLen(t *testing.T, wm []byte) int {
	t.Helper()
	hdr, rest, err := wiremessage.ReadHeader(wm)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	msg, err := wiremessage.ReadMsg(hdr, rest)
	if err != nil {
		t.Fatalf("ReadMsg: %v", err)
	}
	for _, s := range msg.Sections {
		if s.Kind == wiremessage.SectionKindDocumentSequence && s.Identifier == "documents" {
			return len(s.Documents)
		}
	}
	t.Fatal("no documents sequence section found")
	return 0
}

// numberedDoc builds a minimal valid BSON document {n: <int32>}.
func numberedDoc(t *testing.T, n int) bsoncore.Document {
	t.Helper()
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendInt32Element(dst, "n", int32(n))
	doc, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return doc
}

func TestInsertSplitsIntoMaxWriteBatchSizeChunks(t *testing.T) {
	desc := description.Server{WireVersion: wireVersion(21), MaxWriteBatchSize: 2}

	docs := make([]bsoncore.Document, 5)
	for i := range docs {
		docs[i] = numberedDoc(t, i)
	}

	// One probe SelectServer call to learn MaxWriteBatchSize, then one
	// SelectServer + round trip per batch: ceil(5/2) == 3 batches.
	conn := &fakeConn{
		desc:    desc,
		replies: [][]byte{okReply(t), okReply(t), okReply(t)},
	}
	srv := &fakeServer{conn: conn, desc: desc}
	dep := &fakeDeployment{servers: []*fakeServer{srv, srv, srv, srv}}

	ins := NewInsert("coll", docs...).Database("db").Deployment(dep)
	if _, err := ins.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(conn.writes) != 3 {
		t.Fatalf("got %d insert commands, want 3", len(conn.writes))
	}
	wantLens := []int{2, 2, 1}
	for i, wm := range conn.writes {
		if got := writtenDocSequenceLen(t, wm); got != wantLens[i] {
			t.Fatalf("batch %d: ops.length = %d, want %d", i, got, wantLens[i])
		}
	}
}

func TestInsertSingleBatchWhenUnderLimit(t *testing.T) {
	desc := description.Server{WireVersion: wireVersion(21), MaxWriteBatchSize: 100000}
	docs := []bsoncore.Document{numberedDoc(t, 1), numberedDoc(t, 2)}

	conn := &fakeConn{desc: desc, replies: [][]byte{okReply(t)}}
	srv := &fakeServer{conn: conn, desc: desc}
	dep := &fakeDeployment{servers: []*fakeServer{srv, srv}}

	ins := NewInsert("coll", docs...).Database("db").Deployment(dep)
	if _, err := ins.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.writes) != 1 {
		t.Fatalf("got %d insert commands, want 1", len(conn.writes))
	}
	if got := writtenDocSequenceLen(t, conn.writes[0]); got != 2 {
		t.Fatalf("ops.length = %d, want 2", got)
	}
}

func TestInsertDefaultsMaxWriteBatchSizeWhenUnreported(t *testing.T) {
	desc := description.Server{WireVersion: wireVersion(21)} // MaxWriteBatchSize left 0
	docs := []bsoncore.Document{numberedDoc(t, 1)}

	conn := &fakeConn{desc: desc, replies: [][]byte{okReply(t)}}
	srv := &fakeServer{conn: conn, desc: desc}
	dep := &fakeDeployment{servers: []*fakeServer{srv, srv}}

	ins := NewInsert("coll", docs...).Database("db").Deployment(dep)
	if _, err := ins.Execute(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conn.writes) != 1 {
		t.Fatalf("got %d insert commands, want 1 (defaultMaxWriteBatchSize should have covered it)", len(conn.writes))
	}
}
