package wiremessage

import (
	"bytes"
	"testing"
)

func TestNextRequestIDUnique(t *testing.T) {
	a := NextRequestID()
	b := NextRequestID()
	if a == b {
		t.Fatalf("NextRequestID returned the same value twice: %d", a)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{MessageLength: 42, RequestID: 7, ResponseTo: 3, OpCode: OpMsg}
	dst := h.AppendHeader(nil)

	got, rest, err := ReadHeader(dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no bytes left over, got %d", len(rest))
	}
}

func TestReadHeaderTooShort(t *testing.T) {
	if _, _, err := ReadHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a short header")
	}
}

func TestMsgAppendAndReadRoundTrip(t *testing.T) {
	body := []byte{5, 0, 0, 0, 0} // minimal empty BSON document (length=5, terminator)
	msg := NewMsg(11, body)

	wire, err := msg.Append(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hdr, rest, err := ReadHeader(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hdr.OpCode != OpMsg {
		t.Fatalf("OpCode = %v, want OpMsg", hdr.OpCode)
	}
	if hdr.RequestID != 11 {
		t.Fatalf("RequestID = %d, want 11", hdr.RequestID)
	}
	if int(hdr.MessageLength) != len(wire) {
		t.Fatalf("MessageLength = %d, want %d", hdr.MessageLength, len(wire))
	}

	decoded, err := ReadMsg(hdr, rest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded.BodyDocument(), body) {
		t.Fatalf("BodyDocument() = %v, want %v", decoded.BodyDocument(), body)
	}
}

func TestMsgAppendSequence(t *testing.T) {
	body := []byte{5, 0, 0, 0, 0}
	doc1 := []byte{5, 0, 0, 0, 0}
	doc2 := []byte{5, 0, 0, 0, 0}

	msg := NewMsg(1, body)
	msg.AppendSequence("documents", [][]byte{doc1, doc2})

	wire, err := msg.Append(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hdr, rest, err := ReadHeader(wire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := ReadMsg(hdr, rest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(decoded.Sections) != 2 {
		t.Fatalf("len(Sections) = %d, want 2", len(decoded.Sections))
	}
	seq := decoded.Sections[1]
	if seq.Kind != SectionKindDocumentSequence {
		t.Fatalf("Sections[1].Kind = %v, want SectionKindDocumentSequence", seq.Kind)
	}
	if seq.Identifier != "documents" {
		t.Fatalf("Identifier = %q, want documents", seq.Identifier)
	}
	if len(seq.Documents) != 2 {
		t.Fatalf("len(Documents) = %d, want 2", len(seq.Documents))
	}
}

func TestBodyDocumentAbsent(t *testing.T) {
	m := Msg{Sections: []Section{{Kind: SectionKindDocumentSequence, Identifier: "x"}}}
	if m.BodyDocument() != nil {
		t.Fatal("expected BodyDocument() to return nil when there is no body section")
	}
}

func TestOpCodeString(t *testing.T) {
	tests := []struct {
		code OpCode
		want string
	}{
		{OpReply, "OP_REPLY"},
		{OpCompressed, "OP_COMPRESSED"},
		{OpMsg, "OP_MSG"},
		{OpCode(999), "OpCode(999)"},
	}
	for _, tc := range tests {
		if got := tc.code.String(); got != tc.want {
			t.Fatalf("String() = %q, want %q", got, tc.want)
		}
	}
}
