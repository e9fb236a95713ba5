package readconcern

import (
	"testing"

	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

func TestLevelConstructors(t *testing.T) {
	tests := []struct {
		name string
		rc   *ReadConcern
		want string
	}{
		{"local", Local(), "local"},
		{"majority", Majority(), "majority"},
		{"linearizable", Linearizable(), "linearizable"},
		{"available", Available(), "available"},
		{"snapshot", Snapshot(), "snapshot"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rc.Level(); got != tc.want {
				t.Fatalf("Level() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLevelNilReceiver(t *testing.T) {
	var rc *ReadConcern
	if got := rc.Level(); got != "" {
		t.Fatalf("Level() on nil = %q, want empty", got)
	}
}

func TestMarshalBSONValueSetLevel(t *testing.T) {
	typ, data, err := Majority().MarshalBSONValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != 0x03 {
		t.Fatalf("type = %#x, want 0x03 (document)", typ)
	}

	doc := bsoncore.Document(data)
	if err := doc.Validate(); err != nil {
		t.Fatalf("invalid document: %v", err)
	}
	level, err := doc.LookupErr("level")
	if err != nil {
		t.Fatalf("missing level element: %v", err)
	}
	if got := level.StringValue(); got != "majority" {
		t.Fatalf("level = %q, want majority", got)
	}
}

func TestMarshalBSONValueUnset(t *testing.T) {
	typ, data, err := New().MarshalBSONValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != 0x03 {
		t.Fatalf("type = %#x, want 0x03 (document)", typ)
	}

	doc := bsoncore.Document(data)
	elems, err := doc.Elements()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elems) != 0 {
		t.Fatalf("expected an empty document for an unset read concern, got %d elements", len(elems))
	}
}
