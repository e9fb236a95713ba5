package writeconcern

import (
	"errors"
	"testing"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

func TestMarshalBSONValueEmpty(t *testing.T) {
	_, _, err := New().MarshalBSONValue()
	if !errors.Is(err, ErrEmptyWriteConcern) {
		t.Fatalf("err = %v, want ErrEmptyWriteConcern", err)
	}
}

func TestMarshalBSONValueW(t *testing.T) {
	typ, data, err := New(W(2)).MarshalBSONValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != 0x03 {
		t.Fatalf("type = %#x, want 0x03", typ)
	}
	doc := bsoncore.Document(data)
	w, err := doc.LookupErr("w")
	if err != nil {
		t.Fatalf("missing w element: %v", err)
	}
	if got := w.Int32(); got != 2 {
		t.Fatalf("w = %d, want 2", got)
	}
}

func TestMarshalBSONValueWMajority(t *testing.T) {
	typ, data, err := New(WMajority()).MarshalBSONValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != 0x03 {
		t.Fatalf("type = %#x, want 0x03", typ)
	}
	doc := bsoncore.Document(data)
	w, err := doc.LookupErr("w")
	if err != nil {
		t.Fatalf("missing w element: %v", err)
	}
	if got := w.StringValue(); got != "majority" {
		t.Fatalf("w = %q, want majority", got)
	}
}

func TestMarshalBSONValueWTagSet(t *testing.T) {
	_, data, err := New(WTagSet("multiDC")).MarshalBSONValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := bsoncore.Document(data)
	w, err := doc.LookupErr("w")
	if err != nil {
		t.Fatalf("missing w element: %v", err)
	}
	if got := w.StringValue(); got != "multiDC" {
		t.Fatalf("w = %q, want multiDC", got)
	}
}

func TestMarshalBSONValueJournalAndTimeout(t *testing.T) {
	_, data, err := New(J(true), WTimeout(500*time.Millisecond)).MarshalBSONValue()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := bsoncore.Document(data)

	j, err := doc.LookupErr("j")
	if err != nil {
		t.Fatalf("missing j element: %v", err)
	}
	if !j.Boolean() {
		t.Fatal("j = false, want true")
	}

	wt, err := doc.LookupErr("wtimeout")
	if err != nil {
		t.Fatalf("missing wtimeout element: %v", err)
	}
	if got := wt.Int64(); got != 500 {
		t.Fatalf("wtimeout = %d, want 500", got)
	}
}

func TestAckWrite(t *testing.T) {
	tests := []struct {
		name string
		wc   *WriteConcern
		want bool
	}{
		{"nil", nil, true},
		{"unset", New(), true},
		{"w majority", New(WMajority()), true},
		{"w positive", New(W(3)), true},
		{"w zero", New(W(0)), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := AckWrite(tc.wc); got != tc.want {
				t.Fatalf("AckWrite() = %v, want %v", got, tc.want)
			}
		})
	}
}
