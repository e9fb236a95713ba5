// Package writeconcern defines the acknowledgment level write operations
// request from the server, appended to a command's "writeConcern" field.
package writeconcern

import (
	"errors"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

// ErrEmptyWriteConcern is returned by MarshalBSONValue for a WriteConcern
// with nothing set, signaling the caller to omit the field entirely rather
// than send an empty document.
var ErrEmptyWriteConcern = errors.New("writeconcern: empty write concern")

// WriteConcern describes how many nodes must acknowledge a write (W),
// whether it must be journaled, and how long to wait before giving up.
type WriteConcern struct {
	w        interface{} // nil, int, or string (e.g. "majority")
	wSet     bool
	journal  *bool
	wTimeout time.Duration
}

// Option configures a WriteConcern.
type Option func(*WriteConcern)

// New builds a WriteConcern from the given options.
func New(opts ...Option) *WriteConcern {
	wc := &WriteConcern{}
	for _, opt := range opts {
		opt(wc)
	}
	return wc
}

// W sets the number of nodes that must acknowledge the write.
func W(w int) Option {
	return func(wc *WriteConcern) { wc.w, wc.wSet = w, true }
}

// WMajority requires acknowledgment from a majority of voting members.
func WMajority() Option {
	return func(wc *WriteConcern) { wc.w, wc.wSet = "majority", true }
}

// WTagSet requires acknowledgment from members matching a custom getLastErrorModes tag.
func WTagSet(tag string) Option {
	return func(wc *WriteConcern) { wc.w, wc.wSet = tag, true }
}

// J requires the write be committed to the on-disk journal.
func J(journal bool) Option {
	return func(wc *WriteConcern) { wc.journal = &journal }
}

// WTimeout bounds how long the server waits for acknowledgment.
func WTimeout(d time.Duration) Option {
	return func(wc *WriteConcern) { wc.wTimeout = d }
}

// AckWrite reports whether wc requests acknowledgment at all; an
// unacknowledged write (w=0) cannot be retried since the client never
// learns whether it succeeded.
func AckWrite(wc *WriteConcern) bool {
	if wc == nil || !wc.wSet {
		return true
	}
	if n, ok := wc.w.(int); ok {
		return n != 0
	}
	return true
}

// MarshalBSONValue encodes wc as a BSON document value
// ({w: ..., j: ..., wtimeout: ...}).
func (wc *WriteConcern) MarshalBSONValue() (byte, []byte, error) {
	if wc == nil || (!wc.wSet && wc.journal == nil && wc.wTimeout == 0) {
		return 0, nil, ErrEmptyWriteConcern
	}

	idx, doc := bsoncore.AppendDocumentStart(nil)
	if wc.wSet {
		switch w := wc.w.(type) {
		case int:
			doc = bsoncore.AppendInt32Element(doc, "w", int32(w))
		case string:
			doc = bsoncore.AppendStringElement(doc, "w", w)
		}
	}
	if wc.journal != nil {
		doc = bsoncore.AppendBooleanElement(doc, "j", *wc.journal)
	}
	if wc.wTimeout != 0 {
		doc = bsoncore.AppendInt64Element(doc, "wtimeout", wc.wTimeout.Milliseconds())
	}
	doc, err := bsoncore.AppendDocumentEnd(doc, idx)
	return 0x03, doc, err
}
