// Package bson implements the minimal slice of the BSON document model the
// driver's core needs: composite literal types for building documents,
// a handful of well-known scalar types, and reflection-based Marshal/
// Unmarshal for Go maps and structs. It intentionally does not reimplement
// the full codec/registry machinery of a standalone BSON library -- that is
// treated as an external collaborator (see DESIGN.md).
package bson

import (
	"fmt"
	"time"
)

// Type is a BSON element type tag, matching the wire-format byte values.
type Type byte

// The BSON type tags used by this driver. Types the core never puts on the
// wire (DBPointer, old-style binary subtypes, etc.) are omitted.
const (
	TypeDouble          Type = 0x01
	TypeString          Type = 0x02
	TypeEmbeddedDocument Type = 0x03
	TypeArray           Type = 0x04
	TypeBinary          Type = 0x05
	TypeUndefined       Type = 0x06
	TypeObjectID        Type = 0x07
	TypeBoolean         Type = 0x08
	TypeDateTime        Type = 0x09
	TypeNull            Type = 0x0A
	TypeRegex           Type = 0x0B
	TypeJavaScript      Type = 0x0D
	TypeSymbol          Type = 0x0E
	TypeInt32           Type = 0x10
	TypeTimestamp       Type = 0x11
	TypeInt64           Type = 0x12
	TypeDecimal128      Type = 0x13
	TypeMinKey          Type = 0xFF
	TypeMaxKey          Type = 0x7F
)

func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeEmbeddedDocument:
		return "document"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binary"
	case TypeUndefined:
		return "undefined"
	case TypeObjectID:
		return "objectID"
	case TypeBoolean:
		return "bool"
	case TypeDateTime:
		return "datetime"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeJavaScript:
		return "javascript"
	case TypeSymbol:
		return "symbol"
	case TypeInt32:
		return "int32"
	case TypeTimestamp:
		return "timestamp"
	case TypeInt64:
		return "int64"
	case TypeDecimal128:
		return "decimal128"
	case TypeMinKey:
		return "minKey"
	case TypeMaxKey:
		return "maxKey"
	default:
		return fmt.Sprintf("Type(%#x)", byte(t))
	}
}

// E represents a BSON document element: a key/value pair. Used inside a D to
// preserve field order, the way the teacher's bson.E does.
type E struct {
	Key   string
	Value interface{}
}

// D is an ordered BSON document, represented as a slice of elements so that
// field order is preserved on the wire (servers are order-sensitive for
// command documents).
type D []E

// M is an unordered BSON document represented as a Go map. Field order is
// not preserved; use D when order matters (e.g. command documents).
type M map[string]interface{}

// A is a BSON array.
type A []interface{}

// Append returns a copy of d with the given key/value appended. It exists so
// call sites can build documents fluently without repeating "D{...}" at every
// step (mirrors the teacher's bsonx.Doc builder convenience methods).
func (d D) Append(key string, value interface{}) D {
	return append(d, E{Key: key, Value: value})
}

// Map converts d to an M, discarding order. Useful for tests and lookups.
func (d D) Map() M {
	m := make(M, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

// ObjectID is a 12-byte BSON ObjectID: a 4-byte timestamp, a 5-byte random
// process identifier, and a 3-byte counter, matching the BSON spec.
type ObjectID [12]byte

// NilObjectID is the zero-value ObjectID.
var NilObjectID ObjectID

// Timestamp is a BSON internal timestamp type: a 4-byte seconds-since-epoch
// value T and a 4-byte ordinal counter I, used for cluster time / operation
// time values (spec.md §4.6 step 6).
type Timestamp struct {
	T uint32
	I uint32
}

// Compare returns -1, 0, or 1 if ts is less than, equal to, or greater than
// other, comparing T first and I to break ties -- the ordering cluster time
// and operation time folding (spec.md §5) is defined over.
func (ts Timestamp) Compare(other Timestamp) int {
	switch {
	case ts.T != other.T:
		if ts.T < other.T {
			return -1
		}
		return 1
	case ts.I != other.I:
		if ts.I < other.I {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// DateTime represents the BSON datetime type: milliseconds since the Unix
// epoch, stored as an int64 the way the wire format does, with conversions
// to/from time.Time.
type DateTime int64

// NewDateTimeFromTime converts a time.Time to a DateTime.
func NewDateTimeFromTime(t time.Time) DateTime {
	return DateTime(t.UnixNano() / int64(time.Millisecond))
}

// Time converts a DateTime back to a time.Time in UTC.
func (d DateTime) Time() time.Time {
	return time.Unix(int64(d)/1000, int64(d)%1000*1000000).UTC()
}

// Binary represents the BSON binary type: a subtype tag and the raw payload.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Regex represents the BSON regular-expression type.
type Regex struct {
	Pattern string
	Options string
}

// Decimal128 is an opaque 128-bit IEEE 754-2008 decimal value, stored as its
// raw high/low words. The driver core only needs to round-trip this value,
// never compute with it, so no arithmetic is implemented.
type Decimal128 struct {
	H, L uint64
}

// MinKey and MaxKey are BSON's comparison sentinels, used in tag-set and
// staleness bound literals in tests.
type MinKeyType struct{}
type MaxKeyType struct{}

var MinKey = MinKeyType{}
var MaxKey = MaxKeyType{}

// Undefined represents the deprecated BSON undefined type.
type Undefined struct{}

// JavaScript represents the BSON JavaScript code type.
type JavaScript string

// Symbol represents the deprecated BSON symbol type.
type Symbol string
