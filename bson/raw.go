package bson

import (
	"fmt"

	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

// Raw is an undecoded BSON document, typically a slice straight out of a
// wire-message read buffer. Element access is lazy and does not allocate,
// matching spec.md §4.5's requirement that large cursor batches incur no
// per-document allocation on decode.
type Raw []byte

// Lookup returns the RawValue for key, the zero RawValue if absent.
func (r Raw) Lookup(key string) RawValue {
	v, _ := r.LookupErr(key)
	return v
}

// LookupErr returns the RawValue for key and an error if absent or if r is
// not a valid document.
func (r Raw) LookupErr(key string) (RawValue, error) {
	v, err := bsoncore.Document(r).LookupErr(key)
	if err != nil {
		return RawValue{}, err
	}
	return RawValue{Type: Type(v.Type), Value: v.Data}, nil
}

// Elements returns the top-level (key, RawValue) pairs of r in document
// order.
func (r Raw) Elements() ([]RawElement, error) {
	elems, err := bsoncore.Document(r).Elements()
	if err != nil {
		return nil, err
	}
	out := make([]RawElement, len(elems))
	for i, e := range elems {
		out[i] = RawElement{key: e.Key(), value: RawValue{Type: Type(e.Value().Type), Value: e.Value().Data}}
	}
	return out, nil
}

// Validate reports whether r is a structurally valid BSON document.
func (r Raw) Validate() error { return bsoncore.Document(r).Validate() }

// String returns a best-effort human-readable rendering of r (never used on
// the hot path; the teacher's logger truncates this before logging it).
func (r Raw) String() string {
	elems, err := r.Elements()
	if err != nil {
		return "<malformed>"
	}
	s := "{"
	for i, e := range elems {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%q: %v", e.Key(), e.Value().debugString())
	}
	return s + "}"
}

// RawElement is a (key, RawValue) pair returned by Raw.Elements.
type RawElement struct {
	key   string
	value RawValue
}

// Key returns the element's key.
func (e RawElement) Key() string { return e.key }

// Value returns the element's RawValue.
func (e RawElement) Value() RawValue { return e.value }

// RawValue is an undecoded BSON value: a type tag plus its raw bytes.
type RawValue struct {
	Type  Type
	Value []byte
}

// StringValueOK returns the string value and whether v holds one.
func (v RawValue) StringValueOK() (string, bool) {
	if v.Type != TypeString {
		return "", false
	}
	return bsoncore.Value{Type: 0x02, Data: v.Value}.StringValueOK()
}

// StringValue returns the string value, or "" if v does not hold one.
func (v RawValue) StringValue() string {
	s, _ := v.StringValueOK()
	return s
}

// Int32 returns the int32 value, or 0 if v does not hold one.
func (v RawValue) Int32() int32 {
	if v.Type != TypeInt32 {
		return 0
	}
	i, _ := bsoncore.Value{Type: 0x10, Data: v.Value}.Int32OK()
	return i
}

// Int64 returns the int64 value, or 0 if v does not hold one.
func (v RawValue) Int64() int64 {
	if v.Type != TypeInt64 {
		return 0
	}
	i, _ := bsoncore.Value{Type: 0x12, Data: v.Value}.Int64OK()
	return i
}

// Double returns the float64 value, or 0 if v does not hold one.
func (v RawValue) Double() float64 {
	if v.Type != TypeDouble {
		return 0
	}
	d, _ := bsoncore.Value{Type: 0x01, Data: v.Value}.DoubleOK()
	return d
}

// Boolean returns the bool value, or false if v does not hold one.
func (v RawValue) Boolean() bool {
	if v.Type != TypeBoolean {
		return false
	}
	b, _ := bsoncore.Value{Type: 0x08, Data: v.Value}.BooleanOK()
	return b
}

// Document returns v reinterpreted as a Raw document.
func (v RawValue) Document() Raw {
	if v.Type != TypeEmbeddedDocument {
		return nil
	}
	return Raw(v.Value)
}

// Array returns v reinterpreted as a Raw array (elements keyed by index).
func (v RawValue) Array() Raw {
	if v.Type != TypeArray {
		return nil
	}
	return Raw(v.Value)
}

// Timestamp returns the (t, i) pair of a Timestamp value.
func (v RawValue) Timestamp() (t, i uint32) {
	if v.Type != TypeTimestamp {
		return 0, 0
	}
	return bsoncore.Value{Type: 0x11, Data: v.Value}.Timestamp()
}

// ObjectID returns the ObjectID value.
func (v RawValue) ObjectID() ObjectID {
	if v.Type != TypeObjectID || len(v.Value) < 12 {
		return NilObjectID
	}
	var id ObjectID
	copy(id[:], v.Value[:12])
	return id
}

// AsInt64 coerces a Double, Int32, or Int64 value to int64, returning 0 for
// any other type. Server replies send numeric fields in whichever of these
// types is most compact, so callers that just want "the number" use this
// instead of the type-specific accessors.
func (v RawValue) AsInt64() int64 {
	switch v.Type {
	case TypeInt32:
		return int64(v.Int32())
	case TypeInt64:
		return v.Int64()
	case TypeDouble:
		return int64(v.Double())
	default:
		return 0
	}
}

// Values returns the elements of an array value, in index order.
func (v RawValue) Values() ([]RawValue, error) {
	arr := v.Array()
	if arr == nil {
		return nil, fmt.Errorf("bson: value of type %s is not an array", v.Type)
	}
	elems, err := arr.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]RawValue, len(elems))
	for i, e := range elems {
		out[i] = e.Value()
	}
	return out, nil
}

// Binary returns the subtype and data of a Binary value.
func (v RawValue) Binary() (subtype byte, data []byte) {
	if v.Type != TypeBinary {
		return 0, nil
	}
	subtype, data, _ = bsoncore.Value{Type: 0x05, Data: v.Value}.BinaryOK()
	return subtype, data
}

// DateTime returns the DateTime value, or 0 if v does not hold one.
func (v RawValue) DateTime() DateTime {
	if v.Type != TypeDateTime {
		return 0
	}
	i, _ := bsoncore.Value{Type: 0x09, Data: v.Value}.Int64OK()
	return DateTime(i)
}

func (v RawValue) debugString() interface{} {
	switch v.Type {
	case TypeString:
		return v.StringValue()
	case TypeInt32:
		return v.Int32()
	case TypeInt64:
		return v.Int64()
	case TypeDouble:
		return v.Double()
	case TypeBoolean:
		return v.Boolean()
	case TypeEmbeddedDocument:
		return v.Document().String()
	case TypeNull:
		return nil
	default:
		return fmt.Sprintf("<%s>", v.Type)
	}
}
