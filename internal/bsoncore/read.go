package bsoncore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value is a BSON value: a type tag plus its raw encoded bytes (not
// including any element key). Obtained by walking a Document.
type Value struct {
	Type bsonType
	Data []byte
}

// Element is a single (key, Value) pair as it appears inside a Document,
// including the raw key bytes so re-serialization needs no copy.
type Element []byte

// Key returns the element's key.
func (e Element) Key() string {
	// element: <type byte><cstring key><value...>
	idx := 1
	for idx < len(e) && e[idx] != 0x00 {
		idx++
	}
	return string(e[1:idx])
}

// Value returns the element's Value.
func (e Element) Value() Value {
	idx := 1
	for idx < len(e) && e[idx] != 0x00 {
		idx++
	}
	return Value{Type: bsonType(e[0]), Data: e[idx+1:]}
}

// Validate walks d and reports whether its length prefix, element types, and
// terminating NUL byte are all internally consistent. It does not validate
// UTF-8 or recurse into nested documents beyond structural length checks.
func (d Document) Validate() error {
	if len(d) < 5 {
		return ErrMalformed
	}
	length, rem, ok := ReadLength(d)
	if !ok || int(length) != len(d) {
		return fmt.Errorf("%w: length %d does not match buffer size %d", ErrMalformed, length, len(d))
	}
	if d[len(d)-1] != 0x00 {
		return fmt.Errorf("%w: missing terminating null byte", ErrMalformed)
	}
	for len(rem) > 1 {
		elem, next, ok := readElement(rem)
		if !ok {
			return fmt.Errorf("%w: could not read element", ErrMalformed)
		}
		rem = next
		_ = elem
	}
	return nil
}

// readElement reads a single element off the front of src (which must start
// immediately after the document's length prefix, or after a prior
// element), returning the element and the remaining bytes.
func readElement(src []byte) (Element, []byte, bool) {
	if len(src) < 2 {
		return nil, src, false
	}
	t := bsonType(src[0])
	keyEnd := 1
	for keyEnd < len(src) && src[keyEnd] != 0x00 {
		keyEnd++
	}
	if keyEnd >= len(src) {
		return nil, src, false
	}
	valStart := keyEnd + 1
	valLen, ok := valueLength(t, src[valStart:])
	if !ok {
		return nil, src, false
	}
	end := valStart + valLen
	if end > len(src) {
		return nil, src, false
	}
	return Element(src[:end]), src[end:], true
}

// valueLength returns the number of bytes a value of type t occupies given
// its raw data (not including the preceding type byte and key).
func valueLength(t bsonType, data []byte) (int, bool) {
	switch t {
	case typeDouble, typeDateTime, typeTimestamp, typeInt64:
		return 8, len(data) >= 8
	case typeString, typeJavaScript, typeSymbol:
		if len(data) < 4 {
			return 0, false
		}
		l, _, _ := ReadLength(data)
		return 4 + int(l), len(data) >= 4+int(l)
	case typeEmbeddedDocument, typeArray:
		if len(data) < 4 {
			return 0, false
		}
		l, _, _ := ReadLength(data)
		return int(l), len(data) >= int(l)
	case typeBinary:
		if len(data) < 5 {
			return 0, false
		}
		l, _, _ := ReadLength(data)
		return 5 + int(l), len(data) >= 5+int(l)
	case typeObjectID:
		return 12, len(data) >= 12
	case typeBoolean:
		return 1, len(data) >= 1
	case typeNull, typeUndefined, typeMinKey, typeMaxKey:
		return 0, true
	case typeRegex:
		nuls := 0
		for i, b := range data {
			if b == 0x00 {
				nuls++
				if nuls == 2 {
					return i + 1, true
				}
			}
		}
		return 0, false
	case typeInt32:
		return 4, len(data) >= 4
	case typeDecimal128:
		return 16, len(data) >= 16
	default:
		return 0, false
	}
}

// Elements returns all top-level elements of d.
func (d Document) Elements() ([]Element, error) {
	if len(d) < 5 {
		return nil, ErrMalformed
	}
	_, rem, _ := ReadLength(d)
	var elems []Element
	for len(rem) > 1 {
		elem, next, ok := readElement(rem)
		if !ok {
			return nil, ErrMalformed
		}
		elems = append(elems, elem)
		rem = next
	}
	return elems, nil
}

// Lookup returns the Value for key, or a Value with Type 0 if not found.
func (d Document) Lookup(key string) Value {
	v, _ := d.LookupErr(key)
	return v
}

// LookupErr returns the Value for key and an error if it is not present.
func (d Document) LookupErr(key string) (Value, error) {
	elems, err := d.Elements()
	if err != nil {
		return Value{}, err
	}
	for _, e := range elems {
		if e.Key() == key {
			return e.Value(), nil
		}
	}
	return Value{}, fmt.Errorf("bsoncore: key %q not found", key)
}

// Index returns the element at the given top-level index (for arrays
// represented as Documents with numeric string keys).
func (d Document) Index(i uint) (Element, error) {
	elems, err := d.Elements()
	if err != nil {
		return nil, err
	}
	if int(i) >= len(elems) {
		return nil, fmt.Errorf("bsoncore: index %d out of range", i)
	}
	return elems[i], nil
}

// StringValueOK returns the string value and whether v held one.
func (v Value) StringValueOK() (string, bool) {
	if v.Type != typeString || len(v.Data) < 4 {
		return "", false
	}
	l, rest, ok := ReadLength(v.Data)
	if !ok || int(l) < 1 || len(rest) < int(l) {
		return "", false
	}
	return string(rest[:l-1]), true
}

// StringValue returns the string value, panicking if v is not a string.
func (v Value) StringValue() string {
	s, ok := v.StringValueOK()
	if !ok {
		panic(fmt.Sprintf("bsoncore: value of type %s is not a string", v.Type))
	}
	return s
}

// Int32OK returns the int32 value and whether v held one.
func (v Value) Int32OK() (int32, bool) {
	if v.Type != typeInt32 || len(v.Data) < 4 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(v.Data)), true
}

// Int32 returns the int32 value, or 0 if v is not an int32.
func (v Value) Int32() int32 {
	i, _ := v.Int32OK()
	return i
}

// Int64OK returns the int64 value and whether v held one.
func (v Value) Int64OK() (int64, bool) {
	if v.Type != typeInt64 || len(v.Data) < 8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(v.Data)), true
}

// Int64 returns the int64 value, or 0 if v is not an int64.
func (v Value) Int64() int64 {
	i, _ := v.Int64OK()
	return i
}

// AsInt64OK coerces a numeric value (int32, int64, or double) to int64.
func (v Value) AsInt64OK() (int64, bool) {
	switch v.Type {
	case typeInt32:
		i, ok := v.Int32OK()
		return int64(i), ok
	case typeInt64:
		return v.Int64OK()
	case typeDouble:
		d, ok := v.DoubleOK()
		return int64(d), ok
	default:
		return 0, false
	}
}

// DoubleOK returns the float64 value and whether v held one.
func (v Value) DoubleOK() (float64, bool) {
	if v.Type != typeDouble || len(v.Data) < 8 {
		return 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.Data)), true
}

// Double returns the float64 value, or 0 if v is not a double.
func (v Value) Double() float64 {
	d, _ := v.DoubleOK()
	return d
}

// BooleanOK returns the bool value and whether v held one.
func (v Value) BooleanOK() (bool, bool) {
	if v.Type != typeBoolean || len(v.Data) < 1 {
		return false, false
	}
	return v.Data[0] != 0x00, true
}

// Boolean returns the bool value, or false if v is not a boolean.
func (v Value) Boolean() bool {
	b, _ := v.BooleanOK()
	return b
}

// DocumentOK returns the embedded document value and whether v held one.
func (v Value) DocumentOK() (Document, bool) {
	if v.Type != typeEmbeddedDocument {
		return nil, false
	}
	l, _, ok := ReadLength(v.Data)
	if !ok || int(l) > len(v.Data) {
		return nil, false
	}
	return Document(v.Data[:l]), true
}

// Document returns the embedded document, or nil if v is not a document.
func (v Value) Document() Document {
	d, _ := v.DocumentOK()
	return d
}

// ArrayOK returns the embedded array, reinterpreted as a Document whose
// keys are array indices, and whether v held one.
func (v Value) ArrayOK() (Document, bool) {
	if v.Type != typeArray {
		return nil, false
	}
	l, _, ok := ReadLength(v.Data)
	if !ok || int(l) > len(v.Data) {
		return nil, false
	}
	return Document(v.Data[:l]), true
}

// Array returns the embedded array as a Document, or nil if v is not an
// array.
func (v Value) Array() Document {
	a, _ := v.ArrayOK()
	return a
}

// Values returns the elements of an array Value as a flat slice, in index
// order.
func (v Value) Values() ([]Value, error) {
	arr, ok := v.ArrayOK()
	if !ok {
		return nil, fmt.Errorf("bsoncore: value of type %s is not an array", v.Type)
	}
	elems, err := arr.Elements()
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(elems))
	for i, e := range elems {
		out[i] = e.Value()
	}
	return out, nil
}

// ObjectIDOK returns the ObjectID value and whether v held one.
func (v Value) ObjectIDOK() ([12]byte, bool) {
	var id [12]byte
	if v.Type != typeObjectID || len(v.Data) < 12 {
		return id, false
	}
	copy(id[:], v.Data[:12])
	return id, true
}

// Timestamp returns the (t, i) pair for a BSON Timestamp value.
func (v Value) Timestamp() (t, i uint32) {
	if v.Type != typeTimestamp || len(v.Data) < 8 {
		return 0, 0
	}
	i = binary.LittleEndian.Uint32(v.Data[0:4])
	t = binary.LittleEndian.Uint32(v.Data[4:8])
	return t, i
}

// TypeByte returns the raw BSON type tag byte, for callers (like the bson
// package) that maintain their own Type enum over the same wire values.
func (v Value) TypeByte() byte { return byte(v.Type) }

// BinaryOK returns the binary subtype and data and whether v held one.
func (v Value) BinaryOK() (subtype byte, data []byte, ok bool) {
	if v.Type != typeBinary || len(v.Data) < 5 {
		return 0, nil, false
	}
	l, _, lok := ReadLength(v.Data)
	if !lok || int(l) > len(v.Data)-5 {
		return 0, nil, false
	}
	return v.Data[4], v.Data[5 : 5+l], true
}

// IsNumber reports whether v holds one of the BSON numeric types.
func (v Value) IsNumber() bool {
	switch v.Type {
	case typeDouble, typeInt32, typeInt64, typeDecimal128:
		return true
	default:
		return false
	}
}
