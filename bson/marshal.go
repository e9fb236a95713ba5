package bson

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

// Marshaler is implemented by types that can encode themselves to a BSON
// document, the same escape hatch the teacher's bsoncodec.Marshaler offers.
type Marshaler interface {
	MarshalBSON() ([]byte, error)
}

// ValueMarshaler is implemented by types (like primitive wrappers) that
// encode to a single BSON value rather than a whole document.
type ValueMarshaler interface {
	MarshalBSONValue() (byte, []byte, error)
}

// Marshal encodes v, which must be a map, struct, bson.D/M, or a type
// implementing Marshaler, to a BSON document.
func Marshal(v interface{}) ([]byte, error) {
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst, err := marshalInto(dst, v)
	if err != nil {
		return nil, err
	}
	return bsoncore.AppendDocumentEnd(dst, idx)
}

func marshalInto(dst []byte, v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return dst, nil
	case Marshaler:
		b, err := t.MarshalBSON()
		if err != nil {
			return dst, err
		}
		// strip the outer document's length/trailing-nul wrapper: b is a
		// complete document, so append its elements only.
		inner, _, _ := bsoncore.ReadLength(b)
		_ = inner
		return append(dst, b[4:len(b)-1]...), nil
	case D:
		for _, e := range t {
			var err error
			dst, err = appendElement(dst, e.Key, e.Value)
			if err != nil {
				return dst, err
			}
		}
		return dst, nil
	case M:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var err error
			dst, err = appendElement(dst, k, t[k])
			if err != nil {
				return dst, err
			}
		}
		return dst, nil
	default:
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Ptr {
			if rv.IsNil() {
				return dst, nil
			}
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.Map:
			keys := rv.MapKeys()
			ks := make([]string, len(keys))
			for i, k := range keys {
				ks[i] = fmt.Sprint(k.Interface())
			}
			sort.Strings(ks)
			idxOf := make(map[string]reflect.Value, len(keys))
			for _, k := range keys {
				idxOf[fmt.Sprint(k.Interface())] = k
			}
			for _, k := range ks {
				var err error
				dst, err = appendElement(dst, k, rv.MapIndex(idxOf[k]).Interface())
				if err != nil {
					return dst, err
				}
			}
			return dst, nil
		case reflect.Struct:
			return marshalStruct(dst, rv)
		default:
			return dst, fmt.Errorf("bson: cannot marshal %T as a document", v)
		}
	}
}

type structField struct {
	name      string
	index     int
	omitempty bool
	skip      bool
}

func structFields(t reflect.Type) []structField {
	fields := make([]structField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue // unexported
		}
		sf := structField{name: f.Name, index: i}
		tag := f.Tag.Get("bson")
		if tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			sf.name = parts[0]
		} else {
			sf.name = strings.ToLower(f.Name[:1]) + f.Name[1:]
		}
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				sf.omitempty = true
			}
		}
		fields = append(fields, sf)
	}
	return fields
}

func marshalStruct(dst []byte, rv reflect.Value) ([]byte, error) {
	for _, sf := range structFields(rv.Type()) {
		fv := rv.Field(sf.index)
		if sf.omitempty && isEmptyValue(fv) {
			continue
		}
		var err error
		dst, err = appendElement(dst, sf.name, fv.Interface())
		if err != nil {
			return dst, err
		}
	}
	return dst, nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	default:
		return false
	}
}

func appendElement(dst []byte, key string, val interface{}) ([]byte, error) {
	switch v := val.(type) {
	case nil:
		return bsoncore.AppendNullElement(dst, key), nil
	case ValueMarshaler:
		t, data, err := v.MarshalBSONValue()
		if err != nil {
			return dst, err
		}
		return append(bsoncore.AppendHeader(dst, t, key), data...), nil
	case float64:
		return bsoncore.AppendDoubleElement(dst, key, v), nil
	case string:
		return bsoncore.AppendStringElement(dst, key, v), nil
	case int:
		return bsoncore.AppendInt64Element(dst, key, int64(v)), nil
	case int32:
		return bsoncore.AppendInt32Element(dst, key, v), nil
	case int64:
		return bsoncore.AppendInt64Element(dst, key, v), nil
	case bool:
		return bsoncore.AppendBooleanElement(dst, key, v), nil
	case ObjectID:
		return bsoncore.AppendObjectIDElement(dst, key, [12]byte(v)), nil
	case DateTime:
		return bsoncore.AppendDateTimeElement(dst, key, int64(v)), nil
	case Timestamp:
		return bsoncore.AppendTimestampElement(dst, key, v.T, v.I), nil
	case Decimal128:
		return bsoncore.AppendDecimal128Element(dst, key, v.H, v.L), nil
	case Binary:
		return bsoncore.AppendBinaryElement(dst, key, v.Subtype, v.Data), nil
	case []byte:
		return bsoncore.AppendBinaryElement(dst, key, 0x00, v), nil
	case Raw:
		return bsoncore.AppendDocumentElement(dst, key, []byte(v)), nil
	case RawValue:
		return append(bsoncore.AppendHeader(dst, byte(v.Type), key), v.Value...), nil
	case D:
		sub, err := Marshal(v)
		if err != nil {
			return dst, err
		}
		return bsoncore.AppendDocumentElement(dst, key, sub), nil
	case M:
		sub, err := Marshal(v)
		if err != nil {
			return dst, err
		}
		return bsoncore.AppendDocumentElement(dst, key, sub), nil
	case A:
		return appendArrayElement(dst, key, v)
	case MinKeyType:
		return bsoncore.AppendMinKeyElement(dst, key), nil
	case MaxKeyType:
		return bsoncore.AppendMaxKeyElement(dst, key), nil
	default:
		rv := reflect.ValueOf(val)
		switch rv.Kind() {
		case reflect.Ptr:
			if rv.IsNil() {
				return bsoncore.AppendNullElement(dst, key), nil
			}
			return appendElement(dst, key, rv.Elem().Interface())
		case reflect.Slice, reflect.Array:
			arr := make(A, rv.Len())
			for i := range arr {
				arr[i] = rv.Index(i).Interface()
			}
			return appendArrayElement(dst, key, arr)
		case reflect.Map, reflect.Struct:
			sub, err := Marshal(val)
			if err != nil {
				return dst, err
			}
			return bsoncore.AppendDocumentElement(dst, key, sub), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return bsoncore.AppendInt64Element(dst, key, rv.Int()), nil
		case reflect.Float32, reflect.Float64:
			return bsoncore.AppendDoubleElement(dst, key, rv.Float()), nil
		case reflect.String:
			return bsoncore.AppendStringElement(dst, key, rv.String()), nil
		case reflect.Bool:
			return bsoncore.AppendBooleanElement(dst, key, rv.Bool()), nil
		default:
			return dst, fmt.Errorf("bson: unsupported type %T for key %q", val, key)
		}
	}
}

func appendArrayElement(dst []byte, key string, a A) ([]byte, error) {
	idx, arr := bsoncore.AppendArrayElementStart(dst, key)
	for i, item := range a {
		var err error
		arr, err = appendElement(arr, fmt.Sprint(i), item)
		if err != nil {
			return dst, err
		}
	}
	return bsoncore.AppendArrayEnd(arr, idx)
}
