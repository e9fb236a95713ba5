package bson

import (
	"fmt"
	"reflect"

	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

// Unmarshaler is implemented by types that decode themselves from a raw
// BSON document.
type Unmarshaler interface {
	UnmarshalBSON([]byte) error
}

// Unmarshal decodes a BSON document into v, which must be a pointer to a
// map, struct, bson.D/M, or interface{}.
func Unmarshal(data []byte, v interface{}) error {
	if u, ok := v.(Unmarshaler); ok {
		return u.UnmarshalBSON(data)
	}
	doc := bsoncore.Document(data)
	if err := doc.Validate(); err != nil {
		return err
	}
	elems, err := doc.Elements()
	if err != nil {
		return err
	}

	switch dst := v.(type) {
	case *D:
		d := make(D, 0, len(elems))
		for _, e := range elems {
			val, err := decodeValue(e.Value())
			if err != nil {
				return err
			}
			d = append(d, E{Key: e.Key(), Value: val})
		}
		*dst = d
		return nil
	case *M:
		m := make(M, len(elems))
		for _, e := range elems {
			val, err := decodeValue(e.Value())
			if err != nil {
				return err
			}
			m[e.Key()] = val
		}
		*dst = m
		return nil
	case *Raw:
		*dst = append(Raw(nil), data...)
		return nil
	case *interface{}:
		m := make(M, len(elems))
		for _, e := range elems {
			val, err := decodeValue(e.Value())
			if err != nil {
				return err
			}
			m[e.Key()] = val
		}
		*dst = m
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("bson: Unmarshal requires a non-nil pointer, got %T", v)
	}
	rv = rv.Elem()
	switch rv.Kind() {
	case reflect.Struct:
		return unmarshalStruct(elems, rv)
	case reflect.Map:
		if rv.IsNil() {
			rv.Set(reflect.MakeMap(rv.Type()))
		}
		for _, e := range elems {
			val, err := decodeValue(e.Value())
			if err != nil {
				return err
			}
			rv.SetMapIndex(reflect.ValueOf(e.Key()), reflect.ValueOf(val))
		}
		return nil
	default:
		return fmt.Errorf("bson: cannot unmarshal into %T", v)
	}
}

func unmarshalStruct(elems []bsoncore.Element, rv reflect.Value) error {
	fields := structFields(rv.Type())
	byName := make(map[string]structField, len(fields))
	for _, f := range fields {
		byName[f.name] = f
	}
	for _, e := range elems {
		sf, ok := byName[e.Key()]
		if !ok {
			continue
		}
		fv := rv.Field(sf.index)
		if err := decodeInto(e.Value(), fv); err != nil {
			return err
		}
	}
	return nil
}

func decodeValue(v bsoncore.Value) (interface{}, error) {
	switch Type(v.Type) {
	case TypeDouble:
		return v.Double(), nil
	case TypeString:
		return v.StringValue(), nil
	case TypeEmbeddedDocument:
		var m M
		if err := Unmarshal(v.Document(), &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeArray:
		vals, err := v.Values()
		if err != nil {
			return nil, err
		}
		arr := make(A, len(vals))
		for i, vv := range vals {
			dv, err := decodeValue(vv)
			if err != nil {
				return nil, err
			}
			arr[i] = dv
		}
		return arr, nil
	case TypeBinary:
		sub, data, _ := v.BinaryOK()
		return Binary{Subtype: sub, Data: append([]byte(nil), data...)}, nil
	case TypeObjectID:
		id, _ := v.ObjectIDOK()
		return ObjectID(id), nil
	case TypeBoolean:
		return v.Boolean(), nil
	case TypeDateTime:
		i, _ := v.Int64OK()
		return DateTime(i), nil
	case TypeNull, TypeUndefined:
		return nil, nil
	case TypeInt32:
		return v.Int32(), nil
	case TypeTimestamp:
		t, i := v.Timestamp()
		return Timestamp{T: t, I: i}, nil
	case TypeInt64:
		return v.Int64(), nil
	case TypeMinKey:
		return MinKey, nil
	case TypeMaxKey:
		return MaxKey, nil
	default:
		return nil, fmt.Errorf("bson: unsupported type %s during decode", Type(v.Type))
	}
}

func decodeInto(v bsoncore.Value, fv reflect.Value) error {
	decoded, err := decodeValue(v)
	if err != nil {
		return err
	}
	if decoded == nil {
		return nil
	}
	dv := reflect.ValueOf(decoded)
	if dv.Type().AssignableTo(fv.Type()) {
		fv.Set(dv)
		return nil
	}
	if dv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(dv.Convert(fv.Type()))
		return nil
	}
	if fv.Kind() == reflect.Ptr {
		nv := reflect.New(fv.Type().Elem())
		if err := decodeInto(v, nv.Elem()); err != nil {
			return err
		}
		fv.Set(nv)
		return nil
	}
	if fv.Kind() == reflect.Struct && Type(v.Type) == TypeEmbeddedDocument {
		return unmarshalStruct(mustElements(v.Document()), fv)
	}
	return fmt.Errorf("bson: cannot decode %s into %s", Type(v.Type), fv.Type())
}

func mustElements(d bsoncore.Document) []bsoncore.Element {
	elems, _ := d.Elements()
	return elems
}
