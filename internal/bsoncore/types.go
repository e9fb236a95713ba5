package bsoncore

// BSON element type-tag bytes. Duplicated from the bson package's Type
// constants (rather than imported) because bsoncore is the lower layer:
// bson builds on top of bsoncore, not the other way around.
type bsonType byte

const (
	typeDouble           bsonType = 0x01
	typeString           bsonType = 0x02
	typeEmbeddedDocument bsonType = 0x03
	typeArray            bsonType = 0x04
	typeBinary           bsonType = 0x05
	typeUndefined        bsonType = 0x06
	typeObjectID         bsonType = 0x07
	typeBoolean          bsonType = 0x08
	typeDateTime         bsonType = 0x09
	typeNull             bsonType = 0x0A
	typeRegex            bsonType = 0x0B
	typeJavaScript       bsonType = 0x0D
	typeSymbol           bsonType = 0x0E
	typeInt32            bsonType = 0x10
	typeTimestamp        bsonType = 0x11
	typeInt64            bsonType = 0x12
	typeDecimal128       bsonType = 0x13
	typeMinKey           bsonType = 0xFF
	typeMaxKey           bsonType = 0x7F
)

func (t bsonType) String() string {
	switch t {
	case typeDouble:
		return "double"
	case typeString:
		return "string"
	case typeEmbeddedDocument:
		return "document"
	case typeArray:
		return "array"
	case typeBinary:
		return "binary"
	case typeUndefined:
		return "undefined"
	case typeObjectID:
		return "objectID"
	case typeBoolean:
		return "bool"
	case typeDateTime:
		return "datetime"
	case typeNull:
		return "null"
	case typeRegex:
		return "regex"
	case typeJavaScript:
		return "javascript"
	case typeSymbol:
		return "symbol"
	case typeInt32:
		return "int32"
	case typeTimestamp:
		return "timestamp"
	case typeInt64:
		return "int64"
	case typeDecimal128:
		return "decimal128"
	case typeMinKey:
		return "minKey"
	case typeMaxKey:
		return "maxKey"
	default:
		return "invalid"
	}
}
