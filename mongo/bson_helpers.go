package mongo

import (
	"fmt"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

// Pipeline is an ordered list of aggregation pipeline stages.
type Pipeline []bson.D

// TransformDocument converts document into a BSON document, the same
// normalization every filter/update/pipeline-stage parameter goes through
// before it reaches a command builder. Accepted shapes: nil (empty
// document), bson.Raw/bsoncore.Document/[]byte (assumed already valid
// BSON), and anything bson.Marshal otherwise accepts (maps, structs,
// bson.D/M, a type implementing bson.Marshaler).
func TransformDocument(document interface{}) (bsoncore.Document, error) {
	switch d := document.(type) {
	case nil:
		return bsoncore.BuildDocument(nil, nil), nil
	case bsoncore.Document:
		return d, nil
	case bson.Raw:
		return bsoncore.Document(d), nil
	case []byte:
		return bsoncore.Document(d), nil
	default:
		raw, err := bson.Marshal(document)
		if err != nil {
			return nil, fmt.Errorf("mongo: cannot transform %T to a document: %w", document, err)
		}
		return bsoncore.Document(raw), nil
	}
}

// transformAggregatePipeline converts a Pipeline or []interface{} of stage
// documents into the BSON array operation.Aggregate expects.
func transformAggregatePipeline(pipeline interface{}) (bsoncore.Document, error) {
	var stages []interface{}
	switch p := pipeline.(type) {
	case Pipeline:
		for _, stage := range p {
			stages = append(stages, stage)
		}
	case []interface{}:
		stages = p
	default:
		return nil, fmt.Errorf("mongo: pipeline must be a mongo.Pipeline or []interface{}, got %T", pipeline)
	}

	idx, dst := bsoncore.AppendDocumentStart(nil)
	for i, stage := range stages {
		doc, err := TransformDocument(stage)
		if err != nil {
			return nil, fmt.Errorf("mongo: pipeline stage %d: %w", i, err)
		}
		dst = bsoncore.AppendDocumentElement(dst, arrayIndexKey(i), doc)
	}
	return bsoncore.AppendDocumentEnd(dst, idx)
}

// arrayIndexKey returns i as the decimal-string key a BSON array element
// uses.
func arrayIndexKey(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}
