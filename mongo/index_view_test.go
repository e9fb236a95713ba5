package mongo

import (
	"testing"

	"github.com/nimbusdb/nimbus-go-driver/bson"
)

func TestGetOrGenerateIndexNameFromOptions(t *testing.T) {
	keys, err := TransformDocument(bson.D{{Key: "a", Value: int32(1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, err := getOrGenerateIndexName(keys, bson.D{{Key: "name", Value: "custom"}, {Key: "unique", Value: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "custom" {
		t.Fatalf("name = %q, want custom", name)
	}
}

func TestGetOrGenerateIndexNameDefault(t *testing.T) {
	keys, err := TransformDocument(bson.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: int32(-1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, err := getOrGenerateIndexName(keys, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "a_1_b_-1" {
		t.Fatalf("name = %q, want a_1_b_-1", name)
	}
}

func TestGetOrGenerateIndexNameNonStringName(t *testing.T) {
	keys, err := TransformDocument(bson.D{{Key: "a", Value: int32(1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := getOrGenerateIndexName(keys, bson.D{{Key: "name", Value: 1}}); err != ErrNonStringIndexName {
		t.Fatalf("err = %v, want ErrNonStringIndexName", err)
	}
}

func TestGetOrGenerateIndexNameInvalidValue(t *testing.T) {
	keys, err := TransformDocument(bson.D{{Key: "a", Value: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := getOrGenerateIndexName(keys, nil); err != ErrInvalidIndexValue {
		t.Fatalf("err = %v, want ErrInvalidIndexValue", err)
	}
}
