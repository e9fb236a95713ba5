package mongo

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/mongo/options"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/operation"
)

// ErrInvalidIndexValue indicates an index Keys document had a value that
// isn't an int32, an int64, or a string; doubles are rejected too.
var ErrInvalidIndexValue = errors.New("mongo: invalid index key value")

// ErrNonStringIndexName indicates the "name" entry in an index's Options
// document wasn't a string.
var ErrNonStringIndexName = errors.New("mongo: index name must be a string")

// ErrMultipleIndexDrop indicates DropOne was called with "*", which would
// drop every index; use DropAll for that instead.
var ErrMultipleIndexDrop = errors.New("mongo: use DropAll to drop every index")

// IndexView creates, lists, and drops indexes on a collection.
type IndexView struct {
	coll *Collection
}

// Indexes returns a view over the collection's indexes.
func (c *Collection) Indexes() IndexView { return IndexView{coll: c} }

// IndexModel describes one index to create: its key pattern plus any
// index-level options (unique, sparse, name, ...) merged alongside it.
type IndexModel struct {
	Keys    interface{}
	Options bson.D
}

// List returns a cursor over every index on the collection.
func (iv IndexView) List(ctx context.Context, opts ...*options.ListIndexesOptions) (*Cursor, error) {
	coll := iv.coll
	sess := sessionFor(ctx)
	listOpt := options.MergeListIndexesOptions(opts...)

	var result operation.CursorResponse
	op := operation.Operation{
		CommandFn: func(dst []byte, _ description.Server) ([]byte, error) {
			dst = bsoncore.AppendStringElement(dst, "listIndexes", coll.name)
			if listOpt.BatchSize != nil {
				cursorIdx, d := bsoncore.AppendDocumentElementStart(dst, "cursor")
				d = bsoncore.AppendInt32Element(d, "batchSize", *listOpt.BatchSize)
				var err error
				dst, err = bsoncore.AppendDocumentEnd(d, cursorIdx)
				if err != nil {
					return nil, err
				}
			}
			return dst, nil
		},
		Database:       coll.db.name,
		Deployment:     coll.db.client.deployment,
		Session:        sess,
		Clock:          coll.db.client.clock,
		Type:           operation.Read,
		CommandMonitor: coll.db.client.monitor,
		ProcessResponseFn: func(info operation.ResponseInfo) error {
			var err error
			result, err = operation.NewCursorResponse(info.ServerResponse, info.Server, info.Server.Description(), "firstBatch")
			return err
		},
	}
	if _, err := op.Execute(ctx); err != nil {
		return nil, err
	}
	batchSize := int32(0)
	if listOpt.BatchSize != nil {
		batchSize = *listOpt.BatchSize
	}
	return newCursor(operation.NewBatchCursor(result, coll.db.client.deployment, sess, coll.db.client.clock, batchSize, 0, nil).Monitor(coll.db.client.monitor)), nil
}

// IndexSpecification is one index's name and key pattern, as decoded by
// ListSpecifications.
type IndexSpecification struct {
	Name string
	Keys bson.Raw
}

// ListSpecifications returns every index's name and key pattern.
func (iv IndexView) ListSpecifications(ctx context.Context) ([]IndexSpecification, error) {
	cursor, err := iv.List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var specs []IndexSpecification
	for cursor.Next(ctx) {
		nameVal, err := cursor.Current().LookupErr("name")
		if err != nil {
			return nil, err
		}
		keysVal, err := cursor.Current().LookupErr("key")
		if err != nil {
			return nil, err
		}
		specs = append(specs, IndexSpecification{
			Name: nameVal.StringValue(),
			Keys: keysVal.Document(),
		})
	}
	return specs, cursor.Err()
}

// CreateOne creates a single index and returns its name.
func (iv IndexView) CreateOne(ctx context.Context, model IndexModel, opts ...*options.CreateIndexesOptions) (string, error) {
	names, err := iv.CreateMany(ctx, []IndexModel{model}, opts...)
	if err != nil {
		return "", err
	}
	return names[0], nil
}

// CreateMany creates every index in models, returning their names in order.
func (iv IndexView) CreateMany(ctx context.Context, models []IndexModel, opts ...*options.CreateIndexesOptions) ([]string, error) {
	names := make([]string, 0, len(models))
	specs := make(Pipeline, 0, len(models))

	for _, model := range models {
		if model.Keys == nil {
			return nil, errors.New("mongo: index model Keys cannot be nil")
		}
		keysDoc, err := TransformDocument(model.Keys)
		if err != nil {
			return nil, err
		}
		name, err := getOrGenerateIndexName(keysDoc, model.Options)
		if err != nil {
			return nil, err
		}
		names = append(names, name)

		spec := bson.D{{Key: "key", Value: bson.Raw(keysDoc)}}
		spec = append(spec, model.Options...)
		spec = append(spec, bson.E{Key: "name", Value: name})
		specs = append(specs, spec)
	}

	specsDoc, err := transformAggregatePipeline(specs)
	if err != nil {
		return nil, err
	}

	cmd := bson.D{
		{Key: "createIndexes", Value: iv.coll.name},
		{Key: "indexes", Value: bson.RawValue{Type: bson.TypeArray, Value: []byte(specsDoc)}},
	}
	if createOpt := options.MergeCreateIndexesOptions(opts...); createOpt.MaxTimeMS != nil {
		cmd = append(cmd, bson.E{Key: "maxTimeMS", Value: *createOpt.MaxTimeMS})
	}
	cmdDoc, err := TransformDocument(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := iv.coll.db.runRawCommand(ctx, cmdDoc); err != nil {
		return nil, err
	}
	return names, nil
}

// DropOne drops the named index. Use DropAll, not DropOne("*"), to drop
// every index.
func (iv IndexView) DropOne(ctx context.Context, name string, opts ...*options.DropIndexesOptions) error {
	if name == "*" {
		return ErrMultipleIndexDrop
	}
	return iv.drop(ctx, name, opts...)
}

// DropAll drops every index on the collection except the default _id
// index, which the server refuses to drop.
func (iv IndexView) DropAll(ctx context.Context, opts ...*options.DropIndexesOptions) error {
	return iv.drop(ctx, "*", opts...)
}

func (iv IndexView) drop(ctx context.Context, index string, opts ...*options.DropIndexesOptions) error {
	cmd := bson.D{
		{Key: "dropIndexes", Value: iv.coll.name},
		{Key: "index", Value: index},
	}
	if dropOpt := options.MergeDropIndexesOptions(opts...); dropOpt.MaxTimeMS != nil {
		cmd = append(cmd, bson.E{Key: "maxTimeMS", Value: *dropOpt.MaxTimeMS})
	}
	cmdDoc, err := TransformDocument(cmd)
	if err != nil {
		return err
	}
	_, err = iv.coll.db.runRawCommand(ctx, cmdDoc)
	return err
}

// getOrGenerateIndexName returns the "name" entry in indexOpts if present,
// otherwise the server's default name: each key/direction pair joined by
// underscores (e.g. {a: 1, b: -1} becomes "a_1_b_-1").
func getOrGenerateIndexName(keys bsoncore.Document, indexOpts bson.D) (string, error) {
	for _, e := range indexOpts {
		if e.Key != "name" {
			continue
		}
		name, ok := e.Value.(string)
		if !ok {
			return "", ErrNonStringIndexName
		}
		return name, nil
	}

	var buf bytes.Buffer
	first := true
	elements, err := keys.Elements()
	if err != nil {
		return "", err
	}
	for _, elem := range elements {
		if !first {
			buf.WriteByte('_')
		}
		first = false
		buf.WriteString(elem.Key())
		buf.WriteByte('_')

		v := elem.Value()
		switch v.TypeByte() {
		case byte(bson.TypeInt32):
			n, _ := v.Int32OK()
			fmt.Fprintf(&buf, "%d", n)
		case byte(bson.TypeInt64):
			n, _ := v.Int64OK()
			fmt.Fprintf(&buf, "%d", n)
		case byte(bson.TypeString):
			s, _ := v.StringValueOK()
			buf.WriteString(s)
		default:
			return "", ErrInvalidIndexValue
		}
	}
	return buf.String(), nil
}
