package mongo

import (
	"context"
	"errors"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/mongo/options"
	"github.com/nimbusdb/nimbus-go-driver/readconcern"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/operation"
)

// ErrNoDocuments is returned by FindOne when no document matches the
// filter.
var ErrNoDocuments = errors.New("mongo: no documents in result")

// Collection performs operations against a single collection.
type Collection struct {
	db   *Database
	name string

	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	writeConcern   *writeconcern.WriteConcern
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Database returns the Collection's originating Database.
func (c *Collection) Database() *Database { return c.db }

// InsertOneResult is the outcome of InsertOne.
type InsertOneResult struct {
	InsertedID interface{}
}

// InsertManyResult is the outcome of InsertMany.
type InsertManyResult struct {
	InsertedIDs []interface{}
}

// InsertOne inserts a single document, assigning it an ObjectID _id if it
// doesn't already carry one.
func (c *Collection) InsertOne(ctx context.Context, document interface{}) (*InsertOneResult, error) {
	res, err := c.InsertMany(ctx, []interface{}{document})
	if err != nil {
		return nil, err
	}
	return &InsertOneResult{InsertedID: res.InsertedIDs[0]}, nil
}

// InsertMany inserts every document in documents, splitting across multiple
// insert commands when documents exceeds the selected server's
// maxWriteBatchSize.
func (c *Collection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*InsertManyResult, error) {
	insOpt := options.MergeInsertManyOptions(opts...)

	docs := make([]bsoncore.Document, len(documents))
	ids := make([]interface{}, len(documents))
	for i, d := range documents {
		doc, err := TransformDocument(d)
		if err != nil {
			return nil, err
		}
		doc, id, err := ensureID(doc)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
		ids[i] = id
	}

	ins := operation.NewInsert(c.name, docs...).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		WriteConcern(c.writeConcern).
		Session(sessionFor(ctx)).
		ClusterClock(c.db.client.clock).
		Retry(c.db.client.writeRetryMode()).
		Monitor(c.db.client.monitor)
	if insOpt.Ordered != nil {
		ins.Ordered(*insOpt.Ordered)
	}

	if _, err := ins.Execute(ctx); err != nil {
		return nil, err
	}
	return &InsertManyResult{InsertedIDs: ids}, nil
}

// ensureID returns doc with an ObjectID "_id" appended if it doesn't
// already have one, along with the value of that field.
func ensureID(doc bsoncore.Document) (bsoncore.Document, interface{}, error) {
	if v, err := doc.LookupErr("_id"); err == nil {
		if raw, ok := v.ObjectIDOK(); ok {
			return doc, bson.ObjectID(raw), nil
		}
		return doc, idValue(v), nil
	}

	oid := bson.NewObjectID()
	idx, dst := bsoncore.AppendDocumentStart(nil)
	dst = bsoncore.AppendObjectIDElement(dst, "_id", [12]byte(oid))
	dst = append(dst, doc[4:len(doc)-1]...)
	dst, err := bsoncore.AppendDocumentEnd(dst, idx)
	if err != nil {
		return nil, nil, err
	}
	return dst, oid, nil
}

// idValue decodes the common scalar "_id" types into a Go value; any other
// type is returned as its raw BSON bytes, since InsertManyResult only needs
// something comparable/loggable rather than a fully decoded value.
func idValue(v bsoncore.Value) interface{} {
	switch v.TypeByte() {
	case byte(bson.TypeString):
		return v.StringValue()
	case byte(bson.TypeInt32):
		return v.Int32()
	case byte(bson.TypeInt64):
		return v.Int64()
	default:
		return v.Data
	}
}

// Find executes a query and returns a Cursor over the matching documents.
func (c *Collection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*Cursor, error) {
	findOpt := options.MergeFindOptions(opts...)
	filterDoc, err := TransformDocument(filter)
	if err != nil {
		return nil, err
	}

	find := operation.NewFind(c.name, filterDoc).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		ReadPreference(c.readPreference).
		ReadConcern(c.readConcern).
		Session(sessionFor(ctx)).
		ClusterClock(c.db.client.clock).
		Retry(c.db.client.readRetryMode()).
		Monitor(c.db.client.monitor)

	if findOpt.Sort != nil {
		sortDoc, err := TransformDocument(findOpt.Sort)
		if err != nil {
			return nil, err
		}
		find.Sort(sortDoc)
	}
	if findOpt.Projection != nil {
		projDoc, err := TransformDocument(findOpt.Projection)
		if err != nil {
			return nil, err
		}
		find.Projection(projDoc)
	}
	if findOpt.Limit != nil {
		find.Limit(*findOpt.Limit)
	}
	if findOpt.Skip != nil {
		find.Skip(*findOpt.Skip)
	}
	if findOpt.BatchSize != nil {
		find.BatchSize(*findOpt.BatchSize)
	}

	bc, err := find.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return newCursor(bc), nil
}

// FindOne executes a query limited to a single document. It returns
// ErrNoDocuments (via SingleResult.Decode/Err) if nothing matches.
func (c *Collection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *SingleResult {
	oneOpt := options.MergeFindOneOptions(opts...)
	findOpts := options.Find().SetLimit(-1)
	if oneOpt.Sort != nil {
		findOpts.SetSort(oneOpt.Sort)
	}
	if oneOpt.Projection != nil {
		findOpts.SetProjection(oneOpt.Projection)
	}
	if oneOpt.Skip != nil {
		findOpts.SetSkip(*oneOpt.Skip)
	}

	cursor, err := c.Find(ctx, filter, findOpts)
	if err != nil {
		return &SingleResult{err: err}
	}
	defer cursor.Close(ctx)
	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return &SingleResult{err: err}
		}
		return &SingleResult{err: ErrNoDocuments}
	}
	return &SingleResult{raw: append(bson.Raw(nil), cursor.Current()...)}
}

// UpdateResult is the outcome of UpdateOne/UpdateMany.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	UpsertedID    interface{}
}

func (c *Collection) update(ctx context.Context, filter, update interface{}, multi bool, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	updOpt := options.MergeUpdateOptions(opts...)
	filterDoc, err := TransformDocument(filter)
	if err != nil {
		return nil, err
	}
	updateDoc, err := TransformDocument(update)
	if err != nil {
		return nil, err
	}

	stmt := operation.UpdateStatement{Filter: filterDoc, Update: updateDoc, Multi: multi}
	if updOpt.Upsert != nil {
		stmt.Upsert = *updOpt.Upsert
	}

	upd := operation.NewUpdate(c.name, stmt).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		WriteConcern(c.writeConcern).
		Session(sessionFor(ctx)).
		ClusterClock(c.db.client.clock).
		Retry(c.db.client.writeRetryMode()).
		Monitor(c.db.client.monitor)

	res, err := upd.Execute(ctx)
	if err != nil {
		return nil, err
	}

	result := &UpdateResult{}
	if n, err := res.LookupErr("n"); err == nil {
		result.MatchedCount, _ = n.AsInt64OK()
	}
	if nModified, err := res.LookupErr("nModified"); err == nil {
		result.ModifiedCount, _ = nModified.AsInt64OK()
	}
	return result, nil
}

// UpdateOne updates at most one document matching filter.
func (c *Collection) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	return c.update(ctx, filter, update, false, opts...)
}

// UpdateMany updates every document matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*UpdateResult, error) {
	return c.update(ctx, filter, update, true, opts...)
}

// DeleteResult is the outcome of DeleteOne/DeleteMany.
type DeleteResult struct {
	DeletedCount int64
}

func (c *Collection) delete(ctx context.Context, filter interface{}, limit int32) (*DeleteResult, error) {
	filterDoc, err := TransformDocument(filter)
	if err != nil {
		return nil, err
	}

	del := operation.NewDelete(c.name, operation.DeleteStatement{Filter: filterDoc, Limit: limit}).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		WriteConcern(c.writeConcern).
		Session(sessionFor(ctx)).
		ClusterClock(c.db.client.clock).
		Retry(c.db.client.writeRetryMode()).
		Monitor(c.db.client.monitor)

	res, err := del.Execute(ctx)
	if err != nil {
		return nil, err
	}
	result := &DeleteResult{}
	if n, err := res.LookupErr("n"); err == nil {
		result.DeletedCount, _ = n.AsInt64OK()
	}
	return result, nil
}

// DeleteOne deletes at most one document matching filter.
func (c *Collection) DeleteOne(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	return c.delete(ctx, filter, 1)
}

// DeleteMany deletes every document matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter interface{}) (*DeleteResult, error) {
	return c.delete(ctx, filter, 0)
}

// Aggregate runs an aggregation pipeline and returns a Cursor over its
// results.
func (c *Collection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*Cursor, error) {
	aggOpt := options.MergeAggregateOptions(opts...)
	pipelineDoc, err := transformAggregatePipeline(pipeline)
	if err != nil {
		return nil, err
	}

	agg := operation.NewAggregate(c.name, pipelineDoc).
		Database(c.db.name).
		Deployment(c.db.client.deployment).
		ReadPreference(c.readPreference).
		ReadConcern(c.readConcern).
		Session(sessionFor(ctx)).
		ClusterClock(c.db.client.clock).
		Retry(c.db.client.readRetryMode()).
		Monitor(c.db.client.monitor)
	if aggOpt.BatchSize != nil {
		agg.BatchSize(*aggOpt.BatchSize)
	}
	if aggOpt.MaxTimeMS != nil {
		agg.MaxTimeMS(*aggOpt.MaxTimeMS)
	}

	bc, err := agg.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return newCursor(bc), nil
}

// CountDocuments returns the number of documents matching filter, via the
// $match/$group aggregation every modern driver generation uses in place
// of the removed "count" command's inconsistent sharded-cluster semantics.
func (c *Collection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	countOpt := options.MergeCountOptions(opts...)
	filterDoc, err := TransformDocument(filter)
	if err != nil {
		return 0, err
	}

	stages := Pipeline{{{Key: "$match", Value: bson.Raw(filterDoc)}}}
	if countOpt.Skip != nil {
		stages = append(stages, bson.D{{Key: "$skip", Value: *countOpt.Skip}})
	}
	if countOpt.Limit != nil {
		stages = append(stages, bson.D{{Key: "$limit", Value: *countOpt.Limit}})
	}
	stages = append(stages, bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: nil},
		{Key: "n", Value: bson.D{{Key: "$sum", Value: int32(1)}}},
	}}})

	cursor, err := c.Aggregate(ctx, stages)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)
	if !cursor.Next(ctx) {
		return 0, cursor.Err()
	}
	n, err := cursor.Current().LookupErr("n")
	if err != nil {
		return 0, err
	}
	return n.AsInt64(), nil
}

// Drop drops the collection.
func (c *Collection) Drop(ctx context.Context) error {
	_, err := c.db.RunCommand(ctx, bson.D{{Key: "drop", Value: c.name}})
	return err
}
