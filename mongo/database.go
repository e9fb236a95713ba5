package mongo

import (
	"context"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
	"github.com/nimbusdb/nimbus-go-driver/mongo/options"
	"github.com/nimbusdb/nimbus-go-driver/readconcern"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
	"github.com/nimbusdb/nimbus-go-driver/writeconcern"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/operation"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/session"
)

// Database is a handle to a named database, scoping the default read/write
// settings every Collection obtained through it inherits.
type Database struct {
	client *Client
	name   string

	readPreference *readpref.ReadPref
	readConcern    *readconcern.ReadConcern
	writeConcern   *writeconcern.WriteConcern
}

// Name returns the database's name.
func (db *Database) Name() string { return db.name }

// Client returns the Database's originating Client.
func (db *Database) Client() *Client { return db.client }

// Collection returns a handle to the named collection, inheriting the
// database's defaults unless overridden by opts.
func (db *Database) Collection(name string, opts ...*options.CollectionOptions) *Collection {
	collOpt := options.MergeCollectionOptions(opts...)
	coll := &Collection{
		db:             db,
		name:           name,
		readPreference: db.readPreference,
		readConcern:    db.readConcern,
		writeConcern:   db.writeConcern,
	}
	if collOpt.ReadPreference != nil {
		coll.readPreference = collOpt.ReadPreference
	}
	if collOpt.ReadConcern != nil {
		coll.readConcern = collOpt.ReadConcern
	}
	if collOpt.WriteConcern != nil {
		coll.writeConcern = collOpt.WriteConcern
	}
	return coll
}

// sessionFor returns the session bound to ctx (via NewSessionContext), or
// nil for an operation run without an explicit logical session.
func sessionFor(ctx context.Context) *session.Client {
	sess, _ := SessionFromContext(ctx)
	return sess
}

// aggregate runs pipeline as a database-level aggregate (no specific
// collection target), the form Database.Watch and Client.Watch both need.
func (db *Database) aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*Cursor, error) {
	aggOpt := options.MergeAggregateOptions(opts...)
	pipelineDoc, err := transformAggregatePipeline(pipeline)
	if err != nil {
		return nil, err
	}

	agg := operation.NewAggregate("", pipelineDoc).
		Database(db.name).
		Deployment(db.client.deployment).
		ReadPreference(db.readPreference).
		ReadConcern(db.readConcern).
		Session(sessionFor(ctx)).
		ClusterClock(db.client.clock).
		Retry(db.client.readRetryMode()).
		Monitor(db.client.monitor)
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

// RunCommand executes an arbitrary command against the database, returning
// its raw reply.
func (db *Database) RunCommand(ctx context.Context, command interface{}, opts ...*options.RunCmdOptions) (bson.Raw, error) {
	cmdOpt := options.MergeRunCmdOptions(opts...)
	cmdDoc, err := TransformDocument(command)
	if err != nil {
		return nil, err
	}

	rp := db.readPreference
	if cmdOpt.ReadPreference != nil {
		rp = cmdOpt.ReadPreference
	}
	return db.runRawCommandWithReadPreference(ctx, cmdDoc, rp)
}

// runRawCommand runs an already-transformed command document with the
// database's default read preference. IndexView uses this directly since
// createIndexes/dropIndexes have no dedicated RunCmdOptions of their own.
func (db *Database) runRawCommand(ctx context.Context, cmdDoc bsoncore.Document) (bson.Raw, error) {
	return db.runRawCommandWithReadPreference(ctx, cmdDoc, db.readPreference)
}

func (db *Database) runRawCommandWithReadPreference(ctx context.Context, cmdDoc bsoncore.Document, rp *readpref.ReadPref) (bson.Raw, error) {
	var result bsoncore.Document
	op := operation.Operation{
		CommandFn: func(dst []byte, _ description.Server) ([]byte, error) {
			return append(dst, cmdDoc[4:len(cmdDoc)-1]...), nil
		},
		Database:       db.name,
		Deployment:     db.client.deployment,
		ReadPreference: rp,
		Session:        sessionFor(ctx),
		Clock:          db.client.clock,
		Type:           operation.Read,
		CommandMonitor: db.client.monitor,
		ProcessResponseFn: func(info operation.ResponseInfo) error {
			result = info.ServerResponse
			return nil
		},
	}
	if _, err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return bson.Raw(result), nil
}

// Drop drops the database.
func (db *Database) Drop(ctx context.Context) error {
	return operation.NewDropDatabase().
		Database(db.name).
		Deployment(db.client.deployment).
		WriteConcern(db.writeConcern).
		Session(sessionFor(ctx)).
		ClusterClock(db.client.clock).
		Monitor(db.client.monitor).
		Execute(ctx)
}

// ListCollectionNames returns the names of every collection matching
// filter.
func (db *Database) ListCollectionNames(ctx context.Context, filter interface{}, opts ...*options.ListCollectionsOptions) ([]string, error) {
	lcOpt := options.MergeListCollectionsOptions(opts...)
	filterDoc, err := TransformDocument(filter)
	if err != nil {
		return nil, err
	}

	lc := operation.NewListCollections(filterDoc).
		NameOnly(true).
		Database(db.name).
		Deployment(db.client.deployment).
		ReadPreference(db.readPreference).
		Session(sessionFor(ctx)).
		ClusterClock(db.client.clock).
		Monitor(db.client.monitor)
	if lcOpt.NameOnly != nil {
		lc.NameOnly(*lcOpt.NameOnly)
	}

	cursor, err := lc.Execute(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for cursor.Next(ctx) {
		name, err := cursor.Current().LookupErr("name")
		if err != nil {
			return nil, err
		}
		n, _ := name.StringValueOK()
		names = append(names, n)
	}
	return names, nil
}
