package mongo

import (
	"context"
	"errors"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/mongo/options"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver"
)

// ErrMissingResumeToken is returned when a change notification arrives
// without a resume token, leaving the stream with nothing to resume from
// if the cursor is later invalidated.
var ErrMissingResumeToken = errors.New("mongo: change stream notification missing resume token")

// resumable change stream error codes (per the server's change stream
// resumability contract): a cursor killed by these is safe to reopen from
// the last known resume token rather than surfaced to the caller.
const (
	codeInterrupted        = 11601
	codeCappedPositionLost = 136
	codeCursorKilled       = 237
)

// ChangeStream iterates the notifications produced by a Watch call,
// transparently reopening its aggregation cursor (with resumeAfter set to
// the last token observed) if the server drops it for a resumable reason.
type ChangeStream struct {
	ctx    context.Context
	open   func(ctx context.Context, resumeAfter bson.Raw) (*Cursor, error)
	cursor *Cursor

	resumeToken bson.Raw
	current     bson.Raw
	err         error
}

func newChangeStream(ctx context.Context, csOpts *options.ChangeStreamOptions, open func(ctx context.Context, resumeAfter bson.Raw) (*Cursor, error)) (*ChangeStream, error) {
	cs := &ChangeStream{ctx: ctx, open: open}
	if csOpts.ResumeAfter != nil {
		token, err := TransformDocument(csOpts.ResumeAfter)
		if err != nil {
			return nil, err
		}
		cs.resumeToken = bson.Raw(token)
	}

	cursor, err := open(ctx, cs.resumeToken)
	if err != nil {
		return nil, err
	}
	cs.cursor = cursor
	return cs, nil
}

// watchPipeline prepends a $changeStream stage (with fullDocument/
// resumeAfter pulled from csOpts; batchSize is applied by the callers as an
// aggregate option, not here) to the caller's pipeline.
// Each returned element is already a document TransformDocument accepts
// as-is (bson.D for the $changeStream stage, bsoncore.Document for every
// user stage), so it can be passed straight to Aggregate as []interface{}.
func watchPipeline(pipeline interface{}, csOpts *options.ChangeStreamOptions, resumeAfter bson.Raw, clusterWide bool) ([]interface{}, error) {
	stage := bson.D{}
	if clusterWide {
		stage = append(stage, bson.E{Key: "allChangesForCluster", Value: true})
	}
	if csOpts.FullDocument != nil {
		stage = append(stage, bson.E{Key: "fullDocument", Value: *csOpts.FullDocument})
	}
	if resumeAfter != nil {
		stage = append(stage, bson.E{Key: "resumeAfter", Value: resumeAfter})
	} else if csOpts.ResumeAfter != nil {
		stage = append(stage, bson.E{Key: "resumeAfter", Value: csOpts.ResumeAfter})
	}

	var userStages []interface{}
	switch p := pipeline.(type) {
	case nil:
	case Pipeline:
		for _, s := range p {
			userStages = append(userStages, s)
		}
	case []interface{}:
		userStages = p
	default:
		return nil, errors.New("mongo: Watch pipeline must be a mongo.Pipeline or []interface{}")
	}

	full := make([]interface{}, 0, len(userStages)+1)
	full = append(full, bson.D{{Key: "$changeStream", Value: stage}})
	for _, s := range userStages {
		doc, err := TransformDocument(s)
		if err != nil {
			return nil, err
		}
		full = append(full, doc)
	}
	return full, nil
}

// ID returns the server-side cursor ID backing the stream.
func (cs *ChangeStream) ID() int64 {
	if cs.cursor == nil {
		return 0
	}
	return cs.cursor.bc.ID()
}

// Next blocks until another change notification is available, the stream
// is closed, or an unresumable error occurs.
func (cs *ChangeStream) Next(ctx context.Context) bool {
	if cs.err != nil {
		return false
	}
	if cs.cursor.Next(ctx) {
		cs.current = append(bson.Raw(nil), cs.cursor.Current()...)
		if idVal, err := cs.current.LookupErr("_id"); err == nil {
			cs.resumeToken = append(bson.Raw(nil), idVal.Document()...)
		} else {
			_ = cs.cursor.Close(ctx)
			cs.err = ErrMissingResumeToken
			return false
		}
		return true
	}

	// An exhausted batch with no event still carries its own
	// postBatchResumeToken; advancing cs.resumeToken from it (the priority
	// order is event _id, then postBatchResumeToken, then the original
	// resumeAfter/startAtOperationTime option) keeps a resume after a later
	// invalidation from replaying notifications this Next already consumed.
	if pbrt := cs.cursor.PostBatchResumeToken(); pbrt != nil {
		cs.resumeToken = pbrt
	}

	if err := cs.cursor.Err(); err != nil && !isResumableChangeStreamError(err) {
		cs.err = err
		return false
	}

	_ = cs.cursor.Close(ctx)
	cursor, err := cs.open(ctx, cs.resumeToken)
	if err != nil {
		cs.err = err
		return false
	}
	cs.cursor = cursor
	return cs.Next(ctx)
}

// isResumableChangeStreamError reports whether err is safe to recover from
// by reopening with the last resume token. Any error that is not a
// driver.Error (for example a network error) counts as resumable; a
// server-reported driver.Error counts as resumable only for the codes
// listed above, and is otherwise surfaced to the caller.
func isResumableChangeStreamError(err error) bool {
	var ce driver.Error
	if !errors.As(err, &ce) {
		return true
	}
	switch ce.Code {
	case codeInterrupted, codeCappedPositionLost, codeCursorKilled:
		return true
	default:
		return false
	}
}

// Decode unmarshals the current notification into v.
func (cs *ChangeStream) Decode(v interface{}) error {
	if cs.current == nil {
		return errors.New("mongo: ChangeStream.Decode called before Next")
	}
	return bson.Unmarshal(cs.current, v)
}

// Current returns the raw current notification document.
func (cs *ChangeStream) Current() bson.Raw { return cs.current }

// Err returns the error, if any, that stopped iteration.
func (cs *ChangeStream) Err() error { return cs.err }

// Close releases the underlying cursor.
func (cs *ChangeStream) Close(ctx context.Context) error {
	if cs.cursor == nil {
		return nil
	}
	return cs.cursor.Close(ctx)
}

// Watch opens a change stream over the collection.
func (c *Collection) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (*ChangeStream, error) {
	csOpts := options.MergeChangeStreamOptions(opts...)
	open := func(ctx context.Context, resumeAfter bson.Raw) (*Cursor, error) {
		full, err := watchPipeline(pipeline, csOpts, resumeAfter, false)
		if err != nil {
			return nil, err
		}
		aggOpts := options.Aggregate()
		if csOpts.BatchSize != nil {
			aggOpts.SetBatchSize(*csOpts.BatchSize)
		}
		return c.Aggregate(ctx, full, aggOpts)
	}
	return newChangeStream(ctx, csOpts, open)
}

// Watch opens a change stream over every collection in the database.
func (db *Database) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (*ChangeStream, error) {
	csOpts := options.MergeChangeStreamOptions(opts...)
	open := func(ctx context.Context, resumeAfter bson.Raw) (*Cursor, error) {
		full, err := watchPipeline(pipeline, csOpts, resumeAfter, false)
		if err != nil {
			return nil, err
		}
		aggOpts := options.Aggregate()
		if csOpts.BatchSize != nil {
			aggOpts.SetBatchSize(*csOpts.BatchSize)
		}
		return db.aggregate(ctx, full, aggOpts)
	}
	return newChangeStream(ctx, csOpts, open)
}

// Watch opens a change stream over every collection in every database in
// the deployment.
func (c *Client) Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (*ChangeStream, error) {
	csOpts := options.MergeChangeStreamOptions(opts...)
	admin := c.Database("admin")
	open := func(ctx context.Context, resumeAfter bson.Raw) (*Cursor, error) {
		full, err := watchPipeline(pipeline, csOpts, resumeAfter, true)
		if err != nil {
			return nil, err
		}
		aggOpts := options.Aggregate()
		if csOpts.BatchSize != nil {
			aggOpts.SetBatchSize(*csOpts.BatchSize)
		}
		return admin.aggregate(ctx, full, aggOpts)
	}
	return newChangeStream(ctx, csOpts, open)
}
