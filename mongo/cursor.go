package mongo

import (
	"context"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/operation"
)

// Cursor iterates the results of a Find or Aggregate call, wrapping the
// operation package's BatchCursor (which owns the actual getMore/
// killCursors traffic) in the Decode-based API applications use.
type Cursor struct {
	bc  *operation.BatchCursor
	err error
}

func newCursor(bc *operation.BatchCursor) *Cursor {
	return &Cursor{bc: bc}
}

// Next advances the cursor to the next document, issuing a getMore if the
// current batch is exhausted. It returns false at end of stream or on
// error; call Err to tell the two apart.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	ok := c.bc.Next(ctx)
	return ok
}

// Current returns the raw document Next last positioned the cursor on.
func (c *Cursor) Current() bson.Raw { return bson.Raw(c.bc.Current()) }

// Decode unmarshals the current document into v.
func (c *Cursor) Decode(v interface{}) error {
	return bson.Unmarshal(c.bc.Current(), v)
}

// All drains every remaining document into a slice of raw documents,
// closing the cursor when done.
func (c *Cursor) All(ctx context.Context) ([]bson.Raw, error) {
	defer c.Close(ctx)
	var docs []bson.Raw
	for c.Next(ctx) {
		docs = append(docs, append(bson.Raw(nil), c.bc.Current()...))
	}
	return docs, c.Err()
}

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error { return c.err }

// PostBatchResumeToken returns the most recent getMore/aggregate reply's
// postBatchResumeToken, or nil if the server never sent one. ChangeStream
// uses this to keep its resume point advancing across batches that contain
// no events.
func (c *Cursor) PostBatchResumeToken() bson.Raw { return bson.Raw(c.bc.PostBatchResumeToken()) }

// Close releases the underlying cursor (firing killCursors on the server
// if it hasn't already been exhausted).
func (c *Cursor) Close(ctx context.Context) error {
	return c.bc.Close(ctx)
}

// SingleResult is the outcome of an operation, such as FindOne, that
// returns at most one document.
type SingleResult struct {
	raw bson.Raw
	err error
}

// Err returns ErrNoDocuments, a server/network error, or nil.
func (sr *SingleResult) Err() error { return sr.err }

// Decode unmarshals the found document into v. It returns the same error
// Err would if nothing matched.
func (sr *SingleResult) Decode(v interface{}) error {
	if sr.err != nil {
		return sr.err
	}
	return bson.Unmarshal(sr.raw, v)
}

// Raw returns the found document without decoding it.
func (sr *SingleResult) Raw() (bson.Raw, error) {
	if sr.err != nil {
		return nil, sr.err
	}
	return sr.raw, nil
}
