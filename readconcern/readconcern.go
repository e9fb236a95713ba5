// Package readconcern defines the read concern levels operations can
// request, appended to a command's "readConcern" field.
package readconcern

import "github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"

// ReadConcern describes the consistency/isolation properties a read
// operation should use.
type ReadConcern struct {
	level string
}

// Option configures a ReadConcern.
type Option func(*ReadConcern)

// New builds a ReadConcern from the given options; no options yields the
// server's default read concern (equivalent to omitting the field).
func New(opts ...Option) *ReadConcern {
	rc := &ReadConcern{}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

func level(l string) Option {
	return func(rc *ReadConcern) { rc.level = l }
}

// Local sets level "local": return the most recent data without waiting
// for write acknowledgment from a majority of replica set members.
func Local() *ReadConcern { return New(level("local")) }

// Majority sets level "majority": return data acknowledged by a majority of
// the replica set.
func Majority() *ReadConcern { return New(level("majority")) }

// Linearizable sets level "linearizable".
func Linearizable() *ReadConcern { return New(level("linearizable")) }

// Available sets level "available": the loosest level, used against
// sharded collections to avoid blocking on orphaned-document cleanup.
func Available() *ReadConcern { return New(level("available")) }

// Snapshot sets level "snapshot", used within multi-document transactions
// and for point-in-time causally consistent reads.
func Snapshot() *ReadConcern { return New(level("snapshot")) }

// Level returns the read concern's level string, or "" if unset.
func (rc *ReadConcern) Level() string {
	if rc == nil {
		return ""
	}
	return rc.level
}

// MarshalBSONValue encodes rc as a BSON document value
// ({level: <level>}), matching the bsoncodec.ValueMarshaler shape the
// command-builder call sites expect.
func (rc *ReadConcern) MarshalBSONValue() (byte, []byte, error) {
	idx, doc := bsoncore.AppendDocumentStart(nil)
	if rc != nil && rc.level != "" {
		doc = bsoncore.AppendStringElement(doc, "level", rc.level)
	}
	doc, err := bsoncore.AppendDocumentEnd(doc, idx)
	return 0x03, doc, err
}
