package operation

import "github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"

// toRawDocs flattens a slice of bsoncore.Document into the [][]byte shape
// Batches/wiremessage.Msg.AppendSequence expects.
func toRawDocs(docs []bsoncore.Document) [][]byte {
	out := make([][]byte, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}
