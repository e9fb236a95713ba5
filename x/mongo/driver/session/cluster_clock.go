package session

import (
	"sync"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/bsoncore"
)

// ClusterClock tracks the highest $clusterTime any server in the
// deployment has reported, shared by every session and unsessioned
// operation against a Topology so gossip keeps every client's view of
// cluster time converging.
type ClusterClock struct {
	mu          sync.Mutex
	clusterTime bson.Raw
}

// GetClusterTime returns the current cluster time document
// ({$clusterTime: {clusterTime: <ts>, signature: ...}}), or nil if none has
// been observed yet.
func (c *ClusterClock) GetClusterTime() bson.Raw {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clusterTime
}

// AdvanceClusterTime merges a newly observed cluster time document into the
// clock, keeping whichever of the two compares greater.
func (c *ClusterClock) AdvanceClusterTime(clusterTime bson.Raw) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	merged, err := MaxClusterTime(c.clusterTime, clusterTime)
	if err != nil {
		return err
	}
	c.clusterTime = merged
	return nil
}

// MaxClusterTime returns whichever of a and b carries the later
// clusterTime timestamp field, preferring a non-nil document when one is
// nil.
func MaxClusterTime(a, b bson.Raw) (bson.Raw, error) {
	if len(a) == 0 {
		return b, nil
	}
	if len(b) == 0 {
		return a, nil
	}
	ta, err := clusterTimeTimestamp(a)
	if err != nil {
		return nil, err
	}
	tb, err := clusterTimeTimestamp(b)
	if err != nil {
		return nil, err
	}
	if ta.Compare(tb) >= 0 {
		return a, nil
	}
	return b, nil
}

func clusterTimeTimestamp(doc bson.Raw) (bson.Timestamp, error) {
	ct, err := doc.LookupErr("$clusterTime")
	if err != nil {
		return bson.Timestamp{}, err
	}
	inner := ct.Document()
	if inner == nil {
		return bson.Timestamp{}, bsoncore.ErrMalformed
	}
	ts, err := inner.LookupErr("clusterTime")
	if err != nil {
		return bson.Timestamp{}, err
	}
	t, i := ts.Timestamp()
	return bson.Timestamp{T: t, I: i}, nil
}
