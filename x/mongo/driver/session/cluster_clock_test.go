package session

import (
	"testing"

	"github.com/nimbusdb/nimbus-go-driver/bson"
)

func clusterTimeDoc(t *testing.T, ts, i uint32) bson.Raw {
	t.Helper()
	doc, err := bson.Marshal(bson.D{
		{Key: "$clusterTime", Value: bson.D{
			{Key: "clusterTime", Value: bson.Timestamp{T: ts, I: i}},
			{Key: "signature", Value: bson.D{{Key: "hash", Value: "x"}}},
		}},
	})
	if err != nil {
		t.Fatalf("failed to build fixture cluster time: %v", err)
	}
	return bson.Raw(doc)
}

func TestMaxClusterTimeNilOperands(t *testing.T) {
	b := clusterTimeDoc(t, 5, 1)

	got, err := MaxClusterTime(nil, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(b) {
		t.Fatal("expected the non-nil operand when a is nil")
	}

	got, err = MaxClusterTime(b, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(b) {
		t.Fatal("expected the non-nil operand when b is nil")
	}
}

func TestMaxClusterTimePicksLater(t *testing.T) {
	earlier := clusterTimeDoc(t, 5, 1)
	later := clusterTimeDoc(t, 10, 1)

	got, err := MaxClusterTime(earlier, later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(later) {
		t.Fatal("expected the later cluster time regardless of argument order")
	}

	got, err = MaxClusterTime(later, earlier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(later) {
		t.Fatal("expected the later cluster time regardless of argument order")
	}
}

func TestClusterClockAdvance(t *testing.T) {
	c := &ClusterClock{}
	if got := c.GetClusterTime(); got != nil {
		t.Fatalf("expected a fresh clock to start nil, got %v", got)
	}

	first := clusterTimeDoc(t, 5, 1)
	if err := c.AdvanceClusterTime(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(c.GetClusterTime()) != string(first) {
		t.Fatal("expected the clock to adopt the first observed cluster time")
	}

	earlier := clusterTimeDoc(t, 2, 1)
	if err := c.AdvanceClusterTime(earlier); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(c.GetClusterTime()) != string(first) {
		t.Fatal("expected an earlier cluster time to leave the clock unchanged")
	}

	later := clusterTimeDoc(t, 9, 1)
	if err := c.AdvanceClusterTime(later); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(c.GetClusterTime()) != string(later) {
		t.Fatal("expected a later cluster time to advance the clock")
	}
}
