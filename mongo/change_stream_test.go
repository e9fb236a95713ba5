package mongo

import (
	"testing"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/mongo/options"
)

func TestWatchPipelinePrependsChangeStreamStage(t *testing.T) {
	csOpts := options.ChangeStream().SetFullDocument("updateLookup")
	userPipeline := Pipeline{{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}}}

	stages, err := watchPipeline(userPipeline, csOpts, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stages) != 2 {
		t.Fatalf("len(stages) = %d, want 2", len(stages))
	}

	first, ok := stages[0].(bson.D)
	if !ok {
		t.Fatalf("stages[0] = %T, want bson.D", stages[0])
	}
	if first[0].Key != "$changeStream" {
		t.Fatalf("stages[0] key = %q, want $changeStream", first[0].Key)
	}
	csStage, ok := first[0].Value.(bson.D)
	if !ok {
		t.Fatalf("$changeStream value = %T, want bson.D", first[0].Value)
	}
	found := false
	for _, e := range csStage {
		if e.Key == "fullDocument" && e.Value == "updateLookup" {
			found = true
		}
	}
	if !found {
		t.Fatal("$changeStream stage missing fullDocument: updateLookup")
	}

	doc, err := TransformDocument(stages[1])
	if err != nil {
		t.Fatalf("unexpected error transforming user stage: %v", err)
	}
	if _, err := doc.LookupErr("$match"); err != nil {
		t.Fatalf("stages[1] missing $match: %v", err)
	}
}

func TestWatchPipelineClusterWide(t *testing.T) {
	csOpts := options.ChangeStream()
	stages, err := watchPipeline(nil, csOpts, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stages) != 1 {
		t.Fatalf("len(stages) = %d, want 1", len(stages))
	}
	first := stages[0].(bson.D)
	csStage := first[0].Value.(bson.D)
	if csStage[0].Key != "allChangesForCluster" || csStage[0].Value != true {
		t.Fatalf("cluster-wide stage missing allChangesForCluster: true, got %#v", csStage)
	}
}

func TestWatchPipelineOmitsResumeAfterForNilToken(t *testing.T) {
	csOpts := options.ChangeStream()
	resumeToken := bson.Raw(nil)
	stages, err := watchPipeline(nil, csOpts, resumeToken, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := stages[0].(bson.D)
	csStage := first[0].Value.(bson.D)
	for _, e := range csStage {
		if e.Key == "resumeAfter" {
			t.Fatal("resumeAfter should be omitted for a nil token")
		}
	}
}
