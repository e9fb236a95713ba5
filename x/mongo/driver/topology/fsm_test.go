package topology

import (
	"testing"

	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

func addr(s string) address.Address { return address.Address(s).Canonicalize() }

func newTestFSM(kind description.TopologyKind, setName string, addrs ...string) *fsm {
	var seeds []address.Address
	for _, a := range addrs {
		seeds = append(seeds, addr(a))
	}
	return newFSM(description.NewTopology(kind, setName, seeds))
}

func TestFSMUnknownToStandaloneSingle(t *testing.T) {
	f := newTestFSM(description.TopologyUnknown, "", "a:27017")

	next := f.apply(description.Server{Addr: addr("a:27017"), Kind: description.Standalone, SessionTimeout: -1})

	if next.Kind != description.Single {
		t.Fatalf("Kind = %v, want Single", next.Kind)
	}
}

func TestFSMUnknownToStandaloneDroppedWhenMultiSeed(t *testing.T) {
	f := newTestFSM(description.TopologyUnknown, "", "a:27017", "b:27017")

	next := f.apply(description.Server{Addr: addr("a:27017"), Kind: description.Standalone, SessionTimeout: -1})

	if next.Kind != description.TopologyUnknown {
		t.Fatalf("Kind = %v, want TopologyUnknown (standalone among multiple seeds is dropped)", next.Kind)
	}
	if _, ok := next.Server(addr("a:27017")); ok {
		t.Fatal("expected the standalone server to be dropped from a multi-seed deployment")
	}
}

func TestFSMUnknownToReplicaSetWithPrimary(t *testing.T) {
	f := newTestFSM(description.TopologyUnknown, "", "a:27017")

	next := f.apply(description.Server{
		Addr: addr("a:27017"), Kind: description.RSPrimary, SetName: "rs0", SessionTimeout: -1,
		Hosts: []address.Address{addr("a:27017"), addr("b:27017")},
	})

	if next.Kind != description.ReplicaSetWithPrimary {
		t.Fatalf("Kind = %v, want ReplicaSetWithPrimary", next.Kind)
	}
	if next.SetName != "rs0" {
		t.Fatalf("SetName = %q, want rs0", next.SetName)
	}
	if _, ok := next.Server(addr("b:27017")); !ok {
		t.Fatal("expected b:27017 to be added as an unknown member discovered via hosts")
	}
}

func TestFSMPrimaryDroppedOnSetNameMismatch(t *testing.T) {
	f := newTestFSM(description.ReplicaSetWithPrimary, "rs0", "a:27017")
	f.Topology = f.Topology.WithServer(description.Server{Addr: addr("a:27017"), Kind: description.RSPrimary, SetName: "rs0", SessionTimeout: -1})

	next := f.apply(description.Server{Addr: addr("a:27017"), Kind: description.RSPrimary, SetName: "rs1", SessionTimeout: -1})

	if _, ok := next.Server(addr("a:27017")); ok {
		t.Fatal("expected server reporting a different set name to be dropped entirely")
	}
}

func TestFSMStalePrimaryRejectedByOlderSetVersion(t *testing.T) {
	var oldID, newID [12]byte
	newID[11] = 1 // lexicographically greater than the zero electionId

	f := newTestFSM(description.ReplicaSetNoPrimary, "rs0", "a:27017", "b:27017")

	// a wins an election at setVersion 2.
	next := f.apply(description.Server{
		Addr: addr("a:27017"), Kind: description.RSPrimary, SetName: "rs0", SessionTimeout: -1,
		HasElectionID: true, ElectionID: newID, SetVersion: 2,
		Hosts: []address.Address{addr("a:27017"), addr("b:27017")},
	})
	if next.Kind != description.ReplicaSetWithPrimary {
		t.Fatalf("Kind after first primary = %v, want ReplicaSetWithPrimary", next.Kind)
	}

	// b then reports itself primary with an older setVersion: stale data,
	// likely from before a's election, and must be rejected rather than
	// demoting the already-accepted newer primary.
	f.Topology = next
	stale := f.apply(description.Server{
		Addr: addr("b:27017"), Kind: description.RSPrimary, SetName: "rs0", SessionTimeout: -1,
		HasElectionID: true, ElectionID: oldID, SetVersion: 1,
	})

	a, _ := stale.Server(addr("a:27017"))
	b, _ := stale.Server(addr("b:27017"))
	if b.Kind == description.RSPrimary {
		t.Fatal("expected b to be rejected as a stale primary (older setVersion than the incumbent)")
	}
	if a.Kind != description.RSPrimary {
		t.Fatal("expected the incumbent primary a to remain primary")
	}
}

func TestFSMMemberRemovedFromHostList(t *testing.T) {
	f := newTestFSM(description.ReplicaSetWithPrimary, "rs0", "a:27017", "b:27017")
	f.Topology = f.Topology.WithServer(description.Server{Addr: addr("a:27017"), Kind: description.RSPrimary, SetName: "rs0", SessionTimeout: -1})
	f.Topology = f.Topology.WithServer(description.Server{Addr: addr("b:27017"), Kind: description.RSSecondary, SetName: "rs0", SessionTimeout: -1})

	next := f.apply(description.Server{
		Addr: addr("a:27017"), Kind: description.RSPrimary, SetName: "rs0", SessionTimeout: -1,
		Hosts: []address.Address{addr("a:27017")}, // b no longer listed
	})

	if _, ok := next.Server(addr("b:27017")); ok {
		t.Fatal("expected b to be dropped once the primary's host list no longer includes it")
	}
}

func TestFSMIgnoresUntrackedServer(t *testing.T) {
	f := newTestFSM(description.TopologyUnknown, "", "a:27017")

	before := f.Topology
	next := f.apply(description.Server{Addr: addr("z:27017"), Kind: description.Standalone, SessionTimeout: -1})

	if len(next.Servers) != len(before.Servers) {
		t.Fatal("expected a description for an untracked address to be ignored entirely")
	}
}

func TestFSMShardedDropsNonMongos(t *testing.T) {
	f := newTestFSM(description.Sharded, "", "a:27017")
	f.Topology = f.Topology.WithServer(description.Server{Addr: addr("a:27017"), Kind: description.Mongos, SessionTimeout: -1})

	next := f.apply(description.Server{Addr: addr("a:27017"), Kind: description.RSPrimary, SetName: "rs0", SessionTimeout: -1})

	if _, ok := next.Server(addr("a:27017")); ok {
		t.Fatal("expected a replica-set member reported inside a sharded cluster to be dropped")
	}
}

func TestFSMSingleNeverChangesKind(t *testing.T) {
	f := newTestFSM(description.Single, "", "a:27017")

	next := f.apply(description.Server{Addr: addr("a:27017"), Kind: description.Unknown, SessionTimeout: -1})

	if next.Kind != description.Single {
		t.Fatalf("Kind = %v, want Single (single-mode topology kind never changes)", next.Kind)
	}
}
