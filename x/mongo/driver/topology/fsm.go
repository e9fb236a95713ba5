package topology

import (
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/description"
)

// fsm implements the pure topology update rules of spec.md §4.1: given the
// current Topology and one new Server description, compute the next
// Topology. It carries no I/O and is driven entirely by updateDescription;
// kept as its own type (mirroring the teacher's separation of the update
// rules from the per-server monitor goroutines) so the transition table can
// be exercised directly by tests.
type fsm struct {
	description.Topology
}

func newFSM(initial description.Topology) *fsm {
	return &fsm{Topology: initial}
}

// apply runs one incoming Server description through the update rules and
// returns the new Topology. desc.Kind == Unknown always replaces the stored
// description for that address with the error description, never removing
// a server outright except where the rules below say so explicitly.
func (f *fsm) apply(desc description.Server) description.Topology {
	if _, ok := f.Topology.Server(desc.Addr); !ok {
		// Spec.md §4.1: ignore descriptions from servers no longer tracked
		// (e.g. removed by a prior primary's host list).
		return f.Topology
	}

	switch f.Kind {
	case description.TopologyUnknown:
		f.applyToUnknown(desc)
	case description.Sharded:
		f.applyToSharded(desc)
	case description.ReplicaSetNoPrimary:
		f.applyToReplicaSetNoPrimary(desc)
	case description.ReplicaSetWithPrimary:
		f.applyToReplicaSetWithPrimary(desc)
	case description.Single:
		// Single-mode topologies never change kind or drop their one server;
		// only the stored description is replaced.
		f.Topology = f.Topology.WithServer(desc)
	}
	return f.Topology
}

func (f *fsm) applyToUnknown(desc description.Server) {
	switch desc.Kind {
	case description.Standalone:
		f.updateUnknownWithStandalone(desc)
	case description.RSPrimary:
		f.Kind = description.ReplicaSetWithPrimary
		f.updateRSFromPrimary(desc)
	case description.RSSecondary, description.RSArbiter, description.RSOther:
		f.Kind = description.ReplicaSetNoPrimary
		f.updateRSWithoutPrimary(desc)
	case description.Mongos:
		f.Kind = description.Sharded
		f.Topology = f.Topology.WithServer(desc)
	case description.Unknown, description.RSGhost:
		f.Topology = f.Topology.WithServer(desc)
	}
}

func (f *fsm) updateUnknownWithStandalone(desc description.Server) {
	if len(f.Servers) == 1 {
		f.Kind = description.Single
		f.Topology = f.Topology.WithServer(desc)
		return
	}
	// A standalone showing up in a multi-seed deployment is dropped: it
	// cannot be part of a replica set or sharded cluster.
	f.Topology = f.Topology.WithoutServer(desc.Addr)
}

func (f *fsm) applyToSharded(desc description.Server) {
	switch desc.Kind {
	case description.Mongos, description.Unknown:
		f.Topology = f.Topology.WithServer(desc)
	default:
		// Any non-mongos, non-unknown kind showing up in a sharded cluster is
		// not part of it.
		f.Topology = f.Topology.WithoutServer(desc.Addr)
	}
}

func (f *fsm) applyToReplicaSetNoPrimary(desc description.Server) {
	switch desc.Kind {
	case description.Standalone, description.Mongos:
		f.Topology = f.Topology.WithoutServer(desc.Addr)
	case description.RSPrimary:
		f.updateRSFromPrimary(desc)
	case description.RSSecondary, description.RSArbiter, description.RSOther:
		f.updateRSWithoutPrimary(desc)
	case description.Unknown, description.RSGhost:
		f.Topology = f.Topology.WithServer(desc)
	}
	f.checkIfHasPrimary()
}

func (f *fsm) applyToReplicaSetWithPrimary(desc description.Server) {
	switch desc.Kind {
	case description.Standalone, description.Mongos:
		f.Topology = f.Topology.WithoutServer(desc.Addr)
		f.checkIfHasPrimary()
	case description.RSPrimary:
		f.updateRSFromPrimary(desc)
	case description.RSSecondary, description.RSArbiter, description.RSOther:
		f.updateRSWithPrimaryFromMember(desc)
	case description.Unknown:
		f.Topology = f.Topology.WithServer(desc)
		f.checkIfHasPrimary()
	case description.RSGhost:
		f.Topology = f.Topology.WithServer(desc)
		f.checkIfHasPrimary()
	}
}

// updateRSFromPrimary applies spec.md §4.1's primary-description rules: set
// replica set name (or drop the server if it disagrees), drop any stale
// primary an obsolete electionId/setVersion reports, replace the member
// list wholesale, and demote any other server currently marked RSPrimary.
func (f *fsm) updateRSFromPrimary(desc description.Server) {
	if f.SetName == "" {
		f.SetName = desc.SetName
	} else if f.SetName != desc.SetName {
		f.Topology = f.Topology.WithoutServer(desc.Addr)
		f.checkIfHasPrimary()
		return
	}

	if desc.HasElectionID && desc.SetVersion != 0 {
		if f.HasMaxElectionID && f.MaxSetVersion != 0 {
			if (f.MaxSetVersion > desc.SetVersion) ||
				(f.MaxSetVersion == desc.SetVersion && compareElectionIDs(f.MaxElectionID, desc.ElectionID) > 0) {
				// Stale primary: replace with an Unknown description instead.
				f.Topology = f.Topology.WithServer(description.NewServerFromError(desc.Addr, nil, desc.TopologyVersion))
				f.checkIfHasPrimary()
				return
			}
		}
		f.MaxElectionID = desc.ElectionID
		f.HasMaxElectionID = true
	}
	if desc.SetVersion > f.MaxSetVersion {
		f.MaxSetVersion = desc.SetVersion
	}

	// Demote any existing primary before installing the new one: at most one
	// primary may be recorded at a time.
	for _, s := range f.Servers {
		if s.Kind == description.RSPrimary && s.Addr != desc.Addr {
			f.Topology = f.Topology.WithServer(description.NewServerFromError(s.Addr, nil, s.TopologyVersion))
		}
	}

	f.Topology = f.Topology.WithServer(desc)
	f.addUnknownMembers(desc)
	f.removeMembersNotInHostList(desc)
	f.checkIfHasPrimary()
}

func (f *fsm) updateRSWithoutPrimary(desc description.Server) {
	if f.SetName == "" {
		f.SetName = desc.SetName
	} else if f.SetName != desc.SetName {
		f.Topology = f.Topology.WithoutServer(desc.Addr)
		return
	}
	f.Topology = f.Topology.WithServer(desc)
	f.addUnknownMembers(desc)
}

func (f *fsm) updateRSWithPrimaryFromMember(desc description.Server) {
	if f.SetName != desc.SetName {
		f.Topology = f.Topology.WithoutServer(desc.Addr)
		f.checkIfHasPrimary()
		return
	}
	f.Topology = f.Topology.WithServer(desc)
	f.checkIfHasPrimary()
}

func (f *fsm) addUnknownMembers(desc description.Server) {
	for _, addr := range desc.Members() {
		if _, ok := f.Topology.Server(addr); !ok {
			f.Topology = f.Topology.WithServer(description.NewDefaultServer(addr))
		}
	}
}

func (f *fsm) removeMembersNotInHostList(desc description.Server) {
	members := make(map[address.Address]bool, len(desc.Members()))
	for _, a := range desc.Members() {
		members[a] = true
	}
	for _, s := range f.Servers {
		if !members[s.Addr] {
			f.Topology = f.Topology.WithoutServer(s.Addr)
		}
	}
}

func (f *fsm) checkIfHasPrimary() {
	if _, ok := f.Topology.Primary(); ok {
		f.Kind = description.ReplicaSetWithPrimary
	} else {
		f.Kind = description.ReplicaSetNoPrimary
	}
}

func compareElectionIDs(a, b [12]byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
