package description

import (
	"fmt"

	"github.com/nimbusdb/nimbus-go-driver/internal/address"
)

// Topology is an immutable snapshot of the entire deployment: the kind of
// topology observed and every known server's last description (spec.md §3,
// TopologyDescription). Like Server, a new Topology always replaces the
// previous one wholesale.
type Topology struct {
	Kind                  TopologyKind
	Servers               []Server
	SetName               string
	MaxSetVersion         uint32
	MaxElectionID         [12]byte
	HasMaxElectionID      bool
	SessionTimeoutMinutes int64 // -1 if no data-bearing server reports one
	CompatibilityErr      error
}

// Server returns the description for addr, and whether one was found.
func (t Topology) Server(addr address.Address) (Server, bool) {
	for _, s := range t.Servers {
		if s.Addr == addr {
			return s, true
		}
	}
	return Server{}, false
}

// Primary returns the RSPrimary server, if any.
func (t Topology) Primary() (Server, bool) {
	for _, s := range t.Servers {
		if s.Kind == RSPrimary {
			return s, true
		}
	}
	return Server{}, false
}

// HasReadableServer reports whether any server could serve a read under the
// given kind-agnostic test (used by clients waiting for a usable topology).
func (t Topology) HasReadableServer() bool {
	for _, s := range t.Servers {
		if s.DataBearing() {
			return true
		}
	}
	return false
}

// WithServer returns a copy of t with replacement substituted for the
// server at the same address (or appended, if no such server exists yet),
// with the logical-session timeout and compatibility invariants recomputed.
func (t Topology) WithServer(replacement Server) Topology {
	out := t
	out.Servers = make([]Server, len(t.Servers))
	copy(out.Servers, t.Servers)

	found := false
	for i, s := range out.Servers {
		if s.Addr == replacement.Addr {
			out.Servers[i] = replacement
			found = true
			break
		}
	}
	if !found {
		out.Servers = append(out.Servers, replacement)
	}
	out.recomputeInvariants()
	return out
}

// WithoutServer returns a copy of t with addr removed entirely, used when
// the FSM determines a server is no longer part of the deployment (e.g. a
// replica set member not present in a primary's host list).
func (t Topology) WithoutServer(addr address.Address) Topology {
	out := t
	out.Servers = nil
	for _, s := range t.Servers {
		if s.Addr != addr {
			out.Servers = append(out.Servers, s)
		}
	}
	out.recomputeInvariants()
	return out
}

// recomputeInvariants enforces spec.md §4.1's topology-level invariants:
// the logical session timeout is the minimum reported by any data-bearing
// server (or absent if any data-bearing server omits it), and wire-version
// compatibility is recomputed against every data-bearing server.
func (t *Topology) recomputeInvariants() {
	var incompatible error

	for _, s := range t.Servers {
		if !s.DataBearing() || s.WireVersion == nil {
			continue
		}
		if s.WireVersion.Max < SupportedWireVersions.Min {
			incompatible = fmt.Errorf("description: server at %s reports wire version max %d, this driver requires at least %d (server too old)",
				s.Addr, s.WireVersion.Max, SupportedWireVersions.Min)
		} else if s.WireVersion.Min > SupportedWireVersions.Max {
			incompatible = fmt.Errorf("description: server at %s reports wire version min %d, this driver supports at most %d (server too new)",
				s.Addr, s.WireVersion.Min, SupportedWireVersions.Max)
		}
	}

	t.SessionTimeoutMinutes = computeMinTimeout(t.Servers)
	t.CompatibilityErr = incompatible
}

func computeMinTimeout(servers []Server) int64 {
	var min int64 = -1
	for _, s := range servers {
		if !s.DataBearing() {
			continue
		}
		if s.SessionTimeout < 0 {
			return -1
		}
		if min < 0 || s.SessionTimeout < min {
			min = s.SessionTimeout
		}
	}
	return min
}

// NewTopology returns an empty Unknown-kind topology seeded with default
// (unprobed) descriptions for each of the given seed addresses, the initial
// state a client starts monitoring from (spec.md §4.1 initial state).
func NewTopology(kind TopologyKind, setName string, seeds []address.Address) Topology {
	t := Topology{Kind: kind, SetName: setName, SessionTimeoutMinutes: -1}
	for _, a := range seeds {
		t.Servers = append(t.Servers, NewDefaultServer(a))
	}
	return t
}
