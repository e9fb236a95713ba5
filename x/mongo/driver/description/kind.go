// Package description implements the data model from spec.md §3-§4.1: the
// per-server and per-topology snapshots that drive server selection, and
// the selectors that choose a server from a snapshot (spec.md §4.3).
package description

// ServerKind represents the kind of a server as derived from the fields of
// its most recent hello reply (spec.md §3, ServerType).
type ServerKind uint32

// The possible server kinds.
const (
	Unknown ServerKind = iota
	Standalone
	RSMember
	RSGhost
	RSPrimary
	RSSecondary
	RSArbiter
	RSOther
	Mongos
	LoadBalancer
)

func (kind ServerKind) String() string {
	switch kind {
	case Standalone:
		return "Standalone"
	case RSMember:
		return "RSMember"
	case RSGhost:
		return "RSGhost"
	case RSPrimary:
		return "RSPrimary"
	case RSSecondary:
		return "RSSecondary"
	case RSArbiter:
		return "RSArbiter"
	case RSOther:
		return "RSOther"
	case Mongos:
		return "Mongos"
	case LoadBalancer:
		return "LoadBalancer"
	default:
		return "Unknown"
	}
}

// TopologyKind represents the kind of a topology (spec.md §3, TopologyType).
type TopologyKind uint32

// The possible topology kinds.
const (
	TopologyUnknown TopologyKind = iota
	Single
	ReplicaSet
	ReplicaSetNoPrimary
	ReplicaSetWithPrimary
	Sharded
	LoadBalanced
)

func (kind TopologyKind) String() string {
	switch kind {
	case Single:
		return "Single"
	case ReplicaSet:
		return "ReplicaSet"
	case ReplicaSetNoPrimary:
		return "ReplicaSetNoPrimary"
	case ReplicaSetWithPrimary:
		return "ReplicaSetWithPrimary"
	case Sharded:
		return "Sharded"
	case LoadBalanced:
		return "LoadBalanced"
	default:
		return "Unknown"
	}
}

// VersionRange represents an inclusive min/max wire-version range, used both
// to describe what a server supports and what this driver supports, so a
// disjoint pair is detectable (spec.md §4.1 step 4, compatibility error).
type VersionRange struct {
	Min int32
	Max int32
}

// NewVersionRange constructs a VersionRange.
func NewVersionRange(min, max int32) VersionRange { return VersionRange{Min: min, Max: max} }

// Includes reports whether v is within the range.
func (vr VersionRange) Includes(v int32) bool { return v >= vr.Min && v <= vr.Max }

// SupportedWireVersions is the range of wire versions this driver speaks.
// 6 corresponds to the oldest server this driver supports sessions against;
// 21 is a recent server generation. Kept as a var (not const) so tests can
// narrow it to exercise the compatibility-error path.
var SupportedWireVersions = NewVersionRange(6, 21)

// SessionsSupported reports whether a server at the given max wire version
// supports logical sessions at all.
func SessionsSupported(maxWireVersion int32) bool {
	return maxWireVersion >= 6
}
