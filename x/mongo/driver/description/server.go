package description

import (
	"fmt"
	"time"

	"github.com/nimbusdb/nimbus-go-driver/bson"
	"github.com/nimbusdb/nimbus-go-driver/internal/address"
)

// Server is an immutable snapshot of one server's last-observed state, the
// ServerDescription of spec.md §3. A new Server always replaces the
// previous one wholesale; it is never mutated in place.
type Server struct {
	Addr address.Address

	Kind              ServerKind
	AverageRTT        time.Duration
	AverageRTTSet     bool
	LastWriteTime     time.Time
	OpTime            *bson.Timestamp
	Tags              TagSet
	SetName           string
	SetVersion        uint32
	ElectionID        bson.ObjectID
	HasElectionID     bool
	Primary           address.Address
	LastUpdateTime    time.Time
	WireVersion       *VersionRange
	MaxBSONObjectSize uint32
	MaxMessageSize    uint32
	MaxWriteBatchSize uint32
	SessionTimeout    int64 // minutes, -1 if absent
	Compression       []string
	HeartbeatInterval time.Duration
	ServiceID         *bson.ObjectID // present in load-balanced mode
	TopologyVersion   *TopologyVersion
	LastError         error

	// Hosts, Passives, and Arbiters are the replica-set member lists a
	// primary or other member reports; the topology FSM unions these across
	// all known servers to discover addresses it has not yet probed.
	Hosts    []address.Address
	Passives []address.Address
	Arbiters []address.Address
}

// Members returns the union of Hosts, Passives, and Arbiters.
func (s Server) Members() []address.Address {
	out := make([]address.Address, 0, len(s.Hosts)+len(s.Passives)+len(s.Arbiters))
	out = append(out, s.Hosts...)
	out = append(out, s.Passives...)
	out = append(out, s.Arbiters...)
	return out
}

// TopologyVersion is the monotonic (processId, counter) pair servers report
// so state-change notifications can be ordered and stale ones discarded.
type TopologyVersion struct {
	ProcessID bson.ObjectID
	Counter   int64
}

// CompareTopologyVersion returns -1, 0, or 1 comparing two (possibly nil)
// TopologyVersions; nil is considered older than any non-nil value.
func CompareTopologyVersion(a, b *TopologyVersion) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.ProcessID != b.ProcessID:
		return 0 // different processes: incomparable, treat as unordered
	case a.Counter < b.Counter:
		return -1
	case a.Counter > b.Counter:
		return 1
	default:
		return 0
	}
}

// NewDefaultServer returns the zero-value (Unknown) description for a
// server that has not yet been probed.
func NewDefaultServer(addr address.Address) Server {
	return Server{Addr: addr, Kind: Unknown, SessionTimeout: -1, LastUpdateTime: time.Now()}
}

// NewServerFromError builds an Unknown Server description carrying the
// error from a failed probe or handshake (spec.md §4.1 failure semantics:
// probe errors never remove a server, they mark it Unknown with an error).
func NewServerFromError(addr address.Address, err error, tv *TopologyVersion) Server {
	return Server{
		Addr:            addr,
		Kind:            Unknown,
		LastError:       err,
		SessionTimeout:  -1,
		LastUpdateTime:  time.Now(),
		TopologyVersion: tv,
	}
}

// SetAverageRTT returns a copy of s with the average round-trip time set.
func (s Server) SetAverageRTT(rtt time.Duration) Server {
	s.AverageRTT = rtt
	s.AverageRTTSet = true
	return s
}

// DataBearing reports whether s is a server that can serve reads/writes
// directly (as opposed to being Unknown or a routing-only / ghost member).
func (s Server) DataBearing() bool {
	switch s.Kind {
	case Standalone, RSPrimary, RSSecondary, Mongos, LoadBalancer:
		return true
	default:
		return false
	}
}

// NewServerFromHello converts a hello/isMaster reply into a Server
// description, the pure function spec.md §3 says is derived purely from the
// fields of the reply.
func NewServerFromHello(addr address.Address, response bson.Raw, rtt time.Duration, rttSet bool) (Server, error) {
	s := Server{
		Addr:           addr,
		SessionTimeout: -1,
		LastUpdateTime: time.Now(),
		AverageRTT:     rtt,
		AverageRTTSet:  rttSet,
	}

	elems, err := response.Elements()
	if err != nil {
		return Server{}, fmt.Errorf("description: invalid hello reply: %w", err)
	}

	var isReplicaSet, isWritablePrimary, secondary, arbiterOnly, hidden bool
	var msg string
	var minWire, maxWire int32 = -1, -1
	var tagsMap = map[string]string{}

	for _, e := range elems {
		v := e.Value()
		switch e.Key() {
		case "ismaster", "isWritablePrimary":
			isWritablePrimary = v.Boolean()
		case "secondary":
			secondary = v.Boolean()
		case "arbiterOnly":
			arbiterOnly = v.Boolean()
		case "hidden":
			hidden = v.Boolean()
		case "setName":
			s.SetName = v.StringValue()
			isReplicaSet = true
		case "setVersion":
			s.SetVersion = uint32(v.AsInt64())
		case "electionId":
			s.ElectionID = v.ObjectID()
			s.HasElectionID = true
		case "primary":
			s.Primary = address.Address(v.StringValue()).Canonicalize()
		case "msg":
			msg = v.StringValue()
		case "maxBsonObjectSize":
			s.MaxBSONObjectSize = uint32(v.AsInt64())
		case "maxMessageSizeBytes":
			s.MaxMessageSize = uint32(v.AsInt64())
		case "maxWriteBatchSize":
			s.MaxWriteBatchSize = uint32(v.AsInt64())
		case "lastWrite":
			if doc := v.Document(); doc != nil {
				if lw, err := doc.LookupErr("lastWriteDate"); err == nil {
					s.LastWriteTime = lw.DateTime().Time()
				}
			}
		case "logicalSessionTimeoutMinutes":
			s.SessionTimeout = v.AsInt64()
		case "minWireVersion":
			minWire = v.Int32()
		case "maxWireVersion":
			maxWire = v.Int32()
		case "compression":
			if arr := v.Array(); arr != nil {
				vals, _ := v.Values()
				for _, vv := range vals {
					s.Compression = append(s.Compression, vv.StringValue())
				}
			}
		case "tags":
			if doc := v.Document(); doc != nil {
				tagElems, _ := doc.Elements()
				for _, te := range tagElems {
					tagsMap[te.Key()] = te.Value().StringValue()
				}
			}
		case "hosts":
			s.Hosts = addressArray(v)
		case "passives":
			s.Passives = addressArray(v)
		case "arbiters":
			s.Arbiters = addressArray(v)
		case "serviceId":
			id := v.ObjectID()
			s.ServiceID = &id
		case "topologyVersion":
			if doc := v.Document(); doc != nil {
				tv := &TopologyVersion{}
				if pid, err := doc.LookupErr("processId"); err == nil {
					tv.ProcessID = pid.ObjectID()
				}
				if ctr, err := doc.LookupErr("counter"); err == nil {
					tv.Counter = ctr.Int64()
				}
				s.TopologyVersion = tv
			}
		}
	}

	if minWire >= 0 && maxWire >= 0 {
		vr := NewVersionRange(minWire, maxWire)
		s.WireVersion = &vr
	}

	for k, val := range tagsMap {
		s.Tags = append(s.Tags, Tag{Name: k, Value: val})
	}

	switch {
	case isReplicaSet && isWritablePrimary:
		s.Kind = RSPrimary
	case isReplicaSet && secondary:
		s.Kind = RSSecondary
	case isReplicaSet && arbiterOnly:
		s.Kind = RSArbiter
	case isReplicaSet && hidden:
		s.Kind = RSOther
	case isReplicaSet && msg == "isdbgrid":
		s.Kind = Mongos
	case isReplicaSet:
		s.Kind = RSOther
	case msg == "isdbgrid":
		s.Kind = Mongos
	case isWritablePrimary:
		s.Kind = Standalone
	default:
		if isReplicaSet {
			s.Kind = RSGhost
		} else {
			s.Kind = Standalone
		}
	}

	return s, nil
}

func addressArray(v bson.RawValue) []address.Address {
	arr := v.Array()
	if arr == nil {
		return nil
	}
	elems, _ := arr.Elements()
	out := make([]address.Address, len(elems))
	for i, e := range elems {
		out[i] = address.Address(e.Value().StringValue()).Canonicalize()
	}
	return out
}
