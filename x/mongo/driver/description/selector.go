package description

import (
	"time"

	"github.com/nimbusdb/nimbus-go-driver/internal/address"
	"github.com/nimbusdb/nimbus-go-driver/readpref"
)

// ServerSelector narrows a Topology snapshot down to the servers eligible
// for an operation (spec.md §4.3).
type ServerSelector interface {
	SelectServer(Topology, []Server) ([]Server, error)
}

// ServerSelectorFunc adapts a plain function to a ServerSelector.
type ServerSelectorFunc func(Topology, []Server) ([]Server, error)

// SelectServer implements ServerSelector.
func (f ServerSelectorFunc) SelectServer(t Topology, candidates []Server) ([]Server, error) {
	return f(t, candidates)
}

// CompositeSelector chains selectors, each narrowing the candidate set the
// previous one produced.
type CompositeSelector []ServerSelector

// SelectServer implements ServerSelector.
func (cs CompositeSelector) SelectServer(t Topology, candidates []Server) ([]Server, error) {
	var err error
	for _, s := range cs {
		candidates, err = s.SelectServer(t, candidates)
		if err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// WriteSelector selects the server(s) that can accept writes: the primary
// in a replica set, any mongos in a sharded cluster, the lone server in
// Single mode, or the gateway in load-balanced mode.
var WriteSelector ServerSelectorFunc = func(t Topology, candidates []Server) ([]Server, error) {
	var out []Server
	for _, s := range candidates {
		switch s.Kind {
		case RSPrimary, Mongos, Standalone, LoadBalancer:
			out = append(out, s)
		}
	}
	return out, nil
}

// minStalenessSeconds is the floor spec.md §4.3 imposes on maxStaleness:
// 90 seconds plus the monitor's heartbeat frequency.
func minStalenessSeconds(heartbeatFrequency time.Duration) float64 {
	return 90 + heartbeatFrequency.Seconds()
}

// ReadPrefSelector narrows candidates by a read preference mode and,
// for replica sets, by tag sets and maxStalenessSeconds.
func ReadPrefSelector(rp *readpref.ReadPref, heartbeatFrequency time.Duration) ServerSelectorFunc {
	return func(t Topology, candidates []Server) ([]Server, error) {
		switch t.Kind {
		case Single, LoadBalanced:
			return candidates, nil
		case Sharded:
			return WriteSelector.SelectServer(t, candidates)
		}

		if rp == nil {
			rp = readpref.Primary()
		}

		switch rp.Mode() {
		case readpref.PrimaryMode:
			return filterKind(candidates, RSPrimary), nil
		case readpref.PrimaryPreferredMode:
			if p := filterKind(candidates, RSPrimary); len(p) > 0 {
				return p, nil
			}
			return filterSecondaries(t, candidates, rp, heartbeatFrequency)
		case readpref.SecondaryPreferredMode:
			if s, err := filterSecondaries(t, candidates, rp, heartbeatFrequency); err == nil && len(s) > 0 {
				return s, nil
			}
			return filterKind(candidates, RSPrimary), nil
		case readpref.SecondaryMode:
			return filterSecondaries(t, candidates, rp, heartbeatFrequency)
		case readpref.NearestMode:
			var out []Server
			for _, s := range candidates {
				if s.Kind == RSPrimary || s.Kind == RSSecondary {
					out = append(out, s)
				}
			}
			return filterByTags(filterByStaleness(t, out, rp, heartbeatFrequency), rp), nil
		default:
			return filterKind(candidates, RSPrimary), nil
		}
	}
}

func filterKind(candidates []Server, kind ServerKind) []Server {
	var out []Server
	for _, s := range candidates {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func filterSecondaries(t Topology, candidates []Server, rp *readpref.ReadPref, heartbeatFrequency time.Duration) ([]Server, error) {
	secs := filterKind(candidates, RSSecondary)
	return filterByTags(filterByStaleness(t, secs, rp, heartbeatFrequency), rp), nil
}

// filterByStaleness drops secondaries whose estimated staleness relative to
// the primary (or, with no known primary, the freshest secondary) exceeds
// rp's MaxStaleness, per spec.md §4.3 step 2 and the min-90s floor.
func filterByStaleness(t Topology, secondaries []Server, rp *readpref.ReadPref, heartbeatFrequency time.Duration) []Server {
	maxStaleness, ok := rp.MaxStaleness()
	if !ok {
		return secondaries
	}

	floor := minStalenessSeconds(heartbeatFrequency)
	if maxStaleness.Seconds() < floor {
		maxStaleness = time.Duration(floor * float64(time.Second))
	}

	primary, hasPrimary := t.Primary()
	freshest := freshestWrite(secondaries)

	var out []Server
	for _, s := range secondaries {
		var staleness time.Duration
		if hasPrimary {
			staleness = s.LastUpdateTime.Sub(s.LastWriteTime) -
				primary.LastUpdateTime.Sub(primary.LastWriteTime) +
				heartbeatFrequency
		} else {
			staleness = freshest.Sub(s.LastWriteTime) + heartbeatFrequency
		}
		if staleness <= maxStaleness {
			out = append(out, s)
		}
	}
	return out
}

func freshestWrite(servers []Server) time.Time {
	var max time.Time
	for _, s := range servers {
		if s.LastWriteTime.After(max) {
			max = s.LastWriteTime
		}
	}
	return max
}

// filterByTags tries rp's tag sets in order and returns the first set's
// matches once that set matches at least one candidate; an empty tag-set
// list matches everything.
func filterByTags(candidates []Server, rp *readpref.ReadPref) []Server {
	maps := rp.TagSets()
	if len(maps) == 0 {
		return candidates
	}
	sets := NewTagSetsFromMaps(maps)
	for _, ts := range sets {
		var out []Server
		for _, s := range candidates {
			if ts.ContainedIn(s.Tags) {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// ExcludeAddressSelector drops addr from the candidate set, unless doing so
// would leave nothing to select from -- spec.md §4.3 step 4's rule for
// keeping a retry off the server that just failed it, without making a
// retry impossible when that server is the only candidate left.
func ExcludeAddressSelector(addr address.Address) ServerSelectorFunc {
	return func(_ Topology, candidates []Server) ([]Server, error) {
		if addr == "" {
			return candidates, nil
		}
		var out []Server
		for _, s := range candidates {
			if s.Addr != addr {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return candidates, nil
		}
		return out, nil
	}
}

// LatencySelector keeps only the servers within the latency window of the
// fastest candidate (spec.md §4.3 step 3), the set among which the client
// then picks via the two-random-samples/fewest-outstanding-ops rule.
func LatencySelector(localThreshold time.Duration) ServerSelectorFunc {
	return func(_ Topology, candidates []Server) ([]Server, error) {
		if len(candidates) == 0 {
			return nil, nil
		}
		var min time.Duration
		minSet := false
		for _, s := range candidates {
			if s.AverageRTTSet && (!minSet || s.AverageRTT < min) {
				min = s.AverageRTT
				minSet = true
			}
		}
		var out []Server
		for _, s := range candidates {
			if !s.AverageRTTSet || s.AverageRTT <= min+localThreshold {
				out = append(out, s)
			}
		}
		return out, nil
	}
}
