// Package readpref implements read preferences: the client-side policy that
// decides which kind of server in a deployment may serve a given read.
package readpref

import (
	"errors"
	"time"
)

// Mode describes which kind(s) of server may serve a read.
type Mode uint8

// The five read preference modes (spec.md §4.3).
const (
	PrimaryMode Mode = iota
	PrimaryPreferredMode
	SecondaryMode
	SecondaryPreferredMode
	NearestMode
)

func (m Mode) String() string {
	switch m {
	case PrimaryMode:
		return "primary"
	case PrimaryPreferredMode:
		return "primaryPreferred"
	case SecondaryMode:
		return "secondary"
	case SecondaryPreferredMode:
		return "secondaryPreferred"
	case NearestMode:
		return "nearest"
	default:
		return "unknown"
	}
}

// ErrInvalidTagSets is returned when tag sets are supplied alongside the
// Primary mode, which spec.md §4.3 forbids: the primary is unique, so
// narrowing by tags makes no sense.
var ErrInvalidTagSets = errors.New("readpref: a non-empty tag set list is not allowed with mode Primary")

// ReadPref pairs a Mode with the optional tag sets and max staleness that
// narrow it further. The zero value is not valid; use the constructors.
type ReadPref struct {
	mode         Mode
	tagSets      []map[string]string
	maxStaleness time.Duration
	hasStaleness bool
}

// Option configures a ReadPref under New.
type Option func(*ReadPref) error

// New constructs a ReadPref, applying opts in order and rejecting
// combinations spec.md §4.3 disallows.
func New(mode Mode, opts ...Option) (*ReadPref, error) {
	rp := &ReadPref{mode: mode}
	for _, opt := range opts {
		if err := opt(rp); err != nil {
			return nil, err
		}
	}
	if mode == PrimaryMode && len(rp.tagSets) > 0 {
		return nil, ErrInvalidTagSets
	}
	return rp, nil
}

// WithTagSets sets the ordered list of tag sets tried in turn until one
// matches at least one server.
func WithTagSets(tagSets ...map[string]string) Option {
	return func(rp *ReadPref) error {
		rp.tagSets = tagSets
		return nil
	}
}

// WithMaxStaleness sets the maximum staleness a secondary may have to be
// eligible. d is clamped up to the spec.md §4.3 floor (90s + heartbeat
// frequency) at selection time, not here, since the heartbeat frequency is
// only known by the selector.
func WithMaxStaleness(d time.Duration) Option {
	return func(rp *ReadPref) error {
		rp.maxStaleness = d
		rp.hasStaleness = true
		return nil
	}
}

// Primary returns the PrimaryMode preference, the default.
func Primary() *ReadPref { rp, _ := New(PrimaryMode); return rp }

// PrimaryPreferred returns a PrimaryPreferredMode preference.
func PrimaryPreferred(opts ...Option) *ReadPref { rp, _ := New(PrimaryPreferredMode, opts...); return rp }

// Secondary returns a SecondaryMode preference.
func Secondary(opts ...Option) *ReadPref { rp, _ := New(SecondaryMode, opts...); return rp }

// SecondaryPreferred returns a SecondaryPreferredMode preference.
func SecondaryPreferred(opts ...Option) *ReadPref { rp, _ := New(SecondaryPreferredMode, opts...); return rp }

// Nearest returns a NearestMode preference.
func Nearest(opts ...Option) *ReadPref { rp, _ := New(NearestMode, opts...); return rp }

// Mode returns rp's mode.
func (rp *ReadPref) Mode() Mode { return rp.mode }

// TagSets returns rp's tag sets, nil if none were set.
func (rp *ReadPref) TagSets() []map[string]string { return rp.tagSets }

// MaxStaleness returns rp's configured max staleness and whether one was
// set at all.
func (rp *ReadPref) MaxStaleness() (time.Duration, bool) { return rp.maxStaleness, rp.hasStaleness }
