// Package csot implements client-side operation timeout: a single,
// optional deadline that bounds server selection, connection checkout, and
// every round trip of an operation (including retries), as opposed to a
// separate timeout at each of those stages.
package csot

import (
	"context"
	"time"
)

type timeoutKey struct{}

// MakeTimeoutContext returns ctx annotated as a CSOT context, with a
// deadline of to if to is non-zero. Operations read IsTimeoutContext to
// decide whether a remaining-time budget (rather than per-stage timeouts)
// governs their retry loop.
func MakeTimeoutContext(ctx context.Context, to time.Duration) (context.Context, context.CancelFunc) {
	cancel := func() {}
	if to != 0 {
		ctx, cancel = context.WithTimeout(ctx, to)
	}
	return context.WithValue(ctx, timeoutKey{}, true), cancel
}

// IsTimeoutContext reports whether ctx carries a CSOT deadline.
func IsTimeoutContext(ctx context.Context) bool {
	return ctx.Value(timeoutKey{}) != nil
}

// WithServerSelectionTimeout bounds parent by the lesser of its own
// deadline (if any) and serverSelectionTimeout. A non-positive
// serverSelectionTimeout is ignored.
func WithServerSelectionTimeout(
	parent context.Context,
	serverSelectionTimeout time.Duration,
) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := parent.Deadline()

	switch {
	case !hasDeadline && serverSelectionTimeout <= 0:
		return parent, func() {}
	case !hasDeadline:
		return context.WithTimeout(parent, serverSelectionTimeout)
	}

	remaining := time.Until(deadline)
	if serverSelectionTimeout > 0 && serverSelectionTimeout < remaining {
		remaining = serverSelectionTimeout
	}
	return context.WithTimeout(parent, remaining)
}

// RemainingOrDefault returns the time left until ctx's deadline, or def if
// ctx carries no deadline.
func RemainingOrDefault(ctx context.Context, def time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return def
	}
	return time.Until(deadline)
}
