// Package randutil provides a process-wide, mutex-guarded random source
// for the small amount of randomness server selection needs (spreading
// load across equally-suitable servers), so callers don't each need to
// seed and guard their own *rand.Rand.
package randutil

import (
	"math/rand"
	"sync"
	"time"
)

var (
	mu  sync.Mutex
	src = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Seed reseeds the shared source; tests use this for deterministic
// selection among otherwise-equal candidates.
func Seed(seed int64) {
	mu.Lock()
	defer mu.Unlock()
	src = rand.New(rand.NewSource(seed))
}

// Intn returns a non-negative random number in [0,n).
func Intn(n int) int {
	mu.Lock()
	defer mu.Unlock()
	return src.Intn(n)
}
