package pipeline

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Guard is the single-flight lock shared by every pipeline that must not run
// concurrently. Share one Guard between Pipeline values to make them mutually
// exclusive; each New without WithGuard gets its own.
type Guard struct {
	sem  *semaphore.Weighted
	held atomic.Bool
}

func NewGuard() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// TryAcquire checks and takes the guard in one step. It never blocks.
func (g *Guard) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.held.Store(true)
	return true
}

// Release frees the guard. Releasing a guard that is not held is a no-op.
func (g *Guard) Release() {
	if g.held.CompareAndSwap(true, false) {
		g.sem.Release(1)
	}
}
