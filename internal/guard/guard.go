// Package guard provides per-order mutual exclusion for settlement.
//
// The same order can be targeted by its own settlement timer and by a
// game-over or shutdown sweep in the same instant; whichever call site
// acquires the guard first performs the settlement, the other no-ops.
package guard

import (
	"sync"
	"time"
)

const (
	// staleThreshold bounds how long an acquisition may be held. A crash
	// mid-settlement must not leak a permanent lock.
	staleThreshold = 30 * time.Second
	sweepInterval  = 30 * time.Second
)

// Guard claims exclusive settlement rights per order id.
type Guard struct {
	mu       sync.Mutex
	acquired map[string]time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a guard and starts its stale-acquisition sweep.
func New() *Guard {
	g := &Guard{
		acquired: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}
	go g.sweepLoop()
	return g
}

// TryAcquire claims settlement rights for orderID. Returns false if another
// call site already holds them.
func (g *Guard) TryAcquire(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.acquired[orderID]; held {
		return false
	}
	g.acquired[orderID] = time.Now()
	return true
}

// Release frees the slot for orderID. Runs on both the success and the
// failure path of a settlement.
func (g *Guard) Release(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.acquired, orderID)
}

// Held reports whether orderID is currently acquired.
func (g *Guard) Held(orderID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.acquired[orderID]
	return held
}

// Stop halts the background sweep. Safe to call more than once.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
}

func (g *Guard) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.evictStale()
		case <-g.stopCh:
			return
		}
	}
}

func (g *Guard) evictStale() {
	cutoff := time.Now().Add(-staleThreshold)

	g.mu.Lock()
	defer g.mu.Unlock()
	for id, at := range g.acquired {
		if at.Before(cutoff) {
			delete(g.acquired, id)
		}
	}
}
