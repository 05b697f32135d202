package guard

import (
	"sync"
	"testing"
	"time"
)

func TestTryAcquireExclusive(t *testing.T) {
	g := New()
	defer g.Stop()

	if !g.TryAcquire("order-1") {
		t.Fatal("first acquire should succeed")
	}
	if g.TryAcquire("order-1") {
		t.Error("second acquire on a held order must fail")
	}
	if !g.TryAcquire("order-2") {
		t.Error("unrelated order should acquire independently")
	}
}

func TestReleaseFreesSlot(t *testing.T) {
	g := New()
	defer g.Stop()

	g.TryAcquire("order-1")
	g.Release("order-1")

	if g.Held("order-1") {
		t.Error("released order should not be held")
	}
	if !g.TryAcquire("order-1") {
		t.Error("released order should be acquirable again")
	}
}

func TestReleaseUnknownOrderIsNoop(t *testing.T) {
	g := New()
	defer g.Stop()

	g.Release("never-acquired")
	if g.Held("never-acquired") {
		t.Error("unknown order must not appear held")
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	g := New()
	defer g.Stop()

	const racers = 32
	var wg sync.WaitGroup
	var wins int32
	var mu sync.Mutex

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire("contested") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("exactly one racer should win, got %d", wins)
	}
}

func TestEvictStale(t *testing.T) {
	g := New()
	defer g.Stop()

	g.TryAcquire("crashed")
	g.mu.Lock()
	g.acquired["crashed"] = time.Now().Add(-staleThreshold - time.Second)
	g.mu.Unlock()

	g.evictStale()

	if g.Held("crashed") {
		t.Error("stale acquisition should be evicted")
	}
	if !g.TryAcquire("crashed") {
		t.Error("evicted order should be acquirable again")
	}
}

func TestEvictStaleKeepsFresh(t *testing.T) {
	g := New()
	defer g.Stop()

	g.TryAcquire("live")
	g.evictStale()

	if !g.Held("live") {
		t.Error("fresh acquisition must survive the sweep")
	}
}

func TestStopIdempotent(t *testing.T) {
	g := New()
	g.Stop()
	g.Stop()
}
