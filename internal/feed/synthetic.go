package feed

import (
	"math/rand"
	"sync"
	"time"
)

// Synthetic produces price movement via random walk. Used when no live feed
// URL is configured, so the engine stays playable without network access.
type Synthetic struct {
	mu         sync.RWMutex
	price      float64
	volatility float64 // standard deviation of each step
	minPrice   float64
	stopCh     chan struct{}
	stopOnce   sync.Once
	rng        *rand.Rand
}

// NewSynthetic creates a random walk feed starting at initialPrice.
func NewSynthetic(initialPrice, volatility float64) *Synthetic {
	return &Synthetic{
		price:      initialPrice,
		volatility: volatility,
		minPrice:   0.01,
		stopCh:     make(chan struct{}),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Price returns the current synthetic price.
func (s *Synthetic) Price() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price
}

// Start begins generating price steps at the given interval.
func (s *Synthetic) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Disconnect halts price generation. Safe to call more than once.
func (s *Synthetic) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// tick performs one random walk step.
func (s *Synthetic) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.price + s.volatility*s.rng.NormFloat64()
	if next < s.minPrice {
		next = s.minPrice
	}
	s.price = next
}
