// Package feed supplies the latest market price for a tracked symbol.
// Rooms only ever read the cached value; they never wait on a fetch.
package feed

import "sync"

// Feed provides the last known price for the tracked symbol.
type Feed interface {
	// Price returns the last known price. It never blocks; before the
	// first update it returns 0.
	Price() float64
}

// Static is a fixed-price feed for tests.
type Static struct {
	mu    sync.RWMutex
	price float64
}

// NewStatic creates a static feed seeded with the given price.
func NewStatic(price float64) *Static {
	return &Static{price: price}
}

// Price returns the current price.
func (s *Static) Price() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price
}

// SetPrice updates the price returned by subsequent Price calls.
func (s *Static) SetPrice(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = price
}
