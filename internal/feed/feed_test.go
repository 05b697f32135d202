package feed

import (
	"testing"
	"time"
)

func TestStaticPrice(t *testing.T) {
	s := NewStatic(42000)

	if got := s.Price(); got != 42000 {
		t.Errorf("expected 42000, got %f", got)
	}

	s.SetPrice(43500.25)
	if got := s.Price(); got != 43500.25 {
		t.Errorf("expected 43500.25, got %f", got)
	}
}

func TestSyntheticWalksFromInitialPrice(t *testing.T) {
	s := NewSynthetic(50000, 25)
	defer s.Disconnect()

	if got := s.Price(); got != 50000 {
		t.Errorf("expected initial price 50000, got %f", got)
	}

	for i := 0; i < 100; i++ {
		s.tick()
		if s.Price() < 0.01 {
			t.Fatalf("price fell below the floor: %f", s.Price())
		}
	}
}

func TestSyntheticFloorsAtMinPrice(t *testing.T) {
	s := NewSynthetic(0.02, 1000)
	defer s.Disconnect()

	for i := 0; i < 50; i++ {
		s.tick()
	}
	if got := s.Price(); got < 0.01 {
		t.Errorf("price must never go below 0.01, got %f", got)
	}
}

func TestSyntheticStartProducesMovement(t *testing.T) {
	s := NewSynthetic(100, 5)
	s.Start(time.Millisecond)
	defer s.Disconnect()

	deadline := time.After(time.Second)
	for {
		if s.Price() != 100 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("price never moved after Start")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSyntheticDisconnectIdempotent(t *testing.T) {
	s := NewSynthetic(100, 5)
	s.Start(time.Millisecond)
	s.Disconnect()
	s.Disconnect()
}

func TestLiveDisconnectIdempotent(t *testing.T) {
	// Never connected; Disconnect must still be safe, twice.
	l := NewLive("ws://127.0.0.1:1/ws", "btcusdt")
	l.Disconnect()
	l.Disconnect()
}
