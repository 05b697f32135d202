package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"coinduel/internal/feed"
	"coinduel/internal/game"
	"coinduel/internal/guard"
	"coinduel/internal/store"
)

func newTestServer(t *testing.T) (*Server, *game.Registry) {
	t.Helper()

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	g := guard.New()
	t.Cleanup(g.Stop)

	hub := NewHub()
	registry := game.NewRegistry(hub, feed.NewStatic(100), g, st)
	t.Cleanup(func() { registry.EmergencyShutdown() })

	srv := NewServer(hub, registry, st)
	t.Cleanup(srv.Shutdown)
	return srv, registry
}

func TestSanitizePlayerName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"alice", "alice", true},
		{"Alice_99", "Alice_99", true},
		{"with-dash", "with-dash", true},
		{"spaces in name", "spacesinname", true},
		{"<script>alert(1)</script>", "scriptalert1script", true},
		{"", "", false},
		{"!!!", "", false},
		{strings.Repeat("a", 21), "", false},
		{strings.Repeat("a", 20), strings.Repeat("a", 20), true},
	}

	for _, tt := range tests {
		got, ok := SanitizePlayerName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SanitizePlayerName(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, registry := newTestServer(t)
	registry.FindMatch("p1", "alice", 800, 600)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if status.WaitingPlayers != 1 || status.ActiveRooms != 0 {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.ConnectedPlayers != 0 {
		t.Errorf("no websocket clients connected, got %d", status.ConnectedPlayers)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
}

func TestLeaderboardLimitClamped(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, q := range []string{"?limit=0", "?limit=-3", "?limit=9999", "?limit=abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/leaderboard"+q, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("limit %q should fall back to the default, got %d", q, rec.Code)
		}
	}
}

func TestCheckCORSOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	// No configured origins: allow everything.
	if !srv.checkCORSOrigin("https://anywhere.example") {
		t.Error("empty origin list should allow all")
	}

	srv.SetCORSOrigins([]string{"https://game.example"})
	if !srv.checkCORSOrigin("https://game.example") {
		t.Error("configured origin should be allowed")
	}
	if srv.checkCORSOrigin("https://evil.example") {
		t.Error("unlisted origin should be rejected")
	}
	if !srv.checkCORSOrigin("") {
		t.Error("same-origin requests carry no Origin header and must pass")
	}
}

func TestHubEmitToMissingPlayer(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Emit("nobody", game.EventError, game.ErrorPayload{Message: "x"})
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, 1), playerID: "p1"}

	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Emit("p1", game.EventWaitingForMatch, struct{}{})
	select {
	case raw := <-c.send:
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("invalid envelope: %v", err)
		}
		if env.Type != game.EventWaitingForMatch {
			t.Errorf("expected type %q, got %q", game.EventWaitingForMatch, env.Type)
		}
	default:
		t.Fatal("emitted event never reached the client buffer")
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}

	// A stale unregister for a reconnected player must not evict the new
	// connection.
	fresh := &Client{hub: hub, send: make(chan []byte, 1), playerID: "p1"}
	hub.Register(fresh)
	hub.Unregister(c)
	if hub.ClientCount() != 1 {
		t.Errorf("stale unregister evicted the fresh connection")
	}
}

func TestHubEmitConcurrentWithUnregister(t *testing.T) {
	// A disconnect closes the send channel while room timers may still be
	// emitting to the same player; close and send must be mutually
	// exclusive or a late Emit panics on the closed channel.
	for i := 0; i < 2000; i++ {
		hub := NewHub()
		c := &Client{hub: hub, send: make(chan []byte, 1), playerID: "p1"}
		hub.Register(c)

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hub.Emit("p1", game.EventWaitingForMatch, struct{}{})
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Unregister(c)
		}()
		wg.Wait()

		if hub.ClientCount() != 0 {
			t.Fatalf("client still registered after unregister on iteration %d", i)
		}
	}
}

func TestHubEmitDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, 1), playerID: "p1"}
	hub.Register(c)

	hub.Emit("p1", game.EventWaitingForMatch, struct{}{})
	hub.Emit("p1", game.EventWaitingForMatch, struct{}{}) // buffer full, dropped

	if got := len(c.send); got != 1 {
		t.Errorf("expected exactly 1 buffered message, got %d", got)
	}
}
