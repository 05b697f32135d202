package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"coinduel/internal/game"
	"coinduel/internal/store"
)

// Server exposes the websocket surface players connect to, plus a small
// REST API for the leaderboard and operational status.
type Server struct {
	hub         *Hub
	registry    *game.Registry
	store       *store.Store
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	corsOrigins []string // allowed CORS origins (empty = allow all)
}

// NewServer wires the hub (created by the caller so the registry can emit
// through it) to the HTTP surface.
func NewServer(hub *Hub, registry *game.Registry, st *store.Store) *Server {
	s := &Server{
		hub:         hub,
		registry:    registry,
		store:       st,
		rateLimiter: NewRateLimiter(100, 1*time.Minute),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}
	return s
}

// Hub returns the connection hub; it is the registry's Emitter.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetCORSOrigins sets the allowed CORS origins. An empty slice allows all
// origins (development mode).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return true
	}
	// Empty origin header = same-origin request, always allow
	if origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/status", s.handleStatus)
	})

	r.Get("/ws", s.handleWebSocket)

	return r
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries, err := s.store.Leaderboard(limit)
	if err != nil {
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

type statusResponse struct {
	ActiveRooms      int `json:"active_rooms"`
	WaitingPlayers   int `json:"waiting_players"`
	ConnectedPlayers int `json:"connected_players"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.GetStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		ActiveRooms:      stats.ActiveRooms,
		WaitingPlayers:   stats.WaitingPlayers,
		ConnectedPlayers: s.hub.ClientCount(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		playerID: game.NewPlayerID(),
		registry: s.registry,
	}

	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// Shutdown stops the server's internal goroutines.
func (s *Server) Shutdown() {
	s.rateLimiter.Stop()
}

var nameAllowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizePlayerName strips a submitted name to [A-Za-z0-9_-] and enforces
// the 1-20 character bound. Returns false when nothing valid remains.
func SanitizePlayerName(name string) (string, bool) {
	cleaned := nameAllowed.ReplaceAllString(name, "")
	if len(cleaned) == 0 || len(cleaned) > 20 {
		return "", false
	}
	return cleaned, true
}
