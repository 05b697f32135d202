package api

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"coinduel/internal/game"
)

// Hub maintains active player connections and delivers addressed events.
// It implements game.Emitter.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // playerID -> connection
}

// Client is one connected player.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	registry *game.Registry
}

// envelope is the wire format in both directions: an event name plus an
// event-specific payload.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.playerID] = client
	h.mu.Unlock()
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if existing, ok := h.clients[client.playerID]; ok && existing == client {
		delete(h.clients, client.playerID)
		close(client.send)
	}
	h.mu.Unlock()
}

// Emit delivers one event to one player. Delivery is non-blocking: a
// player whose buffer is full misses the event rather than stalling the
// engine. The read lock is held across the send so Unregister cannot
// close the channel between the lookup and the select.
func (h *Hub) Emit(playerID, event string, payload interface{}) {
	data, err := json.Marshal(outEnvelope{Type: event, Data: payload})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[playerID]
	if !ok {
		return
	}

	select {
	case client.send <- data:
	default:
		// Client buffer full, skip
	}
}

// ClientCount returns the number of connected players.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// Inbound message payloads.

type findMatchMessage struct {
	PlayerName  string  `json:"playerName"`
	SceneWidth  float64 `json:"sceneWidth"`
	SceneHeight float64 `json:"sceneHeight"`
}

type sliceCoinMessage struct {
	CoinID       string  `json:"coinId"`
	CoinType     string  `json:"coinType"`
	PriceAtSlice float64 `json:"priceAtSlice"`
}

// ReadPump decodes inbound events and routes them to the registry. A dead
// connection counts as a disconnect for matchmaking purposes.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.HandleDisconnect(c.playerID)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case "find_match":
			var msg findMatchMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			name, ok := SanitizePlayerName(msg.PlayerName)
			if !ok {
				c.hub.Emit(c.playerID, game.EventError, game.ErrorPayload{Message: "invalid player name"})
				continue
			}
			c.registry.FindMatch(c.playerID, name, msg.SceneWidth, msg.SceneHeight)

		case "slice_coin":
			var msg sliceCoinMessage
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				continue
			}
			kind := game.CoinKind(msg.CoinType)
			if !game.ValidCoinKind(kind) {
				// Unknown coin kinds are dropped, not answered.
				continue
			}
			c.registry.HandleSlice(c.playerID, msg.CoinID, kind, msg.PriceAtSlice)

		default:
			log.Printf("[API] Dropping unknown message type %q from %s", env.Type, c.playerID)
		}
	}
}
