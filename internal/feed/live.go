package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const reconnectBackoff = 5 * time.Second

// Live maintains a single persistent websocket subscription to an external
// trade stream and caches the most recent price. On any transport failure it
// keeps serving the last good price and schedules a reconnect after a fixed
// backoff: stale-but-available beats unavailable.
type Live struct {
	mu sync.RWMutex

	url    string
	symbol string

	conn   *websocket.Conn
	price  float64
	closed bool

	stopCh chan struct{}
}

// tradeMessage is the subset of the stream payload we care about.
// Binance-style trade events carry the price as a decimal string.
type tradeMessage struct {
	Price string `json:"p"`
}

// NewLive creates a live feed for one symbol and starts its subscription.
// baseURL is the websocket endpoint, e.g. wss://stream.binance.com:9443/ws.
func NewLive(baseURL, symbol string) *Live {
	l := &Live{
		url:    fmt.Sprintf("%s/%s@trade", strings.TrimRight(baseURL, "/"), strings.ToLower(symbol)),
		symbol: symbol,
		stopCh: make(chan struct{}),
	}
	go l.run()
	return l
}

// Price returns the last known price (0 before the first tick).
func (l *Live) Price() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.price
}

// Disconnect tears down the subscription and cancels any pending reconnect.
// Safe to call more than once.
func (l *Live) Disconnect() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.stopCh)
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// run owns the connect / read / reconnect cycle.
func (l *Live) run() {
	for {
		if l.isClosed() {
			return
		}

		conn, _, err := websocket.DefaultDialer.Dial(l.url, nil)
		if err != nil {
			log.Printf("[Feed] Connect failed for %s: %v (retrying in %s)", l.symbol, err, reconnectBackoff)
			if !l.sleep(reconnectBackoff) {
				return
			}
			continue
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			conn.Close()
			return
		}
		l.conn = conn
		l.mu.Unlock()

		log.Printf("[Feed] Subscribed to %s trade stream", l.symbol)
		l.readLoop(conn)

		if l.isClosed() {
			return
		}
		log.Printf("[Feed] Stream for %s dropped, reconnecting in %s", l.symbol, reconnectBackoff)
		if !l.sleep(reconnectBackoff) {
			return
		}
	}
}

// readLoop consumes trade messages until the connection dies.
func (l *Live) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg tradeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		price, err := strconv.ParseFloat(msg.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		l.mu.Lock()
		l.price = price
		l.mu.Unlock()
	}
}

// sleep waits for d or until Disconnect. Returns false when disconnecting.
func (l *Live) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-l.stopCh:
		return false
	}
}

func (l *Live) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}
