package game

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"coinduel/internal/feed"
	"coinduel/internal/guard"
)

// ResultSink receives the outcome of finished duels. The sqlite store
// implements it; a nil sink just drops results.
type ResultSink interface {
	SaveMatch(res Result) error
}

// Registry owns every live room, the waiting pool and the player->room
// index. It pairs waiting players, routes slices and disconnects, and can
// drain the whole engine for shutdown.
type Registry struct {
	mu sync.Mutex

	emitter Emitter
	feed    feed.Feed
	guard   *guard.Guard
	sink    ResultSink

	rooms      map[string]*Room
	playerRoom map[string]string
	waiting    map[string]*WaitingEntry

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry and starts the waiting-pool sweep.
func NewRegistry(emitter Emitter, priceFeed feed.Feed, g *guard.Guard, sink ResultSink) *Registry {
	reg := &Registry{
		emitter:    emitter,
		feed:       priceFeed,
		guard:      g,
		sink:       sink,
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
		waiting:    make(map[string]*WaitingEntry),
		stopCh:     make(chan struct{}),
	}
	go reg.sweepLoop()
	return reg
}

// FindMatch pairs the caller with any waiting player, or enrolls them in
// the waiting pool.
func (reg *Registry) FindMatch(playerID, name string, sceneW, sceneH float64) {
	if sceneW <= 0 {
		sceneW = defaultSceneW
	}
	if sceneH <= 0 {
		sceneH = defaultSceneH
	}

	reg.mu.Lock()

	if _, inRoom := reg.playerRoom[playerID]; inRoom {
		reg.mu.Unlock()
		reg.emitter.Emit(playerID, EventError, ErrorPayload{Message: "already in a game"})
		return
	}

	// Pick any other still-fresh entry; purge stale ones on the way.
	cutoff := time.Now().Add(-WaitingTTL)
	var opponent *WaitingEntry
	for id, entry := range reg.waiting {
		if entry.JoinedAt.Before(cutoff) {
			delete(reg.waiting, id)
			continue
		}
		if id != playerID {
			opponent = entry
			break
		}
	}

	if opponent == nil {
		reg.waiting[playerID] = &WaitingEntry{
			PlayerID: playerID,
			Name:     name,
			SceneW:   sceneW,
			SceneH:   sceneH,
			JoinedAt: time.Now(),
		}
		reg.mu.Unlock()
		reg.emitter.Emit(playerID, EventWaitingForMatch, struct{}{})
		return
	}

	delete(reg.waiting, opponent.PlayerID)
	delete(reg.waiting, playerID)

	// The player who waited longer becomes player 1.
	p1 := &Player{ID: opponent.PlayerID, Name: opponent.Name, Dollars: StartingDollars, SceneW: opponent.SceneW, SceneH: opponent.SceneH}
	p2 := &Player{ID: playerID, Name: name, Dollars: StartingDollars, SceneW: sceneW, SceneH: sceneH}

	room := NewRoom(p1, p2, RoomDeps{
		Emitter: reg.emitter,
		Feed:    reg.feed,
		Guard:   reg.guard,
		CloseFn: reg.DeleteRoom,
	})
	reg.rooms[room.ID] = room
	reg.playerRoom[p1.ID] = room.ID
	reg.playerRoom[p2.ID] = room.ID
	reg.mu.Unlock()

	payload := MatchFoundPayload{
		RoomID: room.ID,
		Players: [2]PlayerInfo{
			{ID: p1.ID, Name: p1.Name, Dollars: p1.Dollars},
			{ID: p2.ID, Name: p2.Name, Dollars: p2.Dollars},
		},
	}
	reg.emitter.Emit(p1.ID, EventMatchFound, payload)
	reg.emitter.Emit(p2.ID, EventMatchFound, payload)

	log.Printf("[Registry] Matched %s vs %s in room %s", p1.Name, p2.Name, room.ID)
	room.Start()
}

// HandleSlice routes a slice to the player's room, if any.
func (reg *Registry) HandleSlice(playerID, coinID string, kind CoinKind, priceAtSlice float64) {
	room := reg.roomFor(playerID)
	if room == nil {
		return
	}
	room.HandleSlice(playerID, coinID, kind, priceAtSlice)
}

// HandleDisconnect detaches a player wherever they are. A live opponent is
// notified, the room's orders drain, and the room is torn down.
func (reg *Registry) HandleDisconnect(playerID string) {
	reg.mu.Lock()
	delete(reg.waiting, playerID)
	roomID, ok := reg.playerRoom[playerID]
	reg.mu.Unlock()

	if !ok {
		return
	}

	room := reg.roomFor(playerID)
	if room == nil {
		return
	}
	room.RemovePlayer(playerID)
	reg.DeleteRoom(roomID)
}

// DeleteRoom removes a room from the registry and stops it. The room's
// shutdown flag goes up before its timers are cancelled, so a callback
// already in flight no-ops instead of mutating a half-destroyed room.
func (reg *Registry) DeleteRoom(roomID string) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return
	}
	delete(reg.rooms, roomID)
	for playerID, rid := range reg.playerRoom {
		if rid == roomID {
			delete(reg.playerRoom, playerID)
		}
	}
	reg.mu.Unlock()

	room.Stop()
	reg.persist(room)
}

// EmergencyShutdown drains every live room for graceful process
// termination. No order is silently dropped: each room settles everything
// it still holds and emits one final game_over.
func (reg *Registry) EmergencyShutdown() {
	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.rooms = make(map[string]*Room)
	reg.playerRoom = make(map[string]string)
	reg.waiting = make(map[string]*WaitingEntry)
	reg.mu.Unlock()

	for _, room := range rooms {
		room.EmergencyShutdown()
		reg.persist(room)
	}
	reg.Stop()

	log.Printf("[Registry] Emergency shutdown drained %d room(s)", len(rooms))
}

// Stop halts the waiting-pool sweep. Safe to call more than once.
func (reg *Registry) Stop() {
	reg.stopOnce.Do(func() { close(reg.stopCh) })
}

// Stats is a point-in-time snapshot for the status endpoint.
type Stats struct {
	ActiveRooms    int `json:"active_rooms"`
	WaitingPlayers int `json:"waiting_players"`
}

// GetStats returns current registry occupancy.
func (reg *Registry) GetStats() Stats {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return Stats{
		ActiveRooms:    len(reg.rooms),
		WaitingPlayers: len(reg.waiting),
	}
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// WaitingCount returns the size of the waiting pool.
func (reg *Registry) WaitingCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.waiting)
}

func (reg *Registry) roomFor(playerID string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	roomID, ok := reg.playerRoom[playerID]
	if !ok {
		return nil
	}
	return reg.rooms[roomID]
}

// persist hands a finished room's result to the sink, if both exist.
func (reg *Registry) persist(room *Room) {
	if reg.sink == nil {
		return
	}
	res := room.Result()
	if res == nil {
		return
	}
	if err := reg.sink.SaveMatch(*res); err != nil {
		log.Printf("[Registry] Failed to save match %s: %v", res.RoomID, err)
	}
}

// sweepLoop purges waiting entries that outlived the TTL; a player who
// never got a response does not linger forever.
func (reg *Registry) sweepLoop() {
	ticker := time.NewTicker(waitingSweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reg.purgeStaleWaiting()
		case <-reg.stopCh:
			return
		}
	}
}

func (reg *Registry) purgeStaleWaiting() {
	cutoff := time.Now().Add(-WaitingTTL)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for id, entry := range reg.waiting {
		if entry.JoinedAt.Before(cutoff) {
			delete(reg.waiting, id)
		}
	}
}

// NewPlayerID mints an identifier for a freshly connected player.
func NewPlayerID() string {
	return uuid.New().String()
}
