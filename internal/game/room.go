package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"coinduel/internal/feed"
	"coinduel/internal/guard"
)

// State represents the lifecycle phase of a room.
type State int

const (
	StateNotStarted State = iota
	StateRoundActive
	StateRoundEnding
	StateNextRoundPending
	StateGameOver
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateRoundActive:
		return "ROUND_ACTIVE"
	case StateRoundEnding:
		return "ROUND_ENDING"
	case StateNextRoundPending:
		return "NEXT_ROUND_PENDING"
	case StateGameOver:
		return "GAME_OVER"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// RoomDeps are the collaborators a room needs. Tests inject fakes.
type RoomDeps struct {
	Emitter Emitter
	Feed    feed.Feed
	Guard   *guard.Guard

	// CloseFn tears the room down at the registry level. Invoked from a
	// bare timer, never while the room lock is held.
	CloseFn func(roomID string)
}

// Room is one active duel: two players, live coins, pending orders and
// every timer scheduled on the room's behalf. All state behind r.mu;
// timer callbacks re-check the shutdown flags before touching anything.
type Room struct {
	mu sync.Mutex

	ID      string
	Players []*Player

	deps RoomDeps
	rng  *rand.Rand

	coins         map[string]*Coin
	pendingOrders map[string]*PendingOrder
	timers        map[string]*time.Timer

	tugOfWar     int
	currentRound int
	player1Wins  int
	player2Wins  int
	// Dollars snapshot taken at round start; the round winner is decided
	// by gain versus this baseline, not by absolute balance.
	cashAtRoundStart [2]int

	state         State
	isSuddenDeath bool
	closing       bool
	shutdown      bool

	roundHistory []RoundSummary
	result       *Result
}

// NewRoom creates a room for two players. Players keep the order they were
// enrolled in: index 0 is player 1 for the whole life of the room.
func NewRoom(p1, p2 *Player, deps RoomDeps) *Room {
	return &Room{
		ID:            uuid.New().String(),
		Players:       []*Player{p1, p2},
		deps:          deps,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		coins:         make(map[string]*Coin),
		pendingOrders: make(map[string]*PendingOrder),
		timers:        make(map[string]*time.Timer),
		state:         StateNotStarted,
	}
}

// Start kicks off round 1.
func (r *Room) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateNotStarted {
		return
	}
	r.currentRound = 1
	r.startRoundLocked()
}

// startRoundLocked begins the current round. Caller must hold r.mu.
func (r *Room) startRoundLocked() {
	r.state = StateRoundActive
	for i, p := range r.Players {
		if i < 2 {
			r.cashAtRoundStart[i] = p.Dollars
		}
	}

	r.broadcastLocked(EventRoundStart, RoundStartPayload{
		RoundNumber:   r.currentRound,
		IsSuddenDeath: r.isSuddenDeath,
		DurationMs:    RoundDuration.Milliseconds(),
	})

	r.scheduleLocked("round", RoundDuration, func() {
		r.forceSettleLocked()
		r.endRoundLocked(false)
	})
	r.scheduleSpawnLocked()
}

// scheduleSpawnLocked arms the next coin spawn at a random interval.
// The loop re-checks room health on every hop; it dies quietly once the
// round ends or a player leaves. Caller must hold r.mu.
func (r *Room) scheduleSpawnLocked() {
	if r.state != StateRoundActive || len(r.Players) < 2 {
		return
	}

	interval := spawnMin + time.Duration(r.rng.Int63n(int64(spawnMax-spawnMin)))
	r.scheduleLocked("spawn", interval, func() {
		if r.state != StateRoundActive || len(r.Players) < 2 {
			return
		}
		r.spawnCoinLocked()
		r.scheduleSpawnLocked()
	})
}

// spawnCoinLocked creates one weighted-random coin and announces it with a
// per-player position. Caller must hold r.mu.
func (r *Room) spawnCoinLocked() {
	// Coins nobody sliced fall off screen; drop them from tracking.
	cutoff := time.Now().Add(-coinLifetime)
	for id, c := range r.coins {
		if c.SpawnedAt.Before(cutoff) {
			delete(r.coins, id)
		}
	}

	kind := coinInventory[r.rng.Intn(len(coinInventory))]
	fx := 0.1 + 0.8*r.rng.Float64() // horizontal fraction of each scene

	coin := &Coin{
		ID:        uuid.New().String(),
		Kind:      kind,
		SpawnX:    fx * r.Players[0].SceneW,
		SpawnY:    r.Players[0].SceneH,
		SpawnedAt: time.Now(),
	}
	r.coins[coin.ID] = coin

	for _, p := range r.Players {
		r.deps.Emitter.Emit(p.ID, EventCoinSpawn, CoinSpawnPayload{
			CoinID:   coin.ID,
			CoinType: kind,
			X:        fx * p.SceneW,
			Y:        p.SceneH,
		})
	}
}

// HandleSlice processes a player slicing a coin. Gas and whale coins take
// effect immediately; call and put coins open a pending order that settles
// after the fixed horizon.
func (r *Room) HandleSlice(playerID, coinID string, kind CoinKind, priceAtSlice float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown || r.closing || r.state != StateRoundActive {
		return
	}

	idx := r.playerIndexLocked(playerID)
	if idx < 0 || len(r.Players) < 2 {
		return
	}
	player := r.Players[idx]
	opponent := r.Players[1-idx]

	// Server-spawned coins are authoritative for their kind; a slice on a
	// coin the server no longer tracks falls back to the declared kind.
	if coin, ok := r.coins[coinID]; ok {
		kind = coin.Kind
		delete(r.coins, coinID)
	}
	if !ValidCoinKind(kind) {
		return
	}

	switch kind {
	case CoinGas:
		transfer(player, opponent, GasPenalty)
		r.shiftTugLocked(idx != 0, GasPenalty) // penalty moves momentum to the opponent
		r.broadcastLocked(EventPlayerHit, PlayerHitPayload{
			PlayerID: player.ID,
			Damage:   GasPenalty,
			Reason:   "gas",
		})
		r.checkKnockoutLocked()

	case CoinWhale:
		player.ActivateWhale()
		r.broadcastLocked(EventWhaleActivated, WhaleActivatedPayload{
			PlayerID:   player.ID,
			PlayerName: player.Name,
			DurationMs: WhaleDuration.Milliseconds(),
		})

	case CoinCall, CoinPut:
		price := priceAtSlice
		if price <= 0 {
			price = r.deps.Feed.Price()
		}
		if price <= 0 {
			r.deps.Emitter.Emit(player.ID, EventError, ErrorPayload{Message: "price unavailable"})
			return
		}

		order := &PendingOrder{
			ID:           uuid.New().String(),
			PlayerID:     player.ID,
			PlayerName:   player.Name,
			CoinKind:     kind,
			PriceAtOrder: price,
			SettlesAt:    time.Now().Add(OrderHorizon),
			IsPlayer1:    idx == 0,
		}
		r.pendingOrders[order.ID] = order

		r.scheduleLocked("order:"+order.ID, OrderHorizon, func() {
			r.settleOrderLocked(order)
		})

		r.broadcastLocked(EventOrderPlaced, OrderPlacedPayload{
			OrderID:      order.ID,
			PlayerID:     player.ID,
			PlayerName:   player.Name,
			CoinType:     kind,
			PriceAtOrder: order.PriceAtOrder,
			SettlesAt:    order.SettlesAt.UnixMilli(),
		})
		r.broadcastLocked(EventCoinSliced, CoinSlicedPayload{
			PlayerID:   player.ID,
			PlayerName: player.Name,
			CoinType:   kind,
		})
	}
}

// endRoundLocked settles stragglers, attributes the round by gain and either
// advances to the next round or finishes the game. Caller must hold r.mu.
func (r *Room) endRoundLocked(knockout bool) {
	if r.state == StateGameOver || r.state == StateClosed || len(r.Players) < 2 {
		return
	}
	r.state = StateRoundEnding
	r.forceSettleLocked()

	p1, p2 := r.Players[0], r.Players[1]
	gained1 := p1.Dollars - r.cashAtRoundStart[0]
	gained2 := p2.Dollars - r.cashAtRoundStart[1]

	summary := RoundSummary{
		RoundNumber: r.currentRound,
		DollarsEach: [2]int{p1.Dollars, p2.Dollars},
		GainedEach:  [2]int{gained1, gained2},
	}
	switch {
	case gained1 > gained2:
		summary.WinnerID = p1.ID
		r.player1Wins++
	case gained2 > gained1:
		summary.WinnerID = p2.ID
		r.player2Wins++
	default:
		summary.IsTie = true
	}
	r.roundHistory = append(r.roundHistory, summary)

	r.broadcastLocked(EventRoundEnd, RoundEndPayload{
		RoundNumber:    r.currentRound,
		WinnerID:       summary.WinnerID,
		IsTie:          summary.IsTie,
		Player1Wins:    r.player1Wins,
		Player2Wins:    r.player2Wins,
		Player1Dollars: p1.Dollars,
		Player2Dollars: p2.Dollars,
		Player1Gained:  gained1,
		Player2Gained:  gained2,
	})

	switch {
	case knockout:
		r.finishGameLocked(ReasonKnockout)
	case r.gameEndConditionLocked(summary.IsTie):
		r.finishGameLocked(ReasonBestOfThree)
	default:
		r.state = StateNextRoundPending
		r.currentRound++
		if r.currentRound == 3 && r.player1Wins == 1 && r.player2Wins == 1 {
			r.isSuddenDeath = true
		}
		r.scheduleLocked("intermission", Intermission, func() {
			if len(r.Players) < 2 {
				return
			}
			r.startRoundLocked()
		})
	}
}

// gameEndConditionLocked reports whether the duel is decided: two round
// wins in best-of-three, or any decisive round during sudden death.
func (r *Room) gameEndConditionLocked(roundWasTie bool) bool {
	if r.player1Wins >= RoundsToWin || r.player2Wins >= RoundsToWin {
		return true
	}
	return r.isSuddenDeath && !roundWasTie
}

// checkKnockoutLocked short-circuits the round the moment a balance hits
// zero: the room stops accepting slices, every pending order settles, and
// the game ends with reason "knockout". Caller must hold r.mu.
func (r *Room) checkKnockoutLocked() {
	if r.closing || r.state != StateRoundActive {
		return
	}
	knocked := false
	for _, p := range r.Players {
		if p.Dollars <= 0 {
			knocked = true
		}
	}
	if !knocked {
		return
	}

	r.closing = true
	r.forceSettleLocked()
	r.endRoundLocked(true)
}

// finishGameLocked emits game_over and schedules teardown after a grace
// delay. Caller must hold r.mu.
func (r *Room) finishGameLocked(reason string) {
	r.state = StateGameOver
	r.result = r.buildResultLocked(reason)

	r.broadcastLocked(EventGameOver, GameOverPayload{
		WinnerID:    r.result.WinnerID,
		WinnerName:  r.result.WinnerName,
		Reason:      reason,
		Player1Wins: r.player1Wins,
		Player2Wins: r.player2Wins,
		Rounds:      r.roundHistory,
	})

	r.cancelTimersLocked()
	if r.deps.CloseFn != nil {
		closeFn := r.deps.CloseFn
		roomID := r.ID
		r.timers["close"] = time.AfterFunc(DeleteGrace, func() {
			closeFn(roomID)
		})
	}
}

// buildResultLocked snapshots the terminal outcome. Caller must hold r.mu.
func (r *Room) buildResultLocked(reason string) *Result {
	res := &Result{
		RoomID:      r.ID,
		Reason:      reason,
		Player1Wins: r.player1Wins,
		Player2Wins: r.player2Wins,
		Rounds:      append([]RoundSummary(nil), r.roundHistory...),
		FinishedAt:  time.Now(),
	}
	wins := [2]int{r.player1Wins, r.player2Wins}
	for i, p := range r.Players {
		if i >= 2 {
			break
		}
		res.Players[i] = ResultPlayer{ID: p.ID, Name: p.Name, Dollars: p.Dollars, RoundsWon: wins[i]}
	}

	if len(r.Players) == 2 {
		winner := (*Player)(nil)
		switch {
		case r.player1Wins > r.player2Wins:
			winner = r.Players[0]
		case r.player2Wins > r.player1Wins:
			winner = r.Players[1]
		case r.Players[0].Dollars > r.Players[1].Dollars:
			winner = r.Players[0]
		case r.Players[1].Dollars > r.Players[0].Dollars:
			winner = r.Players[1]
		}
		if winner != nil {
			res.WinnerID = winner.ID
			res.WinnerName = winner.Name
		}
	} else if len(r.Players) == 1 {
		res.WinnerID = r.Players[0].ID
		res.WinnerName = r.Players[0].Name
	}
	return res
}

// RemovePlayer detaches a disconnected player. The remaining player (if
// any) is told, and pending orders drain through the abort path: with
// fewer than two players, settlement removes orders without touching funds.
// Returns the number of players left.
func (r *Room) RemovePlayer(playerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.playerIndexLocked(playerID)
	if idx < 0 {
		return len(r.Players)
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	r.closing = true
	r.forceSettleLocked()

	for _, p := range r.Players {
		r.deps.Emitter.Emit(p.ID, EventOpponentGone, struct{}{})
	}
	return len(r.Players)
}

// Stop finalizes the room for deletion: the shutdown flag goes up before
// any timer is cancelled, so an in-flight callback observes it and no-ops.
// Any order that somehow survived the drain paths is settled here; the room
// is never destroyed with orders outstanding.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return
	}
	r.shutdown = true
	r.forceSettleLocked()
	r.cancelTimersLocked()
	r.state = StateClosed
}

// EmergencyShutdown drains the room for process termination: every pending
// order settles, one game_over with reason "server_shutdown" goes out, and
// all timers die.
func (r *Room) EmergencyShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateClosed {
		return
	}
	r.shutdown = true
	r.forceSettleLocked()

	if r.state != StateGameOver {
		r.result = r.buildResultLocked(ReasonServerShutdown)
		r.broadcastLocked(EventGameOver, GameOverPayload{
			WinnerID:    r.result.WinnerID,
			WinnerName:  r.result.WinnerName,
			Reason:      ReasonServerShutdown,
			Player1Wins: r.player1Wins,
			Player2Wins: r.player2Wins,
			Rounds:      r.roundHistory,
		})
	}

	r.cancelTimersLocked()
	r.state = StateClosed
}

// forceSettleLocked settles every pending order right now. Caller must
// hold r.mu.
func (r *Room) forceSettleLocked() {
	orders := make([]*PendingOrder, 0, len(r.pendingOrders))
	for _, o := range r.pendingOrders {
		orders = append(orders, o)
	}
	for _, o := range orders {
		r.settleOrderLocked(o)
	}
}

// scheduleLocked arms a named timer owned by the room. The callback runs
// holding r.mu and is suppressed once the room is closing or shut down.
// Caller must hold r.mu.
func (r *Room) scheduleLocked(key string, d time.Duration, fn func()) {
	if t, ok := r.timers[key]; ok {
		t.Stop()
	}
	r.timers[key] = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.timers, key)
		if r.shutdown || r.closing {
			return
		}
		fn()
	})
}

// cancelTimersLocked stops every registered timer. Caller must hold r.mu.
func (r *Room) cancelTimersLocked() {
	for key, t := range r.timers {
		t.Stop()
		delete(r.timers, key)
	}
}

// shiftTugLocked moves the tug-of-war indicator toward the side that came
// out ahead: negative values favor player 1. Caller must hold r.mu.
func (r *Room) shiftTugLocked(winnerIsPlayer1 bool, amount int) {
	if winnerIsPlayer1 {
		r.tugOfWar -= amount
	} else {
		r.tugOfWar += amount
	}
}

// broadcastLocked emits an event to both players. Caller must hold r.mu;
// delivery is non-blocking at the transport, so holding the lock is safe.
func (r *Room) broadcastLocked(event string, payload interface{}) {
	for _, p := range r.Players {
		r.deps.Emitter.Emit(p.ID, event, payload)
	}
}

func (r *Room) playerIndexLocked(playerID string) int {
	for i, p := range r.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// transfer moves up to amount dollars between players. The payer floors at
// zero; the receiver is credited only what was actually paid, so a
// settlement can never mint money.
func transfer(from, to *Player, amount int) int {
	paid := amount
	if from.Dollars < paid {
		paid = from.Dollars
	}
	from.Dollars -= paid
	to.Dollars += paid
	return paid
}

// Accessors, mostly for the registry and tests.

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) PendingOrderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingOrders)
}

func (r *Room) TugOfWar() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tugOfWar
}

func (r *Room) RoundWins() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.player1Wins, r.player2Wins
}

func (r *Room) CurrentRound() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentRound
}

func (r *Room) IsSuddenDeath() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isSuddenDeath
}

func (r *Room) RoundHistory() []RoundSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RoundSummary(nil), r.roundHistory...)
}

// Result returns the terminal outcome, or nil while the game is live.
func (r *Room) Result() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Dollars returns both balances; zeros after a player left.
func (r *Room) Dollars() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var d [2]int
	for i, p := range r.Players {
		if i < 2 {
			d[i] = p.Dollars
		}
	}
	return d[0], d[1]
}
