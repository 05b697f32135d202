// Package game implements the duel engine: matchmaking, per-room state,
// the coin-spawn / order / settlement pipeline and the best-of-three round
// machine.
package game

import "time"

// Engine tuning constants.
const (
	StartingDollars = 10
	GasPenalty      = 1
	WhaleMultiplier = 2
	RoundsToWin     = 2

	WhaleDuration = 15 * time.Second
	OrderHorizon  = 10 * time.Second
	RoundDuration = 100 * time.Second
	Intermission  = 5 * time.Second
	DeleteGrace   = 5 * time.Second
	WaitingTTL    = 30 * time.Second

	waitingSweep  = 10 * time.Second
	spawnMin      = 800 * time.Millisecond
	spawnMax      = 1200 * time.Millisecond
	coinLifetime  = 10 * time.Second
	defaultSceneW = 800.0
	defaultSceneH = 600.0
)

// CoinKind identifies what slicing a coin does.
type CoinKind string

const (
	CoinCall  CoinKind = "call"  // bet that the price rises
	CoinPut   CoinKind = "put"   // bet that the price falls
	CoinGas   CoinKind = "gas"   // immediate penalty
	CoinWhale CoinKind = "whale" // 2x impact for a fixed window
)

// Spawn inventory; call and put are twice as likely as gas or whale.
var coinInventory = [...]CoinKind{CoinCall, CoinCall, CoinPut, CoinPut, CoinGas, CoinWhale}

// ValidCoinKind reports whether k is a kind the server spawns.
func ValidCoinKind(k CoinKind) bool {
	switch k {
	case CoinCall, CoinPut, CoinGas, CoinWhale:
		return true
	}
	return false
}

// Player is one side of a duel. Dollars never goes below zero and is
// mutated only by the settlement pipeline.
type Player struct {
	ID      string
	Name    string
	Dollars int
	Score   int

	SceneW float64
	SceneH float64

	twoXUntil time.Time
}

// Multiplier returns the player's current settlement impact (1 or 2).
// Whale expiry is checked lazily on read; no timer involved.
func (p *Player) Multiplier() int {
	if time.Now().Before(p.twoXUntil) {
		return WhaleMultiplier
	}
	return 1
}

// ActivateWhale arms the 2x multiplier for the fixed whale window.
func (p *Player) ActivateWhale() {
	p.twoXUntil = time.Now().Add(WhaleDuration)
}

// Coin is a live spawn. It is never settled itself; slicing it either
// creates a PendingOrder or applies an immediate effect.
type Coin struct {
	ID        string
	Kind      CoinKind
	SpawnX    float64
	SpawnY    float64
	SpawnedAt time.Time
}

// PendingOrder is an open bet on price direction awaiting settlement.
// IsPlayer1 is captured at creation time, not re-derived at settlement,
// so the opponent lookup cannot race with room teardown.
type PendingOrder struct {
	ID           string
	PlayerID     string
	PlayerName   string
	CoinKind     CoinKind
	PriceAtOrder float64
	SettlesAt    time.Time
	IsPlayer1    bool
}

// RoundSummary records one completed round. Appended once per round,
// never mutated afterward.
type RoundSummary struct {
	RoundNumber int    `json:"roundNumber"`
	WinnerID    string `json:"winnerId,omitempty"`
	IsTie       bool   `json:"isTie"`
	DollarsEach [2]int `json:"dollarsEach"`
	GainedEach  [2]int `json:"gainedEach"`
}

// WaitingEntry is a player waiting to be paired. Entries older than
// WaitingTTL are purged by the registry sweep.
type WaitingEntry struct {
	PlayerID string
	Name     string
	SceneW   float64
	SceneH   float64
	JoinedAt time.Time
}

// Game-over reasons.
const (
	ReasonBestOfThree    = "best_of_three_complete"
	ReasonKnockout       = "knockout"
	ReasonServerShutdown = "server_shutdown"
)

// ResultPlayer is one player's final line in a finished duel.
type ResultPlayer struct {
	ID        string
	Name      string
	Dollars   int
	RoundsWon int
}

// Result is the terminal outcome of a room, handed to the registry for
// persistence when the room is torn down.
type Result struct {
	RoomID      string
	WinnerID    string
	WinnerName  string
	Reason      string
	Player1Wins int
	Player2Wins int
	Players     [2]ResultPlayer
	Rounds      []RoundSummary
	FinishedAt  time.Time
}
