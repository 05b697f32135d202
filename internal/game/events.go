package game

// Emitter delivers an addressed event to one connected player. The wire
// transport behind it is an external collaborator; the engine only needs
// fire-and-forget delivery.
type Emitter interface {
	Emit(playerID, event string, payload interface{})
}

// Outbound event names.
const (
	EventWaitingForMatch = "waiting_for_match"
	EventMatchFound      = "match_found"
	EventRoundStart      = "round_start"
	EventCoinSpawn       = "coin_spawn"
	EventCoinSliced      = "coin_sliced"
	EventOrderPlaced     = "order_placed"
	EventOrderSettled    = "order_settled"
	EventPlayerHit       = "player_hit"
	EventWhaleActivated  = "whale_2x_activated"
	EventRoundEnd        = "round_end"
	EventGameOver        = "game_over"
	EventOpponentGone    = "opponent_disconnected"
	EventError           = "error"
)

// PlayerInfo is the public view of a player sent with match_found.
type PlayerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Dollars int    `json:"dollars"`
}

type MatchFoundPayload struct {
	RoomID  string        `json:"roomId"`
	Players [2]PlayerInfo `json:"players"`
}

type RoundStartPayload struct {
	RoundNumber   int   `json:"roundNumber"`
	IsSuddenDeath bool  `json:"isSuddenDeath"`
	DurationMs    int64 `json:"durationMs"`
}

type CoinSpawnPayload struct {
	CoinID   string   `json:"coinId"`
	CoinType CoinKind `json:"coinType"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
}

type CoinSlicedPayload struct {
	PlayerID   string   `json:"playerId"`
	PlayerName string   `json:"playerName"`
	CoinType   CoinKind `json:"coinType"`
}

type OrderPlacedPayload struct {
	OrderID      string   `json:"orderId"`
	PlayerID     string   `json:"playerId"`
	PlayerName   string   `json:"playerName"`
	CoinType     CoinKind `json:"coinType"`
	PriceAtOrder float64  `json:"priceAtOrder"`
	SettlesAt    int64    `json:"settlesAt"` // unix millis
}

type OrderSettledPayload struct {
	OrderID      string   `json:"orderId"`
	PlayerID     string   `json:"playerId"`
	PlayerName   string   `json:"playerName"`
	CoinType     CoinKind `json:"coinType"`
	IsCorrect    bool     `json:"isCorrect"`
	PriceAtOrder float64  `json:"priceAtOrder"`
	FinalPrice   float64  `json:"finalPrice"`
}

type PlayerHitPayload struct {
	PlayerID string `json:"playerId"`
	Damage   int    `json:"damage"`
	Reason   string `json:"reason"`
}

type WhaleActivatedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	DurationMs int64  `json:"durationMs"`
}

type RoundEndPayload struct {
	RoundNumber    int    `json:"roundNumber"`
	WinnerID       string `json:"winnerId,omitempty"`
	IsTie          bool   `json:"isTie"`
	Player1Wins    int    `json:"player1Wins"`
	Player2Wins    int    `json:"player2Wins"`
	Player1Dollars int    `json:"player1Dollars"`
	Player2Dollars int    `json:"player2Dollars"`
	Player1Gained  int    `json:"player1Gained"`
	Player2Gained  int    `json:"player2Gained"`
}

type GameOverPayload struct {
	WinnerID    string         `json:"winnerId,omitempty"`
	WinnerName  string         `json:"winnerName,omitempty"`
	Reason      string         `json:"reason"`
	Player1Wins int            `json:"player1Wins"`
	Player2Wins int            `json:"player2Wins"`
	Rounds      []RoundSummary `json:"rounds"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
