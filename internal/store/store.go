// Package store persists finished duels. Live game state is deliberately
// ephemeral; only terminal results land here, feeding the leaderboard.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"coinduel/internal/game"
)

// Store provides SQLite persistence for completed matches.
type Store struct {
	db *sql.DB
}

// New creates a Store and initializes the schema. Use ":memory:" in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		winner_id TEXT,
		winner_name TEXT,
		reason TEXT NOT NULL,
		player1_wins INTEGER NOT NULL,
		player2_wins INTEGER NOT NULL,
		rounds INTEGER NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id TEXT NOT NULL REFERENCES matches(id),
		player_id TEXT NOT NULL,
		name TEXT NOT NULL,
		dollars INTEGER NOT NULL,
		rounds_won INTEGER NOT NULL,
		won INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, player_id)
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_name ON match_players(name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveMatch records one finished duel. Implements game.ResultSink.
func (s *Store) SaveMatch(res game.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO matches
			(id, winner_id, winner_name, reason, player1_wins, player2_wins, rounds, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RoomID, res.WinnerID, res.WinnerName, res.Reason,
		res.Player1Wins, res.Player2Wins, len(res.Rounds), res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}

	for _, p := range res.Players {
		if p.ID == "" {
			continue // seat emptied by a disconnect
		}
		won := 0
		if p.ID == res.WinnerID {
			won = 1
		}
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO match_players
				(match_id, player_id, name, dollars, rounds_won, won)
			VALUES (?, ?, ?, ?, ?, ?)`,
			res.RoomID, p.ID, p.Name, p.Dollars, p.RoundsWon, won,
		)
		if err != nil {
			return fmt.Errorf("save match player: %w", err)
		}
	}

	return tx.Commit()
}

// MatchRecord is a stored match header.
type MatchRecord struct {
	ID          string    `json:"id"`
	WinnerID    string    `json:"winner_id"`
	WinnerName  string    `json:"winner_name"`
	Reason      string    `json:"reason"`
	Player1Wins int       `json:"player1_wins"`
	Player2Wins int       `json:"player2_wins"`
	Rounds      int       `json:"rounds"`
	FinishedAt  time.Time `json:"finished_at"`
}

// RecentMatches returns the most recently finished duels.
func (s *Store) RecentMatches(limit int) ([]MatchRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, winner_id, winner_name, reason, player1_wins, player2_wins, rounds, finished_at
		FROM matches ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var m MatchRecord
		if err := rows.Scan(&m.ID, &m.WinnerID, &m.WinnerName, &m.Reason,
			&m.Player1Wins, &m.Player2Wins, &m.Rounds, &m.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LeaderboardEntry aggregates one player name across finished duels.
type LeaderboardEntry struct {
	Name      string `json:"name"`
	Games     int    `json:"games"`
	Wins      int    `json:"wins"`
	RoundsWon int    `json:"rounds_won"`
}

// Leaderboard returns player names ranked by match wins, then rounds won.
func (s *Store) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.Query(`
		SELECT name, COUNT(*) AS games, SUM(won) AS wins, SUM(rounds_won) AS rounds_won
		FROM match_players
		GROUP BY name
		ORDER BY wins DESC, rounds_won DESC, games ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Games, &e.Wins, &e.RoundsWon); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
