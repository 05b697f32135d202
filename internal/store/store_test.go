package store

import (
	"testing"
	"time"

	"coinduel/internal/game"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(roomID, winner string) game.Result {
	res := game.Result{
		RoomID:      roomID,
		WinnerID:    winner,
		WinnerName:  "alice",
		Reason:      game.ReasonBestOfThree,
		Player1Wins: 2,
		Player2Wins: 0,
		Players: [2]game.ResultPlayer{
			{ID: "p1", Name: "alice", Dollars: 14, RoundsWon: 2},
			{ID: "p2", Name: "bob", Dollars: 6, RoundsWon: 0},
		},
		Rounds: []game.RoundSummary{
			{RoundNumber: 1, WinnerID: "p1", DollarsEach: [2]int{12, 8}, GainedEach: [2]int{2, -2}},
			{RoundNumber: 2, WinnerID: "p1", DollarsEach: [2]int{14, 6}, GainedEach: [2]int{2, -2}},
		},
		FinishedAt: time.Now(),
	}
	if winner != "p1" {
		res.WinnerName = "bob"
	}
	return res
}

func TestSaveAndListMatches(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveMatch(sampleResult("room-1", "p1")); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}

	matches, err := s.RecentMatches(10)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	m := matches[0]
	if m.ID != "room-1" || m.WinnerID != "p1" || m.WinnerName != "alice" {
		t.Errorf("unexpected match record: %+v", m)
	}
	if m.Reason != game.ReasonBestOfThree {
		t.Errorf("expected reason %q, got %q", game.ReasonBestOfThree, m.Reason)
	}
	if m.Player1Wins != 2 || m.Player2Wins != 0 || m.Rounds != 2 {
		t.Errorf("unexpected score columns: %+v", m)
	}
}

func TestSaveMatchIdempotent(t *testing.T) {
	s := newTestStore(t)

	res := sampleResult("room-1", "p1")
	if err := s.SaveMatch(res); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := s.SaveMatch(res); err != nil {
		t.Fatalf("repeat save failed: %v", err)
	}

	matches, err := s.RecentMatches(10)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("replaying the same result must not duplicate rows, got %d", len(matches))
	}
}

func TestSaveMatchSkipsEmptySeat(t *testing.T) {
	s := newTestStore(t)

	res := sampleResult("room-1", "p1")
	res.Players[1] = game.ResultPlayer{} // opponent disconnected before game over
	if err := s.SaveMatch(res); err != nil {
		t.Fatalf("SaveMatch failed: %v", err)
	}

	entries, err := s.Leaderboard(10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "alice" {
		t.Errorf("only the occupied seat should be recorded, got %+v", entries)
	}
}

func TestLeaderboardRanksByWins(t *testing.T) {
	s := newTestStore(t)

	// alice beats bob twice, bob beats alice once.
	if err := s.SaveMatch(sampleResult("room-1", "p1")); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMatch(sampleResult("room-2", "p1")); err != nil {
		t.Fatal(err)
	}

	bobWin := sampleResult("room-3", "p2")
	bobWin.Players[0].RoundsWon = 0
	bobWin.Players[1].RoundsWon = 2
	if err := s.SaveMatch(bobWin); err != nil {
		t.Fatal(err)
	}

	entries, err := s.Leaderboard(10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].Name != "alice" || entries[0].Wins != 2 || entries[0].Games != 3 {
		t.Errorf("unexpected leader: %+v", entries[0])
	}
	if entries[1].Name != "bob" || entries[1].Wins != 1 {
		t.Errorf("unexpected runner-up: %+v", entries[1])
	}
	if entries[0].RoundsWon != 4 {
		t.Errorf("alice should aggregate 4 round wins, got %d", entries[0].RoundsWon)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.Leaderboard(10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("fresh database should have an empty leaderboard, got %d", len(entries))
	}
}

func TestRecentMatchesOrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	older := sampleResult("room-old", "p1")
	older.FinishedAt = time.Now().Add(-time.Hour)
	newer := sampleResult("room-new", "p1")

	if err := s.SaveMatch(older); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMatch(newer); err != nil {
		t.Fatal(err)
	}

	matches, err := s.RecentMatches(1)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "room-new" {
		t.Errorf("expected the newest match only, got %+v", matches)
	}
}
