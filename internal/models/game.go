package models

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nongbirb/monsweeper2-contract/internal/engine"
)

type GameVersion string

const (
	GameVersionClassic GameVersion = "v1"
	GameVersionOracle  GameVersion = "v2"
)

type Difficulty string

const (
	DifficultyNormal   Difficulty = "normal"
	DifficultyGodOfWar Difficulty = "god_of_war"
)

// BombCount returns the number of bombs seeded onto the board for this
// difficulty.
func (d Difficulty) BombCount() int {
	if d == DifficultyGodOfWar {
		return 12
	}
	return 9
}

// HasWarBonus reports whether the difficulty carries the x1.5 payout bonus.
func (d Difficulty) HasWarBonus() bool {
	return d == DifficultyGodOfWar
}

func (d Difficulty) Valid() bool {
	return d == DifficultyNormal || d == DifficultyGodOfWar
}

type GameStatus string

const (
	StatusPending GameStatus = "pending" // waiting for oracle randomness (v2)
	StatusActive  GameStatus = "active"  // randomness available, moves accepted
	StatusWon     GameStatus = "won"     // cashed out
	StatusLost    GameStatus = "lost"    // hit a bomb
	StatusEnded   GameStatus = "ended"   // force-ended by the owner
)

// Game is a single board run. The ledger owns every field; nothing outside
// the services layer mutates a Game.
//
// Lifecycle is monotonic: pending -> active -> terminal for v2 games,
// active -> terminal for v1 games (whose seed exists at creation).
type Game struct {
	ID         string      `json:"id" redis:"id"`
	Version    GameVersion `json:"version" redis:"version"`
	Player     string      `json:"player" redis:"player"`
	Bet        int64       `json:"bet" redis:"bet"` // net stake after the oracle fee, in chips
	Difficulty Difficulty  `json:"difficulty,omitempty" redis:"difficulty"`

	Active              bool       `json:"active" redis:"active"`
	Status              GameStatus `json:"status" redis:"status"`
	RandomnessRequested bool       `json:"randomness_requested" redis:"randomness_requested"`
	RandomnessRevealed  bool       `json:"randomness_revealed" redis:"randomness_revealed"`
	Randomness          string     `json:"-" redis:"randomness"` // 32-byte hex, hidden from clients while active
	RequestHandle       string     `json:"request_handle,omitempty" redis:"request_handle"`

	ClickedTiles []int `json:"clicked_tiles" redis:"clicked_tiles"`

	Won           bool   `json:"won" redis:"won"`
	Payout        int64  `json:"payout" redis:"payout"`
	ForcedCashout bool   `json:"forced_cashout" redis:"forced_cashout"`
	ForcedReason  string `json:"forced_reason,omitempty" redis:"forced_reason"`

	CreatedAt time.Time `json:"created_at" redis:"created_at"`
	EndedAt   time.Time `json:"ended_at,omitempty" redis:"ended_at"`
}

// Seed decodes the revealed randomness into the 256-bit value the bomb
// generator consumes.
func (g *Game) Seed() ([32]byte, error) {
	var seed [32]byte
	if !g.RandomnessRevealed || g.Randomness == "" {
		return seed, fmt.Errorf("game %s has no revealed randomness", g.ID)
	}
	raw, err := hex.DecodeString(g.Randomness)
	if err != nil || len(raw) != 32 {
		return seed, fmt.Errorf("game %s randomness is malformed", g.ID)
	}
	copy(seed[:], raw)
	return seed, nil
}

// BombCount resolves the board's bomb count for either version. Classic
// games always play the normal board.
func (g *Game) BombCount() int {
	if g.Version == GameVersionClassic {
		return DifficultyNormal.BombCount()
	}
	return g.Difficulty.BombCount()
}

// RemainingSafeClicks is how many more tiles the game could reveal before
// the board is exhausted.
func (g *Game) RemainingSafeClicks() int {
	return engine.MaxSafeClicks(g.BombCount()) - len(g.ClickedTiles)
}

// PlayerStats is the cumulative per-player ledger kept for v2 games. All
// counters are monotonically non-decreasing.
type PlayerStats struct {
	Player      string `json:"player" redis:"player"`
	TotalEarned int64  `json:"total_earned" redis:"total_earned"`
	TotalLost   int64  `json:"total_lost" redis:"total_lost"`
	GamesPlayed int64  `json:"games_played" redis:"games_played"`
	GamesWon    int64  `json:"games_won" redis:"games_won"`
}
