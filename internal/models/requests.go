package models

import (
	"fmt"

	"github.com/nongbirb/monsweeper2-contract/internal/engine"
)

type CreateGameV1Request struct {
	ClientSeed string `json:"client_seed" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
}

func (r *CreateGameV1Request) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("stake must be positive")
	}
	if _, err := ParseClientSeed(r.ClientSeed); err != nil {
		return err
	}
	return nil
}

type CreateGameV2Request struct {
	Difficulty Difficulty `json:"difficulty"`
	ClientSeed string     `json:"client_seed" binding:"required"`
	Amount     int64      `json:"amount" binding:"required"`
}

func (r *CreateGameV2Request) Validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("stake must be positive")
	}
	if r.Difficulty == "" {
		r.Difficulty = DifficultyNormal
	}
	if !r.Difficulty.Valid() {
		return fmt.Errorf("invalid difficulty: %s", r.Difficulty)
	}
	if _, err := ParseClientSeed(r.ClientSeed); err != nil {
		return err
	}
	return nil
}

type SubmitMovesRequest struct {
	GameID string `json:"game_id" binding:"required"`
	Tiles  []int  `json:"tiles" binding:"required"`
}

func (r *SubmitMovesRequest) Validate() error {
	if len(r.Tiles) == 0 {
		return fmt.Errorf("no tiles submitted")
	}
	for _, tile := range r.Tiles {
		if tile < 0 || tile >= engine.BoardSize {
			return fmt.Errorf("tile %d out of range [0, %d)", tile, engine.BoardSize)
		}
	}
	return nil
}

// FulfillRequest is the inbound oracle callback payload.
type FulfillRequest struct {
	Handle     string `json:"handle" binding:"required"`
	Randomness string `json:"randomness" binding:"required"` // 32-byte hex
}

type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// MoveResult is what a resolved submitMoves call reports back.
type MoveResult struct {
	GameID        string `json:"game_id"`
	Win           bool   `json:"win"`
	BombTile      int    `json:"bomb_tile,omitempty"`
	SafeClicks    int    `json:"safe_clicks"`
	Multiplier    string `json:"multiplier,omitempty"` // fixed-point 1e18, decimal string
	Payout        int64  `json:"payout"`
	ForcedCashout bool   `json:"forced_cashout"`
	ForcedReason  string `json:"forced_reason,omitempty"`
	NewBalance    int64  `json:"new_balance"`
}

// CashoutForecast projects whether a hypothetical number of further safe
// clicks would trip the forced-cashout rules.
type CashoutForecast struct {
	GameID          string `json:"game_id"`
	ExtraClicks     int    `json:"extra_clicks"`
	Multiplier      string `json:"multiplier"`
	PotentialReward int64  `json:"potential_reward"`
	Forced          bool   `json:"forced"`
	ForcedReason    string `json:"forced_reason,omitempty"`
}
