package services_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nongbirb/monsweeper2-contract/internal/models"
)

func TestWalletLedger(t *testing.T) {
	env := newTestEnv(t)
	player := env.newPlayer(t)

	wallet, err := env.redis.GetWallet(player)
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	if wallet.Balance != 10000 {
		t.Errorf("Expected default balance 10000, got %d", wallet.Balance)
	}

	if err := env.redis.DebitWallet(player, 1000); err != nil {
		t.Errorf("Failed to debit: %v", err)
	}
	wallet, _ = env.redis.GetWallet(player)
	if wallet.Balance != 9000 {
		t.Errorf("Expected balance 9000 after debit, got %d", wallet.Balance)
	}
	if wallet.TotalWagered != 1000 {
		t.Errorf("Expected total wagered 1000, got %d", wallet.TotalWagered)
	}

	// Over-debit must fail atomically.
	if err := env.redis.DebitWallet(player, 10000); err == nil {
		t.Error("over-debit should be rejected")
	}
	wallet, _ = env.redis.GetWallet(player)
	if wallet.Balance != 9000 {
		t.Errorf("Expected balance 9000 after rejected debit, got %d", wallet.Balance)
	}

	if err := env.redis.CreditWallet(player, 500, true); err != nil {
		t.Errorf("Failed to credit: %v", err)
	}
	wallet, _ = env.redis.GetWallet(player)
	if wallet.Balance != 9500 {
		t.Errorf("Expected balance 9500 after credit, got %d", wallet.Balance)
	}
	if wallet.TotalWon != 500 {
		t.Errorf("Expected total won 500, got %d", wallet.TotalWon)
	}
}

func TestGameRecordLifecycle(t *testing.T) {
	env := newTestEnv(t)
	player := env.newPlayer(t)

	game := &models.Game{
		ID:           "test_game_" + uuid.New().String()[:8],
		Version:      models.GameVersionOracle,
		Player:       player,
		Bet:          100,
		Difficulty:   models.DifficultyNormal,
		Active:       true,
		Status:       models.StatusPending,
		ClickedTiles: []int{},
		CreatedAt:    time.Now(),
	}
	env.cleanupGame(t, game.ID)

	if err := env.redis.CreateGame(game); err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}

	// Identifiers are single-use.
	if err := env.redis.CreateGame(game); err == nil {
		t.Error("duplicate game id should be rejected")
	}

	active, err := env.redis.HasActiveGame(player)
	if err != nil || !active {
		t.Errorf("HasActiveGame = (%v, %v), want (true, nil)", active, err)
	}

	game.Status = models.StatusWon
	game.Active = false
	if err := env.redis.UpdateGame(game); err != nil {
		t.Fatalf("Failed to update game: %v", err)
	}
	if err := env.redis.CompleteGame(player, game.ID); err != nil {
		t.Fatalf("Failed to complete game: %v", err)
	}

	active, _ = env.redis.HasActiveGame(player)
	if active {
		t.Error("completed game should not count as active")
	}

	history, err := env.redis.GetGameHistory(player, 10)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 1 || history[0].ID != game.ID {
		t.Errorf("history = %d games, want the completed one", len(history))
	}
}

func TestOracleRequestMapping(t *testing.T) {
	env := newTestEnv(t)

	handle := "test_handle_" + uuid.New().String()[:8]

	if err := env.redis.MapOracleRequest(handle, "game_x"); err != nil {
		t.Fatalf("Failed to map request: %v", err)
	}

	// Handles map once.
	if err := env.redis.MapOracleRequest(handle, "game_y"); err == nil {
		t.Error("remapping a handle should be rejected")
	}

	gameID, err := env.redis.GetOracleRequest(handle)
	if err != nil || gameID != "game_x" {
		t.Errorf("GetOracleRequest = (%q, %v), want (game_x, nil)", gameID, err)
	}

	claimed, err := env.redis.DeleteOracleRequest(handle)
	if err != nil || !claimed {
		t.Errorf("first delete = (%v, %v), want (true, nil)", claimed, err)
	}
	claimed, _ = env.redis.DeleteOracleRequest(handle)
	if claimed {
		t.Error("second delete must report the handle as already consumed")
	}

	// A consumed handle can be mapped again; the fulfillment path re-maps
	// when storing the randomness fails after the claim.
	if err := env.redis.MapOracleRequest(handle, "game_x"); err != nil {
		t.Errorf("Failed to re-map a consumed handle: %v", err)
	}
	gameID, err = env.redis.GetOracleRequest(handle)
	if err != nil || gameID != "game_x" {
		t.Errorf("re-mapped handle resolves to (%q, %v), want (game_x, nil)", gameID, err)
	}
	env.redis.DeleteOracleRequest(handle)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t)
	player := env.newPlayer(t)

	for i := 0; i < 3; i++ {
		allowed, err := env.redis.CheckRateLimit(player, "test_action", 3, time.Minute)
		if err != nil {
			t.Fatalf("Rate limit check failed: %v", err)
		}
		if !allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	allowed, _ := env.redis.CheckRateLimit(player, "test_action", 3, time.Minute)
	if allowed {
		t.Error("fourth call within the window should be blocked")
	}
}
