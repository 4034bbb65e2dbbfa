package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nongbirb/monsweeper2-contract/internal/config"
	"github.com/nongbirb/monsweeper2-contract/internal/engine"
	"github.com/nongbirb/monsweeper2-contract/internal/models"
	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

type testEnv struct {
	redis    *services.RedisService
	treasury *services.TreasuryService
	oracle   *services.OracleService
	engine   *services.GameEngineV2
}

// newTestEnv wires the v2 engine against a local Redis. The dev provider
// runs with zero delay, so tests drive fulfillment by hand.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		RedisURL:        "localhost:6379",
		RedisPass:       "",
		RedisDB:         0,
		StartingBalance: 10000,
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { redisService.Close() })

	treasury := services.NewTreasuryService(redisService)
	provider := services.NewDevProvider(25, 0, nil)
	oracle := services.NewOracleService(redisService, provider)
	gameEngine := services.NewGameEngineV2(redisService, treasury, oracle, nil, nil)

	return &testEnv{
		redis:    redisService,
		treasury: treasury,
		oracle:   oracle,
		engine:   gameEngine,
	}
}

func (env *testEnv) newPlayer(t *testing.T) string {
	t.Helper()
	player := "test_player_" + uuid.New().String()[:8]
	t.Cleanup(func() { env.redis.DeleteWallet(player) })
	return player
}

func (env *testEnv) cleanupGame(t *testing.T, gameID string) {
	t.Helper()
	t.Cleanup(func() { env.redis.DeleteGame(gameID) })
}

// splitTiles partitions the board into safe and bomb tiles for a seed.
func splitTiles(t *testing.T, seed [32]byte, bombCount int) (safe, bombTiles []int) {
	t.Helper()
	bombs, err := engine.BombSet(seed, bombCount)
	if err != nil {
		t.Fatalf("Failed to place bombs: %v", err)
	}
	for tile := 0; tile < engine.BoardSize; tile++ {
		if bombs[tile] {
			bombTiles = append(bombTiles, tile)
		} else {
			safe = append(safe, tile)
		}
	}
	return safe, bombTiles
}

func TestGameV2FullFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.treasury.SetPoolBalance(1000000); err != nil {
		t.Fatalf("Failed to seed pool: %v", err)
	}

	player := env.newPlayer(t)

	game, fee, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
		Difficulty: models.DifficultyNormal,
		ClientSeed: "deadbeef",
		Amount:     1025,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	if fee != 25 {
		t.Errorf("fee = %d, want 25", fee)
	}
	if game.Bet != 1000 {
		t.Errorf("net bet = %d, want 1000", game.Bet)
	}
	if game.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", game.Status)
	}
	if game.RequestHandle == "" {
		t.Fatal("expected a request handle on a pending game")
	}

	wallet, err := env.redis.GetWallet(player)
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}
	if wallet.Balance != 10000-1025 {
		t.Errorf("balance = %d after stake, want %d", wallet.Balance, 10000-1025)
	}

	waiting, err := env.engine.IsWaitingForRandomness(game.ID)
	if err != nil || !waiting {
		t.Errorf("IsWaitingForRandomness = (%v, %v), want (true, nil)", waiting, err)
	}

	// Moves are rejected until the oracle delivers.
	if _, err := env.engine.SubmitMoves(ctx, player, game.ID, []int{0}); err == nil {
		t.Error("moves before fulfillment should be rejected")
	}

	var randomness [32]byte
	randomness[0] = 0x42
	fulfilled, err := env.engine.FulfillRandomness(ctx, game.RequestHandle, randomness)
	if err != nil {
		t.Fatalf("Failed to fulfill: %v", err)
	}
	if fulfilled.Status != models.StatusActive {
		t.Errorf("status = %s after fulfillment, want active", fulfilled.Status)
	}

	waiting, _ = env.engine.IsWaitingForRandomness(game.ID)
	if waiting {
		t.Error("game should no longer be waiting after fulfillment")
	}

	safe, _ := splitTiles(t, randomness, models.DifficultyNormal.BombCount())

	result, err := env.engine.SubmitMoves(ctx, player, game.ID, safe[:3])
	if err != nil {
		t.Fatalf("Failed to submit safe moves: %v", err)
	}
	if !result.Win {
		t.Fatal("three safe clicks should win")
	}
	if result.Payout <= 0 {
		t.Errorf("payout = %d, want positive", result.Payout)
	}

	// 3 safe clicks on a 9-bomb board, 95% edge.
	m := engine.Multiplier(3, 9)
	want := services.ApplyHouseEdge(services.PotentialReward(1000, m))
	if result.Payout != want {
		t.Errorf("payout = %d, want %d", result.Payout, want)
	}

	wallet, _ = env.redis.GetWallet(player)
	if wallet.Balance != 10000-1025+want {
		t.Errorf("balance = %d after win, want %d", wallet.Balance, 10000-1025+want)
	}

	stats, err := env.redis.GetPlayerStats(player)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.GamesPlayed != 1 || stats.GamesWon != 1 || stats.TotalEarned != want {
		t.Errorf("stats = %+v, want 1 played, 1 won, %d earned", stats, want)
	}

	// The game is terminal; further moves fail.
	if _, err := env.engine.SubmitMoves(ctx, player, game.ID, []int{safe[4]}); err == nil {
		t.Error("moves on a finished game should be rejected")
	}
}

func TestGameV2BombLoss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)

	game, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
		Difficulty: models.DifficultyGodOfWar,
		ClientSeed: "cafe",
		Amount:     525,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	var randomness [32]byte
	randomness[31] = 0x07
	if _, err := env.engine.FulfillRandomness(ctx, game.RequestHandle, randomness); err != nil {
		t.Fatalf("Failed to fulfill: %v", err)
	}

	safe, bombTiles := splitTiles(t, randomness, models.DifficultyGodOfWar.BombCount())

	// Two safe reveals then a bomb: the run loses, safe prefix recorded.
	batch := []int{safe[0], safe[1], bombTiles[0]}
	result, err := env.engine.SubmitMoves(ctx, player, game.ID, batch)
	if err != nil {
		t.Fatalf("Failed to submit moves: %v", err)
	}
	if result.Win {
		t.Fatal("revealing a bomb should lose")
	}
	if result.BombTile != bombTiles[0] {
		t.Errorf("bomb tile = %d, want %d", result.BombTile, bombTiles[0])
	}
	if result.SafeClicks != 2 {
		t.Errorf("safe clicks = %d, want 2", result.SafeClicks)
	}

	stats, _ := env.redis.GetPlayerStats(player)
	if stats.TotalLost != game.Bet {
		t.Errorf("total lost = %d, want %d", stats.TotalLost, game.Bet)
	}
}

// slowProvider stretches the randomness request so concurrent creations
// overlap inside the creation flow.
type slowProvider struct {
	fee   int64
	delay time.Duration
}

func (p *slowProvider) GetFee(ctx context.Context) (int64, error) { return p.fee, nil }

func (p *slowProvider) RequestRandomness(ctx context.Context, clientSeed [32]byte) (string, error) {
	time.Sleep(p.delay)
	return uuid.New().String(), nil
}

func TestGameV2ConcurrentCreateSinglePlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)

	oracle := services.NewOracleService(env.redis, &slowProvider{fee: 25, delay: 100 * time.Millisecond})
	slowEngine := services.NewGameEngineV2(env.redis, env.treasury, oracle, nil, nil)

	games := make([]*models.Game, 2)
	errs := make([]error, 2)
	seeds := []string{"a1", "a2"}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			games[i], _, errs[i] = slowEngine.CreateGame(ctx, player, &models.CreateGameV2Request{
				ClientSeed: seeds[i],
				Amount:     125,
			})
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range games {
		if errs[i] == nil {
			created++
			env.cleanupGame(t, games[i].ID)
		}
	}
	if created != 1 {
		t.Fatalf("concurrent creations succeeded %d times, want exactly 1", created)
	}

	active, err := env.redis.GetPlayerActiveGames(player)
	if err != nil {
		t.Fatalf("Failed to load active games: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("active games after concurrent creations = %d, want 1", len(active))
	}
}

func TestGameV2SingleActiveGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)

	game, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
		ClientSeed: "01",
		Amount:     125,
	})
	if err != nil {
		t.Fatalf("Failed to create first game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	if _, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
		ClientSeed: "02",
		Amount:     125,
	}); err == nil {
		t.Error("second concurrent game should be rejected")
	}
}

func TestGameV2StakeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000)
	player := env.newPlayer(t)

	t.Run("stake must cover fee", func(t *testing.T) {
		if _, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
			ClientSeed: "03",
			Amount:     25,
		}); err == nil {
			t.Error("stake equal to the fee should be rejected")
		}
	})

	t.Run("stake above pool cap", func(t *testing.T) {
		// Cap is 300 on a 1000-chip pool; net 400 must be refused and the
		// wallet made whole.
		if _, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
			ClientSeed: "04",
			Amount:     425,
		}); err == nil {
			t.Error("stake above the pool cap should be rejected")
		}
		wallet, _ := env.redis.GetWallet(player)
		if wallet.Balance != 10000 {
			t.Errorf("balance = %d after rejected stake, want 10000", wallet.Balance)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		env.treasury.SetPoolBalance(10000000)
		if _, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
			ClientSeed: "05",
			Amount:     999999,
		}); err == nil {
			t.Error("stake above the wallet balance should be rejected")
		}
	})
}

func TestGameV2EmergencyEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)

	game, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
		ClientSeed: "06",
		Amount:     1025,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	balBefore, _ := env.redis.GetWallet(player)

	ended, err := env.engine.EmergencyEndGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("Failed to end game: %v", err)
	}
	if ended.Status != models.StatusEnded || ended.Active {
		t.Errorf("ended game status = %s active=%v, want ended/false", ended.Status, ended.Active)
	}

	// Net stake refunded; the fee is not.
	wallet, _ := env.redis.GetWallet(player)
	if wallet.Balance != balBefore.Balance+game.Bet {
		t.Errorf("balance = %d after refund, want %d", wallet.Balance, balBefore.Balance+game.Bet)
	}

	// The pending handle is dead: late oracle delivery must fail.
	var randomness [32]byte
	if _, err := env.engine.FulfillRandomness(ctx, game.RequestHandle, randomness); err == nil {
		t.Error("fulfillment after emergency end should be rejected")
	}

	// A second end attempt fails.
	if _, err := env.engine.EmergencyEndGame(ctx, game.ID); err == nil {
		t.Error("double emergency end should be rejected")
	}
}

func TestGameV2EmergencyEndRefundFailureKeepsHandle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)

	game, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
		ClientSeed: "0c",
		Amount:     1025,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	// Drain the pool so the refund cannot be covered.
	env.treasury.SetPoolBalance(0)

	if _, err := env.engine.EmergencyEndGame(ctx, game.ID); err == nil {
		t.Fatal("emergency end with an insolvent pool should fail")
	}

	// The restored game must still be fulfillable: pending, with its
	// handle mapping intact.
	waiting, err := env.engine.IsWaitingForRandomness(game.ID)
	if err != nil || !waiting {
		t.Fatalf("IsWaitingForRandomness = (%v, %v) after failed end, want (true, nil)", waiting, err)
	}

	var randomness [32]byte
	randomness[0] = 0x33
	fulfilled, err := env.engine.FulfillRandomness(ctx, game.RequestHandle, randomness)
	if err != nil {
		t.Fatalf("Fulfillment after failed emergency end must succeed: %v", err)
	}
	if fulfilled.Status != models.StatusActive {
		t.Errorf("status = %s after late fulfillment, want active", fulfilled.Status)
	}

	// With the pool refilled the game ends cleanly.
	env.treasury.SetPoolBalance(1000000)
	if _, err := env.engine.EmergencyEndGame(ctx, game.ID); err != nil {
		t.Fatalf("Failed to end game once solvent: %v", err)
	}
}

func TestGameV2ZeroRewardWin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)

	// Net bet of 1 chip: one safe click yields potential 1, and the house
	// edge truncates it to 0. The win must still settle.
	game, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
		ClientSeed: "0d",
		Amount:     26,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	var randomness [32]byte
	randomness[0] = 0x55
	if _, err := env.engine.FulfillRandomness(ctx, game.RequestHandle, randomness); err != nil {
		t.Fatalf("Failed to fulfill: %v", err)
	}

	safe, _ := splitTiles(t, randomness, models.DifficultyNormal.BombCount())

	result, err := env.engine.SubmitMoves(ctx, player, game.ID, safe[:1])
	if err != nil {
		t.Fatalf("Zero-reward cash-out must settle, got: %v", err)
	}
	if !result.Win {
		t.Fatal("one safe click should win")
	}
	if result.Payout != 0 {
		t.Errorf("payout = %d, want 0", result.Payout)
	}

	stored, _ := env.redis.GetGame(game.ID)
	if stored.Active || stored.Status != models.StatusWon {
		t.Errorf("game status = %s active=%v, want won/false", stored.Status, stored.Active)
	}

	// Nothing moved: the balance stays at the post-stake level.
	wallet, _ := env.redis.GetWallet(player)
	if wallet.Balance != 10000-26 {
		t.Errorf("balance = %d, want %d", wallet.Balance, 10000-26)
	}

	if _, err := env.engine.SubmitMoves(ctx, player, game.ID, []int{safe[1]}); err == nil {
		t.Error("moves on a settled game should be rejected")
	}
}

func TestGameV2Withdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(500)
	owner := env.newPlayer(t)

	if err := env.engine.WithdrawPool(ctx, owner, 501); err == nil {
		t.Error("withdrawal above the pool balance should be rejected")
	}

	if err := env.engine.WithdrawPool(ctx, owner, 200); err != nil {
		t.Fatalf("Failed to withdraw: %v", err)
	}

	pool, _ := env.treasury.PoolBalance()
	if pool != 300 {
		t.Errorf("pool = %d after withdrawal, want 300", pool)
	}
	wallet, _ := env.redis.GetWallet(owner)
	if wallet.Balance != 10000+200 {
		t.Errorf("owner balance = %d, want 10200", wallet.Balance)
	}
}

func TestGameV2Forecast(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)

	game, _, err := env.engine.CreateGame(ctx, player, &models.CreateGameV2Request{
		ClientSeed: "07",
		Amount:     1025,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	forecast, err := env.engine.PredictForcedCashout(ctx, game.ID, 3)
	if err != nil {
		t.Fatalf("Failed to forecast: %v", err)
	}
	if forecast.Forced {
		t.Error("3 clicks on a fresh game against a deep pool should not force")
	}
	m := engine.Multiplier(3, 9)
	if forecast.Multiplier != m.String() {
		t.Errorf("multiplier = %s, want %s", forecast.Multiplier, m.String())
	}

	// Exhausting the board plus one is rejected.
	if _, err := env.engine.PredictForcedCashout(ctx, game.ID, engine.MaxSafeClicks(9)+1); err == nil {
		t.Error("forecast beyond the board should be rejected")
	}
}
