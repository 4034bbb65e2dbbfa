package services_test

import (
	"context"
	"testing"

	"github.com/nongbirb/monsweeper2-contract/internal/models"
	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

func newV1Engine(t *testing.T, env *testEnv) *services.GameEngineV1 {
	t.Helper()
	return services.NewGameEngineV1(env.redis, env.treasury, nil)
}

func TestGameV1PlayableAtCreation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)
	v1 := newV1Engine(t, env)

	game, err := v1.CreateGame(ctx, player, &models.CreateGameV1Request{
		ClientSeed: "beef",
		Amount:     500,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	if game.Status != models.StatusActive {
		t.Errorf("status = %s, want active; classic games are playable immediately", game.Status)
	}
	if !game.RandomnessRevealed {
		t.Error("classic game should carry its seed from creation")
	}

	seed, err := game.Seed()
	if err != nil {
		t.Fatalf("Failed to decode seed: %v", err)
	}

	safe, bombTiles := splitTiles(t, seed, game.BombCount())
	if len(bombTiles) != 9 {
		t.Fatalf("bomb count = %d, want 9", len(bombTiles))
	}

	result, err := v1.SubmitMoves(ctx, player, game.ID, safe[:2])
	if err != nil {
		t.Fatalf("Failed to submit moves: %v", err)
	}
	if !result.Win {
		t.Fatal("two safe clicks should win")
	}
	if result.ForcedCashout {
		t.Error("classic cashouts are never forced")
	}
}

func TestGameV1SeedVerification(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)
	v1 := newV1Engine(t, env)

	hashBefore := v1.GetServerHash()
	if hashBefore == "" {
		t.Fatal("server hash must be published")
	}

	// The wallet nonce about to be consumed by the next game.
	before, err := env.redis.GetWallet(player)
	if err != nil {
		t.Fatalf("Failed to get wallet: %v", err)
	}

	game, err := v1.CreateGame(ctx, player, &models.CreateGameV1Request{
		ClientSeed: "feed",
		Amount:     100,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	// Rotation reveals the retired seed; its hash must match the earlier
	// commitment and it must reproduce the game's board.
	retired := v1.RotateServerSeed()

	bombs, hash, err := v1.VerifySeed(retired, player, "feed", before.Nonce)
	if err != nil {
		t.Fatalf("Failed to verify seed: %v", err)
	}
	if hash != hashBefore {
		t.Error("retired seed does not match the published commitment")
	}

	seed, _ := game.Seed()
	_, wantBombs := splitTiles(t, seed, game.BombCount())
	if len(bombs) != len(wantBombs) {
		t.Fatalf("verified bomb count = %d, want %d", len(bombs), len(wantBombs))
	}
	want := make(map[int]bool, len(wantBombs))
	for _, tile := range wantBombs {
		want[tile] = true
	}
	for _, tile := range bombs {
		if !want[tile] {
			t.Fatalf("verified bombs %v differ from board %v", bombs, wantBombs)
		}
	}

	if v1.GetServerHash() == hashBefore {
		t.Error("rotation must change the server hash")
	}
}

func TestGameV1DuplicateTilesRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.treasury.SetPoolBalance(1000000)
	player := env.newPlayer(t)
	v1 := newV1Engine(t, env)

	game, err := v1.CreateGame(ctx, player, &models.CreateGameV1Request{
		ClientSeed: "beef01",
		Amount:     100,
	})
	if err != nil {
		t.Fatalf("Failed to create game: %v", err)
	}
	env.cleanupGame(t, game.ID)

	seed, _ := game.Seed()
	safe, _ := splitTiles(t, seed, game.BombCount())

	if _, err := v1.SubmitMoves(ctx, player, game.ID, []int{safe[0], safe[0]}); err == nil {
		t.Error("duplicate tiles in a batch should be rejected")
	}
	if _, err := v1.SubmitMoves(ctx, player, game.ID, []int{40}); err == nil {
		t.Error("out-of-range tile should be rejected")
	}
	if _, err := v1.SubmitMoves(ctx, "someone_else", game.ID, []int{safe[0]}); err == nil {
		t.Error("foreign caller should be rejected")
	}
}
