package models_test

import (
	"testing"
	"time"

	"github.com/nongbirb/monsweeper2-contract/internal/models"
)

func TestGenerateGameID(t *testing.T) {
	now := time.Now()

	id := models.GenerateGameID("player1", "abcd", now)
	if id == "" {
		t.Fatal("game ID should not be empty")
	}

	same := models.GenerateGameID("player1", "abcd", now)
	if id != same {
		t.Error("identical inputs should derive the identical game ID")
	}

	other := models.GenerateGameID("player2", "abcd", now)
	if id == other {
		t.Error("different players should derive different game IDs")
	}
}

func TestParseClientSeed(t *testing.T) {
	if _, err := models.ParseClientSeed(""); err == nil {
		t.Error("empty seed should be rejected")
	}

	if _, err := models.ParseClientSeed("0000"); err == nil {
		t.Error("zero seed should be rejected")
	}

	if _, err := models.ParseClientSeed("zzzz"); err == nil {
		t.Error("non-hex seed should be rejected")
	}

	seed, err := models.ParseClientSeed("deadbeef")
	if err != nil {
		t.Fatalf("valid seed rejected: %v", err)
	}
	if seed[28] != 0xde || seed[31] != 0xef {
		t.Error("seed should be left-padded into the low bytes")
	}

	generated, err := models.GenerateClientSeed()
	if err != nil {
		t.Fatalf("GenerateClientSeed failed: %v", err)
	}
	if _, err := models.ParseClientSeed(generated); err != nil {
		t.Errorf("generated seed should parse: %v", err)
	}
}

func TestCreateGameV2RequestValidate(t *testing.T) {
	req := &models.CreateGameV2Request{
		Difficulty: models.DifficultyGodOfWar,
		ClientSeed: "deadbeef",
		Amount:     500,
	}
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	req = &models.CreateGameV2Request{ClientSeed: "deadbeef", Amount: 500}
	if err := req.Validate(); err != nil {
		t.Errorf("empty difficulty should default to normal: %v", err)
	}
	if req.Difficulty != models.DifficultyNormal {
		t.Errorf("expected normal difficulty, got %s", req.Difficulty)
	}

	bad := &models.CreateGameV2Request{Difficulty: "nightmare", ClientSeed: "deadbeef", Amount: 500}
	if err := bad.Validate(); err == nil {
		t.Error("unknown difficulty should be rejected")
	}

	zero := &models.CreateGameV2Request{Difficulty: models.DifficultyNormal, ClientSeed: "deadbeef", Amount: 0}
	if err := zero.Validate(); err == nil {
		t.Error("zero stake should be rejected")
	}
}

func TestSubmitMovesRequestValidate(t *testing.T) {
	empty := &models.SubmitMovesRequest{GameID: "g", Tiles: []int{}}
	if err := empty.Validate(); err == nil {
		t.Error("empty batch should be rejected")
	}

	outOfRange := &models.SubmitMovesRequest{GameID: "g", Tiles: []int{0, 36}}
	if err := outOfRange.Validate(); err == nil {
		t.Error("tile 36 should be rejected on a 36-tile board")
	}

	ok := &models.SubmitMovesRequest{GameID: "g", Tiles: []int{0, 17, 35}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid batch rejected: %v", err)
	}
}

func TestDifficulty(t *testing.T) {
	if models.DifficultyNormal.BombCount() != 9 {
		t.Errorf("normal should have 9 bombs, got %d", models.DifficultyNormal.BombCount())
	}
	if models.DifficultyGodOfWar.BombCount() != 12 {
		t.Errorf("god_of_war should have 12 bombs, got %d", models.DifficultyGodOfWar.BombCount())
	}
	if models.DifficultyNormal.HasWarBonus() {
		t.Error("normal should not carry the war bonus")
	}
	if !models.DifficultyGodOfWar.HasWarBonus() {
		t.Error("god_of_war should carry the war bonus")
	}
}
