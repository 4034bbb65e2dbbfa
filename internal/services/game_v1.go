package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nongbirb/monsweeper2-contract/internal/engine"
	"github.com/nongbirb/monsweeper2-contract/internal/models"
)

// GameEngineV1 runs the classic game: the board seed is derived at creation
// from the server seed, the player's seed and a per-wallet nonce, so moves
// are accepted immediately. There is no oracle round-trip and no pool cap,
// only the solvency requirement that the pool covers a payout.
type GameEngineV1 struct {
	redis    *RedisService
	treasury *TreasuryService
	events   Broadcaster
	locks    *keyedMutex

	mu         sync.RWMutex
	serverSeed string
}

func NewGameEngineV1(redisService *RedisService, treasury *TreasuryService, events Broadcaster) *GameEngineV1 {
	if events == nil {
		events = NoopBroadcaster{}
	}
	return &GameEngineV1{
		redis:      redisService,
		treasury:   treasury,
		events:     events,
		locks:      newKeyedMutex(),
		serverSeed: generateServerSeed(),
	}
}

func generateServerSeed() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetServerHash returns the commitment to the current server seed; clients
// record it before betting and verify after the seed rotates.
func (ge *GameEngineV1) GetServerHash() string {
	ge.mu.RLock()
	defer ge.mu.RUnlock()
	hash := sha256.Sum256([]byte(ge.serverSeed))
	return hex.EncodeToString(hash[:])
}

// RotateServerSeed swaps in a fresh seed and returns the retired one so it
// can be published for verification.
func (ge *GameEngineV1) RotateServerSeed() string {
	ge.mu.Lock()
	defer ge.mu.Unlock()
	old := ge.serverSeed
	ge.serverSeed = generateServerSeed()
	return old
}

// deriveSeed folds (player, clientSeed, nonce) through HMAC-SHA256 keyed by
// the server seed into the game's 256-bit board seed.
func (ge *GameEngineV1) deriveSeed(player, clientSeed string, nonce int64) [32]byte {
	ge.mu.RLock()
	defer ge.mu.RUnlock()

	message := fmt.Sprintf("%s:%s:%d", player, clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(ge.serverSeed))
	h.Write([]byte(message))

	var seed [32]byte
	copy(seed[:], h.Sum(nil))
	return seed
}

func (ge *GameEngineV1) CreateGame(ctx context.Context, player string, req *models.CreateGameV1Request) (*models.Game, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bet: %v", err)
	}

	allowed, err := ge.redis.CheckRateLimit(player, "create", DefaultRateLimitCreate, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %v", err)
	}
	if !allowed {
		return nil, fmt.Errorf("game creation rate limit exceeded")
	}

	// Ensure the wallet exists before the atomic debit.
	if _, err := ge.redis.GetWallet(player); err != nil {
		return nil, err
	}

	if err := ge.redis.DebitWallet(player, req.Amount); err != nil {
		return nil, fmt.Errorf("failed to place stake: %v", err)
	}
	if err := ge.treasury.CreditPool(req.Amount); err != nil {
		ge.redis.CreditWallet(player, req.Amount, false)
		return nil, fmt.Errorf("failed to credit pool: %v", err)
	}

	nonce, err := ge.redis.IncrWalletNonce(player)
	if err != nil {
		ge.unwindStake(player, req.Amount)
		return nil, err
	}

	now := time.Now()
	seed := ge.deriveSeed(player, req.ClientSeed, nonce)

	game := &models.Game{
		ID:                 models.GenerateGameID(player, req.ClientSeed, now),
		Version:            models.GameVersionClassic,
		Player:             player,
		Bet:                req.Amount,
		Active:             true,
		Status:             models.StatusActive,
		RandomnessRevealed: true,
		Randomness:         hex.EncodeToString(seed[:]),
		ClickedTiles:       []int{},
		CreatedAt:          now,
	}

	if err := ge.redis.CreateGame(game); err != nil {
		ge.unwindStake(player, req.Amount)
		return nil, err
	}

	recordTransaction(ge.redis, player, models.TransactionTypeBet, req.Amount, game.ID,
		fmt.Sprintf("Staked %d on classic game", req.Amount))

	ge.events.Publish(Event{
		Type:   EventGameCreated,
		Player: player,
		GameID: game.ID,
		Data:   map[string]any{"version": game.Version, "bet": game.Bet},
	})

	return game, nil
}

func (ge *GameEngineV1) unwindStake(player string, amount int64) {
	ge.treasury.DebitPool(amount)
	ge.redis.CreditWallet(player, amount, false)
}

// SubmitMoves validates and settles a batch of reveals. A bomb anywhere in
// the batch loses the stake; a clean batch cashes the game out at the
// multiplier for its total click count.
func (ge *GameEngineV1) SubmitMoves(ctx context.Context, player, gameID string, tiles []int) (*models.MoveResult, error) {
	unlock := ge.locks.Lock(gameID)
	defer unlock()

	game, err := ge.redis.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	if game.Player != player {
		return nil, fmt.Errorf("caller does not own game %s", gameID)
	}
	if !game.Active {
		return nil, fmt.Errorf("game %s is not active", gameID)
	}

	if err := validateBatch(game, tiles); err != nil {
		return nil, err
	}

	seed, err := game.Seed()
	if err != nil {
		return nil, err
	}
	bombs, err := engine.BombSet(seed, game.BombCount())
	if err != nil {
		return nil, err
	}

	if bombTile, hit := walkTiles(game, tiles, bombs); hit {
		game.Active = false
		game.Status = models.StatusLost
		game.EndedAt = time.Now()

		if err := ge.redis.UpdateGame(game); err != nil {
			return nil, err
		}
		ge.redis.CompleteGame(player, gameID)

		ge.events.Publish(Event{
			Type:   EventGameLost,
			Player: player,
			GameID: gameID,
			Data:   map[string]any{"bomb_tile": bombTile},
		})

		wallet, _ := ge.redis.GetWallet(player)
		return &models.MoveResult{
			GameID:     gameID,
			Win:        false,
			BombTile:   bombTile,
			SafeClicks: len(game.ClickedTiles),
			NewBalance: wallet.Balance,
		}, nil
	}

	multiplier := engine.Multiplier(len(game.ClickedTiles), game.BombCount())
	reward := ApplyHouseEdge(PotentialReward(game.Bet, multiplier))

	game.Active = false
	game.Status = models.StatusWon
	game.Won = true
	game.Payout = reward
	game.EndedAt = time.Now()

	if err := ge.redis.UpdateGame(game); err != nil {
		return nil, err
	}
	ge.redis.CompleteGame(player, gameID)

	// The transfer is the last state-affecting step. If the pool cannot
	// cover the reward the whole call fails and the game is restored. A
	// reward truncated to zero settles as a win with nothing to move.
	if reward > 0 {
		if err := ge.treasury.Payout(player, reward, true); err != nil {
			game.Active = true
			game.Status = models.StatusActive
			game.Won = false
			game.Payout = 0
			game.EndedAt = time.Time{}
			ge.redis.UpdateGame(game)
			ge.redis.ReopenGame(player, gameID)
			return nil, err
		}
	}

	recordTransaction(ge.redis, player, models.TransactionTypeWin, reward, gameID,
		fmt.Sprintf("Won %d on classic game", reward))

	ge.events.Publish(Event{
		Type:   EventGameWon,
		Player: player,
		GameID: gameID,
		Data:   map[string]any{"payout": reward, "safe_clicks": len(game.ClickedTiles)},
	})

	wallet, _ := ge.redis.GetWallet(player)
	return &models.MoveResult{
		GameID:     gameID,
		Win:        true,
		SafeClicks: len(game.ClickedTiles),
		Multiplier: multiplier.String(),
		Payout:     reward,
		NewBalance: wallet.Balance,
	}, nil
}

// VerifySeed recomputes the board for a finished game from a revealed
// server seed, letting players check the bombs were fixed before they bet.
// The returned hash is the commitment over the given seed; it must match
// the hash published while the seed was live.
func (ge *GameEngineV1) VerifySeed(serverSeed, player, clientSeed string, nonce int64) ([]int, string, error) {
	message := fmt.Sprintf("%s:%s:%d", player, clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(message))

	var seed [32]byte
	copy(seed[:], h.Sum(nil))

	positions, err := engine.BombPositions(seed, models.DifficultyNormal.BombCount())
	if err != nil {
		return nil, "", err
	}

	commitment := sha256.Sum256([]byte(serverSeed))
	return positions, hex.EncodeToString(commitment[:]), nil
}

