package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nongbirb/monsweeper2-contract/internal/config"
	"github.com/nongbirb/monsweeper2-contract/internal/models"
)

// RedisService is the game ledger: games, per-player active-game index,
// player stats, wallets, the pending oracle-request mapping and the
// transaction log all live behind it. Nothing else touches these keys.
type RedisService struct {
	client          *redis.Client
	ctx             context.Context
	startingBalance int64
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{
		client:          client,
		ctx:             ctx,
		startingBalance: cfg.StartingBalance,
	}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// --- games ---

// CreateGame stores a fresh game record. It fails if the identifier already
// exists, so an identifier can never silently shadow a live game.
func (s *RedisService) CreateGame(game *models.Game) error {
	key := fmt.Sprintf(KeyGame, game.ID)

	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %v", err)
	}

	ok, err := s.client.SetNX(s.ctx, key, data, TTLGame).Result()
	if err != nil {
		return fmt.Errorf("failed to save game: %v", err)
	}
	if !ok {
		return fmt.Errorf("game %s already exists", game.ID)
	}

	activeKey := fmt.Sprintf(KeyPlayerActiveGames, game.Player)
	if err := s.client.SAdd(s.ctx, activeKey, game.ID).Err(); err != nil {
		return fmt.Errorf("failed to index active game: %v", err)
	}
	s.client.Expire(s.ctx, activeKey, TTLGame)

	return nil
}

func (s *RedisService) GetGame(gameID string) (*models.Game, error) {
	key := fmt.Sprintf(KeyGame, gameID)

	data, err := s.client.Get(s.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("game not found: %s", gameID)
		}
		return nil, fmt.Errorf("failed to get game: %v", err)
	}

	var game models.Game
	if err := json.Unmarshal([]byte(data), &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %v", err)
	}

	return &game, nil
}

func (s *RedisService) UpdateGame(game *models.Game) error {
	key := fmt.Sprintf(KeyGame, game.ID)

	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %v", err)
	}

	return s.client.Set(s.ctx, key, data, TTLGame).Err()
}

// CompleteGame removes the game from its player's active set and records it
// in the completed history (most recent 100 kept).
func (s *RedisService) CompleteGame(player, gameID string) error {
	activeKey := fmt.Sprintf(KeyPlayerActiveGames, player)
	if err := s.client.SRem(s.ctx, activeKey, gameID).Err(); err != nil {
		return fmt.Errorf("failed to remove from active games: %v", err)
	}

	completedKey := fmt.Sprintf(KeyPlayerCompletedGames, player)
	if err := s.client.ZAdd(s.ctx, completedKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: gameID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to completed games: %v", err)
	}

	s.client.ZRemRangeByRank(s.ctx, completedKey, 0, -101)

	return nil
}

// ReopenGame puts a game back into the active index. Only the payout
// compensation path uses this, when the final transfer failed after the
// game was already marked terminal.
func (s *RedisService) ReopenGame(player, gameID string) error {
	activeKey := fmt.Sprintf(KeyPlayerActiveGames, player)
	completedKey := fmt.Sprintf(KeyPlayerCompletedGames, player)

	s.client.ZRem(s.ctx, completedKey, gameID)
	return s.client.SAdd(s.ctx, activeKey, gameID).Err()
}

func (s *RedisService) GetPlayerActiveGames(player string) ([]*models.Game, error) {
	key := fmt.Sprintf(KeyPlayerActiveGames, player)

	ids, err := s.client.SMembers(s.ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active games: %v", err)
	}

	var games []*models.Game
	for _, id := range ids {
		game, err := s.GetGame(id)
		if err != nil || !game.Active {
			// Stale index entry; drop it rather than report a dead game.
			s.client.SRem(s.ctx, key, id)
			continue
		}
		games = append(games, game)
	}

	return games, nil
}

func (s *RedisService) HasActiveGame(player string) (bool, error) {
	games, err := s.GetPlayerActiveGames(player)
	if err != nil {
		return false, err
	}
	return len(games) > 0, nil
}

func (s *RedisService) GetGameHistory(player string, limit int64) ([]*models.Game, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	completedKey := fmt.Sprintf(KeyPlayerCompletedGames, player)

	ids, err := s.client.ZRevRange(s.ctx, completedKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game history: %v", err)
	}

	var games []*models.Game
	for _, id := range ids {
		game, err := s.GetGame(id)
		if err != nil {
			continue
		}
		games = append(games, game)
	}

	return games, nil
}

// --- player stats ---

// IncrPlayerStats bumps cumulative counters atomically. Counters only ever
// grow; a compensation path passes negative deltas to undo its own bump
// within the same failed call.
func (s *RedisService) IncrPlayerStats(player string, earned, lost, played, won int64) error {
	key := fmt.Sprintf(KeyPlayerStats, player)
	pipe := s.client.Pipeline()

	if earned != 0 {
		pipe.HIncrBy(s.ctx, key, "total_earned", earned)
	}
	if lost != 0 {
		pipe.HIncrBy(s.ctx, key, "total_lost", lost)
	}
	if played != 0 {
		pipe.HIncrBy(s.ctx, key, "games_played", played)
	}
	if won != 0 {
		pipe.HIncrBy(s.ctx, key, "games_won", won)
	}

	if _, err := pipe.Exec(s.ctx); err != nil {
		return fmt.Errorf("failed to update player stats: %v", err)
	}
	return nil
}

func (s *RedisService) GetPlayerStats(player string) (*models.PlayerStats, error) {
	key := fmt.Sprintf(KeyPlayerStats, player)

	fields, err := s.client.HGetAll(s.ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %v", err)
	}

	stats := &models.PlayerStats{Player: player}
	parse := func(name string) int64 {
		var v int64
		fmt.Sscanf(fields[name], "%d", &v)
		return v
	}
	stats.TotalEarned = parse("total_earned")
	stats.TotalLost = parse("total_lost")
	stats.GamesPlayed = parse("games_played")
	stats.GamesWon = parse("games_won")

	return stats, nil
}

// --- wallets ---

func (s *RedisService) GetWallet(player string) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, player)

	data, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		wallet := &models.Wallet{
			Player:  player,
			Balance: s.startingBalance,
		}
		if err := s.SaveWallet(wallet); err != nil {
			return nil, fmt.Errorf("failed to create wallet: %v", err)
		}
		return wallet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %v", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %v", err)
	}

	return &wallet, nil
}

func (s *RedisService) SaveWallet(wallet *models.Wallet) error {
	key := fmt.Sprintf(KeyWallet, wallet.Player)

	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %v", err)
	}

	return s.client.Set(s.ctx, key, data, 0).Err()
}

var debitWalletScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	if wallet.balance < amount then
		return redis.error_reply("insufficient balance")
	end

	wallet.balance = wallet.balance - amount
	wallet.total_wagered = wallet.total_wagered + amount

	redis.call("SET", key, cjson.encode(wallet))

	return wallet.balance
`)

// DebitWallet atomically removes amount from the player's spendable balance,
// failing the whole call if the balance cannot cover it.
func (s *RedisService) DebitWallet(player string, amount int64) error {
	key := fmt.Sprintf(KeyWallet, player)
	return debitWalletScript.Run(s.ctx, s.client, []string{key}, amount).Err()
}

var creditWalletScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])
	local won = ARGV[2] == "true"

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)

	wallet.balance = wallet.balance + amount
	if won then
		wallet.total_won = wallet.total_won + amount
	end

	redis.call("SET", key, cjson.encode(wallet))

	return wallet.balance
`)

// CreditWallet atomically adds amount to the player's spendable balance.
// won marks the credit as winnings rather than a refund.
func (s *RedisService) CreditWallet(player string, amount int64, won bool) error {
	key := fmt.Sprintf(KeyWallet, player)
	return creditWalletScript.Run(s.ctx, s.client, []string{key}, amount, won).Err()
}

func (s *RedisService) IncrWalletNonce(player string) (int64, error) {
	wallet, err := s.GetWallet(player)
	if err != nil {
		return 0, err
	}
	nonce := wallet.Nonce
	wallet.Nonce++
	if err := s.SaveWallet(wallet); err != nil {
		return 0, err
	}
	return nonce, nil
}

// --- pending oracle requests ---

// MapOracleRequest records handle -> gameID. A handle is single-use: mapping
// an existing handle fails.
func (s *RedisService) MapOracleRequest(handle, gameID string) error {
	key := fmt.Sprintf(KeyOracleRequest, handle)

	ok, err := s.client.SetNX(s.ctx, key, gameID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to map oracle request: %v", err)
	}
	if !ok {
		return fmt.Errorf("oracle request handle %s already in use", handle)
	}
	return nil
}

func (s *RedisService) GetOracleRequest(handle string) (string, error) {
	key := fmt.Sprintf(KeyOracleRequest, handle)

	gameID, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("unknown oracle request handle: %s", handle)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up oracle request: %v", err)
	}
	return gameID, nil
}

// DeleteOracleRequest removes the handle mapping and reports whether this
// call was the one that removed it. The fulfillment path relies on that to
// admit exactly one fulfillment per handle.
func (s *RedisService) DeleteOracleRequest(handle string) (bool, error) {
	key := fmt.Sprintf(KeyOracleRequest, handle)

	n, err := s.client.Del(s.ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete oracle request: %v", err)
	}
	return n == 1, nil
}

// --- transactions ---

func (s *RedisService) SaveTransaction(tx *models.Transaction) error {
	txKey := fmt.Sprintf(KeyTransaction, tx.ID)

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %v", err)
	}

	if err := s.client.Set(s.ctx, txKey, data, TTLTransaction).Err(); err != nil {
		return fmt.Errorf("failed to save transaction: %v", err)
	}

	playerTxKey := fmt.Sprintf(KeyPlayerTransactions, tx.Player)
	if err := s.client.ZAdd(s.ctx, playerTxKey, redis.Z{
		Score:  float64(tx.CreatedAt),
		Member: tx.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index transaction: %v", err)
	}

	// Keep only the last 100 transactions per player.
	s.client.ZRemRangeByRank(s.ctx, playerTxKey, 0, -101)

	return nil
}

func (s *RedisService) GetPlayerTransactions(player string, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	playerTxKey := fmt.Sprintf(KeyPlayerTransactions, player)

	ids, err := s.client.ZRevRange(s.ctx, playerTxKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %v", err)
	}

	var txs []*models.Transaction
	for _, id := range ids {
		data, err := s.client.Get(s.ctx, fmt.Sprintf(KeyTransaction, id)).Result()
		if err != nil {
			continue
		}
		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}
		txs = append(txs, &tx)
	}

	return txs, nil
}

// --- rate limits ---

func (s *RedisService) CheckRateLimit(player, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, player, action)

	count, err := s.client.Incr(s.ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(s.ctx, key, window)
	}

	return count <= int64(limit), nil
}

// --- test helpers ---

func (s *RedisService) DeleteGame(gameID string) error {
	return s.client.Del(s.ctx, fmt.Sprintf(KeyGame, gameID)).Err()
}

func (s *RedisService) DeleteWallet(player string) error {
	return s.client.Del(s.ctx, fmt.Sprintf(KeyWallet, player)).Err()
}
