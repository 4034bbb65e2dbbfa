package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nongbirb/monsweeper2-contract/internal/engine"
	"github.com/nongbirb/monsweeper2-contract/internal/models"
)

// GameEngineV2 runs the oracle-backed game: creation pays a randomness fee
// and leaves the game pending until the oracle fulfills, difficulties select
// bomb count and bonus, cash-outs are capped by the pool-safety threshold,
// and per-player statistics are kept.
type GameEngineV2 struct {
	redis    *RedisService
	treasury *TreasuryService
	oracle   *OracleService
	events   Broadcaster
	audit    *AuditStore
	locks    *keyedMutex
}

func NewGameEngineV2(redisService *RedisService, treasury *TreasuryService, oracle *OracleService, events Broadcaster, audit *AuditStore) *GameEngineV2 {
	if events == nil {
		events = NoopBroadcaster{}
	}
	return &GameEngineV2{
		redis:    redisService,
		treasury: treasury,
		oracle:   oracle,
		events:   events,
		audit:    audit,
		locks:    newKeyedMutex(),
	}
}

// CreateGame stakes the player, pays the oracle fee, requests randomness
// and stores the pending game. Every later step compensates the earlier
// ones on failure, so a failed call leaves no partial game, no locked
// stake and no untracked request.
func (ge *GameEngineV2) CreateGame(ctx context.Context, player string, req *models.CreateGameV2Request) (*models.Game, int64, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, fmt.Errorf("invalid bet: %v", err)
	}

	allowed, err := ge.redis.CheckRateLimit(player, "create", DefaultRateLimitCreate, time.Minute)
	if err != nil {
		return nil, 0, fmt.Errorf("rate limit check failed: %v", err)
	}
	if !allowed {
		return nil, 0, fmt.Errorf("game creation rate limit exceeded")
	}

	// The one-active-game check and the game store must act as one step;
	// creations for the same player are serialized. Game keys carry a
	// "game_" prefix, so the player namespace cannot collide with the
	// per-game locks below.
	unlock := ge.locks.Lock("player:" + player)
	defer unlock()

	active, err := ge.redis.HasActiveGame(player)
	if err != nil {
		return nil, 0, err
	}
	if active {
		return nil, 0, fmt.Errorf("player already has an active game")
	}

	fee, err := ge.oracle.Fee(ctx)
	if err != nil {
		return nil, 0, err
	}
	if req.Amount <= fee {
		return nil, 0, fmt.Errorf("stake %d does not cover the %d randomness fee", req.Amount, fee)
	}
	netBet := req.Amount - fee

	clientSeed, err := models.ParseClientSeed(req.ClientSeed)
	if err != nil {
		return nil, 0, err
	}

	// Ensure the wallet exists before the atomic debit.
	if _, err := ge.redis.GetWallet(player); err != nil {
		return nil, 0, err
	}

	if err := ge.redis.DebitWallet(player, req.Amount); err != nil {
		return nil, 0, fmt.Errorf("failed to place stake: %v", err)
	}

	// Admission cap is computed against the pool before the stake lands.
	if err := ge.treasury.AdmitStake(netBet); err != nil {
		ge.redis.CreditWallet(player, req.Amount, false)
		return nil, 0, err
	}

	now := time.Now()
	game := &models.Game{
		ID:                  models.GenerateGameID(player, req.ClientSeed, now),
		Version:             models.GameVersionOracle,
		Player:              player,
		Bet:                 netBet,
		Difficulty:          req.Difficulty,
		Active:              true,
		Status:              models.StatusPending,
		RandomnessRequested: true,
		ClickedTiles:        []int{},
		CreatedAt:           now,
	}

	handle, err := ge.oracle.Request(ctx, game.ID, clientSeed)
	if err != nil {
		// The provider rejected the request: the whole creation unwinds.
		// The fee is returned too; it is only forwarded with an accepted
		// request.
		ge.treasury.DebitPool(netBet)
		ge.redis.CreditWallet(player, req.Amount, false)
		return nil, 0, err
	}
	game.RequestHandle = handle

	if err := ge.redis.CreateGame(game); err != nil {
		ge.redis.DeleteOracleRequest(handle)
		ge.treasury.DebitPool(netBet)
		ge.redis.CreditWallet(player, req.Amount, false)
		return nil, 0, err
	}

	ge.redis.IncrPlayerStats(player, 0, 0, 1, 0)

	recordTransaction(ge.redis, player, models.TransactionTypeBet, req.Amount, game.ID,
		fmt.Sprintf("Staked %d (%d fee) on %s game", req.Amount, fee, req.Difficulty))

	ge.events.Publish(Event{
		Type:   EventRandomnessRequested,
		Player: player,
		GameID: game.ID,
		Data:   map[string]any{"handle": handle, "difficulty": game.Difficulty, "bet": netBet},
	})
	ge.audit.Record(ctx, EventGameCreated, player, game.ID, netBet, string(req.Difficulty))

	return game, fee, nil
}

// FulfillRandomness processes the oracle callback for a pending game.
func (ge *GameEngineV2) FulfillRandomness(ctx context.Context, handle string, randomness [32]byte) (*models.Game, error) {
	gameID, err := ge.redis.GetOracleRequest(handle)
	if err != nil {
		return nil, err
	}

	unlock := ge.locks.Lock(gameID)
	defer unlock()

	game, err := ge.oracle.Fulfill(handle, randomness)
	if err != nil {
		return nil, err
	}

	ge.events.Publish(Event{
		Type:   EventRandomnessFulfilled,
		Player: game.Player,
		GameID: game.ID,
	})
	ge.audit.Record(ctx, EventRandomnessFulfilled, game.Player, game.ID, 0, "")

	return game, nil
}

// SubmitMoves validates and settles a batch of reveals for an oracle game.
// The whole batch either loses (a bomb was revealed) or cashes out at the
// capped, edge-adjusted reward.
func (ge *GameEngineV2) SubmitMoves(ctx context.Context, player, gameID string, tiles []int) (*models.MoveResult, error) {
	allowed, err := ge.redis.CheckRateLimit(player, "moves", DefaultRateLimitMoves, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %v", err)
	}
	if !allowed {
		return nil, fmt.Errorf("move rate limit exceeded")
	}

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
	if !game.RandomnessRevealed {
		return nil, fmt.Errorf("randomness for game %s not yet revealed", gameID)
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
		return ge.settleLoss(ctx, game, bombTile)
	}

	return ge.settleWin(ctx, game)
}

func (ge *GameEngineV2) settleLoss(ctx context.Context, game *models.Game, bombTile int) (*models.MoveResult, error) {
	game.Active = false
	game.Status = models.StatusLost
	game.EndedAt = time.Now()

	if err := ge.redis.UpdateGame(game); err != nil {
		return nil, err
	}
	ge.redis.CompleteGame(game.Player, game.ID)
	ge.redis.IncrPlayerStats(game.Player, 0, game.Bet, 0, 0)

	ge.events.Publish(Event{
		Type:   EventGameLost,
		Player: game.Player,
		GameID: game.ID,
		Data:   map[string]any{"bomb_tile": bombTile},
	})
	ge.audit.Record(ctx, EventGameLost, game.Player, game.ID, game.Bet, fmt.Sprintf("bomb at %d", bombTile))

	wallet, _ := ge.redis.GetWallet(game.Player)
	return &models.MoveResult{
		GameID:     game.ID,
		Win:        false,
		BombTile:   bombTile,
		SafeClicks: len(game.ClickedTiles),
		NewBalance: wallet.Balance,
	}, nil
}

func (ge *GameEngineV2) settleWin(ctx context.Context, game *models.Game) (*models.MoveResult, error) {
	multiplier := engine.Multiplier(len(game.ClickedTiles), game.BombCount())
	if game.Difficulty.HasWarBonus() {
		multiplier = engine.WarBonus(multiplier)
	}

	pool, err := ge.treasury.PoolBalance()
	if err != nil {
		return nil, err
	}

	potential := PotentialReward(game.Bet, multiplier)
	capped, forced, reason := ClassifyCashout(potential, pool, multiplier)
	reward := ApplyHouseEdge(capped)

	game.Active = false
	game.Status = models.StatusWon
	game.Won = true
	game.Payout = reward
	game.ForcedCashout = forced
	game.ForcedReason = reason
	game.EndedAt = time.Now()

	if err := ge.redis.UpdateGame(game); err != nil {
		return nil, err
	}
	ge.redis.CompleteGame(game.Player, game.ID)
	ge.redis.IncrPlayerStats(game.Player, reward, 0, 0, 1)

	// The transfer comes last, after the game is terminal. A failed
	// transfer rolls everything back and fails the call. A reward the
	// house edge truncated to zero still settles the game as a win;
	// there is just nothing to move.
	if reward > 0 {
		if err := ge.treasury.Payout(game.Player, reward, true); err != nil {
			ge.redis.IncrPlayerStats(game.Player, -reward, 0, 0, -1)
			game.Active = true
			game.Status = models.StatusActive
			game.Won = false
			game.Payout = 0
			game.ForcedCashout = false
			game.ForcedReason = ""
			game.EndedAt = time.Time{}
			ge.redis.UpdateGame(game)
			ge.redis.ReopenGame(game.Player, game.ID)
			return nil, err
		}
	}

	recordTransaction(ge.redis, game.Player, models.TransactionTypeWin, reward, game.ID,
		fmt.Sprintf("Won %d on %s game", reward, game.Difficulty))

	ge.events.Publish(Event{
		Type:   EventGameWon,
		Player: game.Player,
		GameID: game.ID,
		Data: map[string]any{
			"payout":         reward,
			"safe_clicks":    len(game.ClickedTiles),
			"forced_cashout": forced,
			"forced_reason":  reason,
		},
	})
	ge.audit.Record(ctx, EventGameWon, game.Player, game.ID, reward, reason)

	wallet, _ := ge.redis.GetWallet(game.Player)
	return &models.MoveResult{
		GameID:        game.ID,
		Win:           true,
		SafeClicks:    len(game.ClickedTiles),
		Multiplier:    multiplier.String(),
		Payout:        reward,
		ForcedCashout: forced,
		ForcedReason:  reason,
		NewBalance:    wallet.Balance,
	}, nil
}

// PredictForcedCashout projects the forced-cashout rules onto a hypothetical
// number of additional safe clicks without touching any state.
func (ge *GameEngineV2) PredictForcedCashout(ctx context.Context, gameID string, extraClicks int) (*models.CashoutForecast, error) {
	if extraClicks < 0 {
		return nil, fmt.Errorf("extra clicks must not be negative")
	}

	game, err := ge.redis.GetGame(gameID)
	if err != nil {
		return nil, err
	}

	total := len(game.ClickedTiles) + extraClicks
	if total > engine.MaxSafeClicks(game.BombCount()) {
		return nil, fmt.Errorf("%d clicks exceeds the %d safe tiles on the board",
			total, engine.MaxSafeClicks(game.BombCount()))
	}

	multiplier := engine.Multiplier(total, game.BombCount())
	if game.Difficulty.HasWarBonus() {
		multiplier = engine.WarBonus(multiplier)
	}

	pool, err := ge.treasury.PoolBalance()
	if err != nil {
		return nil, err
	}

	potential := PotentialReward(game.Bet, multiplier)
	capped, forced, reason := ClassifyCashout(potential, pool, multiplier)

	return &models.CashoutForecast{
		GameID:          gameID,
		ExtraClicks:     extraClicks,
		Multiplier:      multiplier.String(),
		PotentialReward: ApplyHouseEdge(capped),
		Forced:          forced,
		ForcedReason:    reason,
	}, nil
}

// IsWaitingForRandomness reports whether the game is stuck in the pending
// sub-state between request and fulfillment.
func (ge *GameEngineV2) IsWaitingForRandomness(gameID string) (bool, error) {
	game, err := ge.redis.GetGame(gameID)
	if err != nil {
		return false, err
	}
	return game.Active && game.RandomnessRequested && !game.RandomnessRevealed, nil
}

// MaxBet is the current bet-admission ceiling.
func (ge *GameEngineV2) MaxBet() (int64, error) {
	pool, err := ge.treasury.PoolBalance()
	if err != nil {
		return 0, err
	}
	return MaxBet(pool), nil
}

// FeeAndMaxBet bundles the oracle fee quote with the admission ceiling so
// clients size a stake with one call.
func (ge *GameEngineV2) FeeAndMaxBet(ctx context.Context) (fee, maxBet int64, err error) {
	fee, err = ge.oracle.Fee(ctx)
	if err != nil {
		return 0, 0, err
	}
	maxBet, err = ge.MaxBet()
	if err != nil {
		return 0, 0, err
	}
	return fee, maxBet, nil
}

// EmergencyEndGame force-ends an active game and refunds its net stake.
// Owner-only; authorization is enforced at the handler.
func (ge *GameEngineV2) EmergencyEndGame(ctx context.Context, gameID string) (*models.Game, error) {
	unlock := ge.locks.Lock(gameID)
	defer unlock()

	game, err := ge.redis.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	if !game.Active {
		return nil, fmt.Errorf("game %s is not active", gameID)
	}

	game.Active = false
	game.Status = models.StatusEnded
	game.EndedAt = time.Now()

	if err := ge.redis.UpdateGame(game); err != nil {
		return nil, err
	}
	ge.redis.CompleteGame(game.Player, game.ID)

	if err := ge.treasury.Payout(game.Player, game.Bet, false); err != nil {
		game.Active = true
		game.Status = models.StatusPending
		if game.RandomnessRevealed {
			game.Status = models.StatusActive
		}
		game.EndedAt = time.Time{}
		ge.redis.UpdateGame(game)
		ge.redis.ReopenGame(game.Player, game.ID)
		return nil, fmt.Errorf("refund failed: %v", err)
	}

	// The handle dies only once the refund is through; a restored game
	// must stay fulfillable.
	if game.RequestHandle != "" && !game.RandomnessRevealed {
		ge.redis.DeleteOracleRequest(game.RequestHandle)
	}

	recordTransaction(ge.redis, game.Player, models.TransactionTypeRefund, game.Bet, game.ID,
		"Game force-ended by owner, stake refunded")

	ge.events.Publish(Event{
		Type:   EventGameForceEnded,
		Player: game.Player,
		GameID: game.ID,
		Data:   map[string]any{"refund": game.Bet},
	})
	ge.audit.Record(ctx, EventGameForceEnded, game.Player, game.ID, game.Bet, "")

	return game, nil
}

// WithdrawPool drains chips from the house pool to the owner's wallet.
func (ge *GameEngineV2) WithdrawPool(ctx context.Context, owner string, amount int64) error {
	// Ensure the destination wallet exists before the transfer.
	if _, err := ge.redis.GetWallet(owner); err != nil {
		return err
	}

	if err := ge.treasury.Withdraw(owner, amount); err != nil {
		return err
	}

	recordTransaction(ge.redis, owner, models.TransactionTypeWithdraw, amount, "",
		fmt.Sprintf("Withdrew %d from the house pool", amount))

	ge.events.Publish(Event{
		Type:   EventWithdrawal,
		Player: owner,
		Data:   map[string]any{"amount": amount},
	})
	ge.audit.Record(ctx, EventWithdrawal, owner, "", amount, "")

	return nil
}
