package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nongbirb/monsweeper2-contract/internal/engine"
	"github.com/nongbirb/monsweeper2-contract/internal/models"
)

// RandomnessProvider is the external randomness service boundary. The real
// oracle network sits behind it; errors it returns propagate verbatim as the
// caller-visible failure reason.
type RandomnessProvider interface {
	// GetFee quotes the chips charged per accepted request.
	GetFee(ctx context.Context) (int64, error)

	// RequestRandomness submits a request seeded by the client and returns
	// a correlation handle. The provider later delivers the random value
	// through the fulfillment callback, exactly once per handle.
	RequestRandomness(ctx context.Context, clientSeed [32]byte) (string, error)
}

// OracleService is the randomness correlation layer: it tracks outstanding
// requests, maps a handle back to its waiting game, and admits exactly one
// fulfillment per handle.
type OracleService struct {
	redis    *RedisService
	provider RandomnessProvider
}

func NewOracleService(redisService *RedisService, provider RandomnessProvider) *OracleService {
	return &OracleService{
		redis:    redisService,
		provider: provider,
	}
}

func (o *OracleService) Fee(ctx context.Context) (int64, error) {
	fee, err := o.provider.GetFee(ctx)
	if err != nil {
		return 0, fmt.Errorf("fee quote failed: %v", err)
	}
	if fee < 0 {
		return 0, fmt.Errorf("provider quoted a negative fee")
	}
	return fee, nil
}

// Request obtains a handle from the provider and records handle -> gameID.
// Any failure here must be unwound by the caller; no game may be left
// active without a tracked request.
func (o *OracleService) Request(ctx context.Context, gameID string, clientSeed [32]byte) (string, error) {
	handle, err := o.provider.RequestRandomness(ctx, clientSeed)
	if err != nil {
		return "", fmt.Errorf("randomness request failed: %v", err)
	}

	if err := o.redis.MapOracleRequest(handle, gameID); err != nil {
		return "", err
	}

	return handle, nil
}

// Fulfill is invoked when the provider delivers randomness for a handle.
// Unknown handles, terminal games and repeat deliveries all fail cleanly
// without mutating any game. On success the game flips to revealed and the
// handle mapping is consumed.
func (o *OracleService) Fulfill(handle string, randomness [32]byte) (*models.Game, error) {
	gameID, err := o.redis.GetOracleRequest(handle)
	if err != nil {
		return nil, err
	}

	game, err := o.redis.GetGame(gameID)
	if err != nil {
		return nil, err
	}

	if !game.Active {
		return nil, fmt.Errorf("game %s is not active", gameID)
	}
	if game.RandomnessRevealed {
		return nil, fmt.Errorf("randomness for game %s already fulfilled", gameID)
	}

	// Claim the handle before touching the game; a concurrent duplicate
	// delivery loses this race and fails without double-applying.
	claimed, err := o.redis.DeleteOracleRequest(handle)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("oracle request handle %s already consumed", handle)
	}

	game.Randomness = hex.EncodeToString(randomness[:])
	game.RandomnessRevealed = true
	game.Status = models.StatusActive

	if err := o.redis.UpdateGame(game); err != nil {
		// Put the claim back so the provider's retry can still land; the
		// game must not be left pending with no mapped handle.
		o.redis.MapOracleRequest(handle, gameID)
		return nil, fmt.Errorf("failed to store randomness: %v", err)
	}

	return game, nil
}

// DevProvider is the development stand-in for the oracle network. It quotes
// a flat fee, issues uuid handles, and (unless delay is zero) delivers a
// keccak-derived random value back through fulfill after the delay, mimicking
// the asynchronous callback of the real service.
type DevProvider struct {
	fee     int64
	delay   time.Duration
	secret  [32]byte
	fulfill func(handle string, randomness [32]byte)
}

// NewDevProvider builds a provider that calls fulfill on its own schedule.
// A zero delay disables self-delivery; tests then drive fulfillment by hand.
func NewDevProvider(fee int64, delay time.Duration, fulfill func(handle string, randomness [32]byte)) *DevProvider {
	var secret [32]byte
	copy(secret[:], uuid.New().String())
	return &DevProvider{
		fee:     fee,
		delay:   delay,
		secret:  secret,
		fulfill: fulfill,
	}
}

func (p *DevProvider) GetFee(ctx context.Context) (int64, error) {
	return p.fee, nil
}

func (p *DevProvider) RequestRandomness(ctx context.Context, clientSeed [32]byte) (string, error) {
	handle := uuid.New().String()

	if p.delay > 0 && p.fulfill != nil {
		go func() {
			time.Sleep(p.delay)
			randomness := engine.Keccak256(p.secret[:], []byte(handle), clientSeed[:])
			p.fulfill(handle, randomness)
		}()
	}

	return handle, nil
}
