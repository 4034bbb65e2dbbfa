package services

import (
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/nongbirb/monsweeper2-contract/internal/engine"
)

const (
	// HouseEdgePercent is the share of a capped winning payout the player
	// keeps; the rest stays in the pool.
	HouseEdgePercent = 95

	// PoolSafetyThresholdPercent caps both a single cash-out and an
	// admitted stake at this percentage of the current pool balance.
	PoolSafetyThresholdPercent = 30
)

// ForceCashoutMultiplier is the effective-multiplier ceiling (50x) past
// which a cash-out is flagged as forced.
var ForceCashoutMultiplier = new(big.Int).Mul(big.NewInt(50), engine.Scale)

const (
	ForcedReasonPoolLimit     = "pool_limit"
	ForcedReasonMaxMultiplier = "max_multiplier"
)

// TreasuryService guards the house pool. Every chip that enters or leaves
// the pool moves through it, and the payout/withdrawal paths are serialized
// by an explicit lock so a transfer can never re-enter them mid-flight.
type TreasuryService struct {
	redis *RedisService

	// payoutMu is the reentrancy guard around any path that moves pool
	// funds out after game state has been mutated.
	payoutMu sync.Mutex
}

func NewTreasuryService(redisService *RedisService) *TreasuryService {
	return &TreasuryService{redis: redisService}
}

// InitPool seeds the pool balance once; an existing pool is left untouched.
func (t *TreasuryService) InitPool(initial int64) error {
	return t.redis.client.SetNX(t.redis.ctx, KeyTreasuryPool, initial, 0).Err()
}

// SetPoolBalance overwrites the pool. Bootstrap and tests only.
func (t *TreasuryService) SetPoolBalance(balance int64) error {
	return t.redis.client.Set(t.redis.ctx, KeyTreasuryPool, balance, 0).Err()
}

func (t *TreasuryService) PoolBalance() (int64, error) {
	v, err := t.redis.client.Get(t.redis.ctx, KeyTreasuryPool).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read pool balance: %v", err)
	}
	return v, nil
}

var admitStakeScript = redis.NewScript(`
	local key = KEYS[1]
	local stake = tonumber(ARGV[1])
	local pct = tonumber(ARGV[2])

	local pool = tonumber(redis.call("GET", key) or "0")
	local maxBet = math.floor(pool * pct / 100)

	if stake > maxBet then
		return redis.error_reply("stake exceeds pool limit")
	end

	return redis.call("INCRBY", key, stake)
`)

// AdmitStake checks the bet-admission cap against the pool balance as it
// stands BEFORE the stake is added, then credits the stake, atomically.
func (t *TreasuryService) AdmitStake(netBet int64) error {
	err := admitStakeScript.Run(t.redis.ctx, t.redis.client,
		[]string{KeyTreasuryPool}, netBet, PoolSafetyThresholdPercent).Err()
	if err != nil {
		return fmt.Errorf("bet rejected: %v", err)
	}
	return nil
}

// CreditPool adds chips with no admission check (v1 stakes, compensations).
func (t *TreasuryService) CreditPool(amount int64) error {
	return t.redis.client.IncrBy(t.redis.ctx, KeyTreasuryPool, amount).Err()
}

var debitPoolScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local pool = tonumber(redis.call("GET", key) or "0")
	if pool < amount then
		return redis.error_reply("insufficient pool balance")
	end

	return redis.call("DECRBY", key, amount)
`)

// DebitPool removes chips, failing outright when the pool cannot cover the
// amount. Partial payment never happens.
func (t *TreasuryService) DebitPool(amount int64) error {
	err := debitPoolScript.Run(t.redis.ctx, t.redis.client, []string{KeyTreasuryPool}, amount).Err()
	if err != nil {
		return fmt.Errorf("pool debit failed: %v", err)
	}
	return nil
}

// Payout moves a reward (or refund) from the pool to a player's wallet.
// When the wallet credit fails, the pool debit is compensated so balances
// stay consistent and the caller can roll its own state back.
func (t *TreasuryService) Payout(player string, amount int64, won bool) error {
	t.payoutMu.Lock()
	defer t.payoutMu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("payout amount must be positive")
	}

	if err := t.DebitPool(amount); err != nil {
		return err
	}

	if err := t.redis.CreditWallet(player, amount, won); err != nil {
		t.CreditPool(amount)
		return fmt.Errorf("payout transfer failed: %v", err)
	}

	return nil
}

// Withdraw is the privileged pool drain. Caller authorization is enforced
// at the handler; the treasury only enforces solvency and atomicity.
func (t *TreasuryService) Withdraw(owner string, amount int64) error {
	t.payoutMu.Lock()
	defer t.payoutMu.Unlock()

	if amount <= 0 {
		return fmt.Errorf("withdrawal amount must be positive")
	}

	if err := t.DebitPool(amount); err != nil {
		return err
	}

	if err := t.redis.CreditWallet(owner, amount, false); err != nil {
		t.CreditPool(amount)
		return fmt.Errorf("withdrawal transfer failed: %v", err)
	}

	return nil
}

// --- pure payout math (no I/O, covered directly by tests) ---

// MaxBet is the largest net stake admissible against the given pool balance.
// Computed in big.Int: pool*30 overflows int64 for very large pools, and a
// negative limit would reject every bet. The quotient never exceeds pool, so
// it always fits.
func MaxBet(pool int64) int64 {
	r := new(big.Int).Mul(big.NewInt(pool), big.NewInt(PoolSafetyThresholdPercent))
	r.Div(r, big.NewInt(100))
	return r.Int64()
}

// PotentialReward is bet x multiplier at fixed-point scale, truncating.
// Results beyond int64 clamp to MaxInt64; the pool cap brings them back
// into range before any payment.
func PotentialReward(bet int64, multiplier *big.Int) int64 {
	r := new(big.Int).Mul(big.NewInt(bet), multiplier)
	r.Div(r, engine.Scale)
	if !r.IsInt64() {
		return math.MaxInt64
	}
	return r.Int64()
}

// ClassifyCashout applies the pool-solvency cap and the forced-cashout
// rules to an uncapped potential reward. The multiplier ceiling flags the
// cash-out as forced but, on its own, does not change the amount.
func ClassifyCashout(potential, pool int64, multiplier *big.Int) (capped int64, forced bool, reason string) {
	capped = potential

	if limit := MaxBet(pool); potential > limit {
		capped = limit
		return capped, true, ForcedReasonPoolLimit
	}

	if multiplier.Cmp(ForceCashoutMultiplier) >= 0 {
		return capped, true, ForcedReasonMaxMultiplier
	}

	return capped, false, ""
}

// ApplyHouseEdge keeps HouseEdgePercent of the capped reward, truncating.
// Same overflow treatment as MaxBet; the result never exceeds the input.
func ApplyHouseEdge(amount int64) int64 {
	r := new(big.Int).Mul(big.NewInt(amount), big.NewInt(HouseEdgePercent))
	r.Div(r, big.NewInt(100))
	return r.Int64()
}
