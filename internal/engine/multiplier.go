package engine

import "math/big"

// Scale is the fixed-point scale for multipliers: 1.0x == 10^18.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Multiplier returns the payout multiplier after safeClicks bomb-free reveals
// on a board with bombCount bombs, as a fixed-point value at Scale.
//
// The multiplier is the reciprocal of the probability of surviving
// safeClicks sequential reveals without replacement:
//
//	prod over i in [0, safeClicks) of (BoardSize-i) / (BoardSize-bombCount-i)
//
// Division truncates at every step. That rounding is part of the payout
// semantics and must not be "improved"; payouts depend on it bit for bit.
func Multiplier(safeClicks, bombCount int) *big.Int {
	m := new(big.Int).Set(Scale)
	for i := 0; i < safeClicks; i++ {
		m.Mul(m, big.NewInt(int64(BoardSize-i)))
		m.Div(m, big.NewInt(int64(BoardSize-bombCount-i)))
	}
	return m
}

// WarBonus applies the God of War payout bonus (x1.5, truncating) to a
// fixed-point multiplier and returns a new value.
func WarBonus(m *big.Int) *big.Int {
	out := new(big.Int).Mul(m, big.NewInt(3))
	return out.Div(out, big.NewInt(2))
}

// MaxSafeClicks is the largest number of reveals a game with bombCount bombs
// can survive.
func MaxSafeClicks(bombCount int) int {
	return BoardSize - bombCount
}
