package engine

import (
	"math/big"
	"testing"
)

func TestMultiplier(t *testing.T) {
	t.Run("zero clicks is exactly 1.0x", func(t *testing.T) {
		m := Multiplier(0, 9)
		if m.Cmp(Scale) != 0 {
			t.Errorf("expected %s, got %s", Scale, m)
		}
	})

	t.Run("strictly increasing in safe clicks", func(t *testing.T) {
		prev := Multiplier(0, 9)
		for clicks := 1; clicks <= MaxSafeClicks(9); clicks++ {
			m := Multiplier(clicks, 9)
			if m.Cmp(prev) <= 0 {
				t.Errorf("multiplier at %d clicks (%s) not greater than at %d (%s)",
					clicks, m, clicks-1, prev)
			}
			prev = m
		}
	})

	t.Run("matches the iterated truncating product for 5 clicks on 9 bombs", func(t *testing.T) {
		// prod over i in [0,5) of (36-i)/(27-i), truncating at each step.
		want := new(big.Int).Set(Scale)
		for i := 0; i < 5; i++ {
			want.Mul(want, big.NewInt(int64(36-i)))
			want.Div(want, big.NewInt(int64(27-i)))
		}

		got := Multiplier(5, 9)
		if got.Cmp(want) != 0 {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("single click equals N/(N-k) scaled", func(t *testing.T) {
		// 36/27 * 1e18 = 1.333...e18 truncated.
		want := new(big.Int).Mul(Scale, big.NewInt(36))
		want.Div(want, big.NewInt(27))

		got := Multiplier(1, 9)
		if got.Cmp(want) != 0 {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("more bombs pay more for the same clicks", func(t *testing.T) {
		normal := Multiplier(5, 9)
		war := Multiplier(5, 12)
		if war.Cmp(normal) <= 0 {
			t.Errorf("12-bomb multiplier %s should exceed 9-bomb multiplier %s", war, normal)
		}
	})

	t.Run("pure function", func(t *testing.T) {
		a := Multiplier(10, 12)
		b := Multiplier(10, 12)
		if a.Cmp(b) != 0 {
			t.Errorf("recomputation differs: %s vs %s", a, b)
		}
	})
}

func TestWarBonus(t *testing.T) {
	m := big.NewInt(1_000_000_000_000_000_001) // odd value to exercise truncation
	got := WarBonus(m)
	want := big.NewInt(1_500_000_000_000_000_001) // (m*3)/2 truncated

	if got.Cmp(want) != 0 {
		t.Errorf("expected %s, got %s", want, got)
	}
	if m.Cmp(big.NewInt(1_000_000_000_000_000_001)) != 0 {
		t.Error("WarBonus mutated its input")
	}
}
