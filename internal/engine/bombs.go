package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

const (
	// BoardSize is the number of tiles on the board. Tiles are indexed 0..35.
	BoardSize = 36

	// MaxPlacementAttempts bounds the rehash-and-reject loop so a degenerate
	// seed can never spin forever.
	MaxPlacementAttempts = 200
)

// ErrPlacementExhausted is returned when the placement loop ran out of
// attempts before all bombs were placed. Callers must treat the whole
// operation as failed; a board with fewer bombs than requested is never used.
var ErrPlacementExhausted = errors.New("bomb placement attempts exhausted")

var boardSizeBig = big.NewInt(BoardSize)

// Keccak256 hashes the concatenation of the given byte slices with
// legacy Keccak-256 (the EVM hash).
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func u64bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// BombPositions derives bombCount distinct tile indices from a 256-bit seed.
//
// Each attempt hashes (currentSeed, bombsPlaced, attemptCounter) and reduces
// the digest modulo the board size; a candidate that is already taken is
// rejected. The working seed is rehashed after every attempt, so the sequence
// of candidates is a pure function of the original seed. Identical inputs
// always yield the identical bomb set, which is why the set is recomputed on
// every move validation instead of being cached.
func BombPositions(seed [32]byte, bombCount int) ([]int, error) {
	if bombCount <= 0 || bombCount >= BoardSize {
		return nil, fmt.Errorf("bomb count %d outside (0, %d)", bombCount, BoardSize)
	}

	current := seed
	positions := make([]int, 0, bombCount)
	taken := make(map[int]bool, bombCount)

	for attempt := 0; len(positions) < bombCount && attempt < MaxPlacementAttempts; attempt++ {
		digest := Keccak256(current[:], u64bytes(uint64(len(positions))), u64bytes(uint64(attempt)))
		candidate := int(new(big.Int).Mod(new(big.Int).SetBytes(digest[:]), boardSizeBig).Int64())

		if !taken[candidate] {
			taken[candidate] = true
			positions = append(positions, candidate)
		}

		current = Keccak256(current[:])
	}

	if len(positions) < bombCount {
		return nil, ErrPlacementExhausted
	}

	return positions, nil
}

// BombSet is BombPositions projected into a membership set.
func BombSet(seed [32]byte, bombCount int) (map[int]bool, error) {
	positions, err := BombPositions(seed, bombCount)
	if err != nil {
		return nil, err
	}

	set := make(map[int]bool, len(positions))
	for _, p := range positions {
		set[p] = true
	}
	return set, nil
}
