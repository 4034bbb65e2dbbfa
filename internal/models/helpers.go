package models

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nongbirb/monsweeper2-contract/internal/engine"
)

// GenerateGameID derives a game identifier from the player, their client
// seed and the creation time, so identifiers are unique per (player, seed,
// moment) rather than globally random.
func GenerateGameID(player, clientSeed string, createdAt time.Time) string {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdAt.UnixNano()))
	digest := engine.Keccak256([]byte(player), []byte(clientSeed), ts[:])
	return "game_" + hex.EncodeToString(digest[:16])
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s_%d", time.Now().Format("20060102"), time.Now().UnixNano())
}

// GenerateClientSeed returns 32 bytes of CSPRNG entropy as hex, for clients
// that do not bring their own seed.
func GenerateClientSeed() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate client seed: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

// ParseClientSeed decodes a client-supplied hex seed into a left-padded
// 256-bit value. A zero seed is rejected: it would make the randomness
// request trivially predictable.
func ParseClientSeed(s string) ([32]byte, error) {
	var seed [32]byte
	if s == "" {
		return seed, fmt.Errorf("client seed is empty")
	}
	if len(s) > 64 || len(s)%2 != 0 {
		return seed, fmt.Errorf("client seed must be at most 64 hex characters with even length")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return seed, fmt.Errorf("client seed is not valid hex: %v", err)
	}
	copy(seed[32-len(raw):], raw)

	zero := true
	for _, b := range seed {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return seed, fmt.Errorf("client seed must be non-zero")
	}
	return seed, nil
}
