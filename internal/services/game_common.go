package services

import (
	"fmt"
	"time"

	"github.com/nongbirb/monsweeper2-contract/internal/engine"
	"github.com/nongbirb/monsweeper2-contract/internal/models"
)

// validateBatch runs the move-batch checks shared by both game versions:
// non-empty input, board capacity, index range, and duplicates within the
// batch and against the game's cumulative click history.
func validateBatch(game *models.Game, tiles []int) error {
	if len(tiles) == 0 {
		return fmt.Errorf("no tiles submitted")
	}

	if len(tiles) > game.RemainingSafeClicks() {
		return fmt.Errorf("batch of %d exceeds the %d remaining safe tiles",
			len(tiles), game.RemainingSafeClicks())
	}

	seen := make(map[int]bool, len(tiles)+len(game.ClickedTiles))
	for _, t := range game.ClickedTiles {
		seen[t] = true
	}

	for _, tile := range tiles {
		if tile < 0 || tile >= engine.BoardSize {
			return fmt.Errorf("tile %d out of range [0, %d)", tile, engine.BoardSize)
		}
		if seen[tile] {
			return fmt.Errorf("tile %d already revealed", tile)
		}
		seen[tile] = true
	}

	return nil
}

// recordTransaction snapshots the player's balance movement into the
// transaction log. Best effort: the ledger, not the log, is authoritative.
func recordTransaction(r *RedisService, player string, txType models.TransactionType, amount int64, gameID, description string) {
	wallet, err := r.GetWallet(player)
	if err != nil {
		return
	}

	delta := amount
	if txType == models.TransactionTypeBet || txType == models.TransactionTypeFee {
		delta = -amount
	}

	tx := &models.Transaction{
		ID:            models.GenerateTransactionID(),
		Player:        player,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: wallet.Balance - delta,
		BalanceAfter:  wallet.Balance,
		GameID:        gameID,
		Description:   description,
		CreatedAt:     time.Now().Unix(),
	}

	r.SaveTransaction(tx)
}

// walkTiles replays the batch in order against the bomb set, appending safe
// tiles to the game's click history. It stops at the first bomb: tiles
// before it are already appended, the bomb itself and everything after are
// not.
func walkTiles(game *models.Game, tiles []int, bombs map[int]bool) (bombTile int, hit bool) {
	for _, tile := range tiles {
		if bombs[tile] {
			return tile, true
		}
		game.ClickedTiles = append(game.ClickedTiles, tile)
	}
	return 0, false
}
