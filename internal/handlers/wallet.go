package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nongbirb/monsweeper2-contract/internal/models"
	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

type WalletHandler struct {
	redisService *services.RedisService
}

func NewWalletHandler(redisService *services.RedisService) *WalletHandler {
	return &WalletHandler{redisService: redisService}
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	player := c.GetString("player")

	wallet, err := h.redisService.GetWallet(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":       wallet.Balance,
		"total_wagered": wallet.TotalWagered,
		"total_won":     wallet.TotalWon,
	})
}

// Deposit credits the caller's wallet. Chips are play money; there is no
// payment rail behind this endpoint.
func (h *WalletHandler) Deposit(c *gin.Context) {
	player := c.GetString("player")

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if req.Amount <= 0 || req.Amount > 1_000_000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Deposit must be between 1 and 1000000"})
		return
	}

	if err := h.redisService.CreditWallet(player, req.Amount, false); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Deposit failed"})
		return
	}

	tx := &models.Transaction{
		ID:          models.GenerateTransactionID(),
		Player:      player,
		Type:        models.TransactionTypeDeposit,
		Amount:      req.Amount,
		Description: "Wallet deposit",
		CreatedAt:   time.Now().Unix(),
	}
	if wallet, err := h.redisService.GetWallet(player); err == nil {
		tx.BalanceAfter = wallet.Balance
	}
	h.redisService.SaveTransaction(tx)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"new_balance": tx.BalanceAfter,
	})
}

func (h *WalletHandler) GetTransactions(c *gin.Context) {
	player := c.GetString("player")

	limit := int64(20)
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	txs, err := h.redisService.GetPlayerTransactions(player, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *WalletHandler) GetStats(c *gin.Context) {
	player := c.GetString("player")

	stats, err := h.redisService.GetPlayerStats(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
