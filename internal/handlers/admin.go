package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nongbirb/monsweeper2-contract/internal/models"
	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

// AdminHandler exposes the owner operations: pool withdrawal and emergency
// game termination. RequireOwner middleware guards every route here.
type AdminHandler struct {
	engine   *services.GameEngineV2
	treasury *services.TreasuryService
}

func NewAdminHandler(engine *services.GameEngineV2, treasury *services.TreasuryService) *AdminHandler {
	return &AdminHandler{
		engine:   engine,
		treasury: treasury,
	}
}

// Pool reports the house pool balance and the derived bet ceiling.
func (h *AdminHandler) Pool(c *gin.Context) {
	pool, err := h.treasury.PoolBalance()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read pool"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pool":    pool,
		"max_bet": services.MaxBet(pool),
	})
}

func (h *AdminHandler) Withdraw(c *gin.Context) {
	owner := c.GetString("player")

	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		return
	}

	if err := h.engine.WithdrawPool(c.Request.Context(), owner, req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Withdrawal failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AdminHandler) EmergencyEndGame(c *gin.Context) {
	gameID := c.Param("id")

	game, err := h.engine.EmergencyEndGame(c.Request.Context(), gameID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to end game",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game_id": game.ID,
		"status":  game.Status,
		"refund":  game.Bet,
	})
}
