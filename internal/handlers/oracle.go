package handlers

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nongbirb/monsweeper2-contract/internal/models"
	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

// OracleHandler receives randomness callbacks. Authentication is done by
// middleware; this handler only validates the payload and delegates.
type OracleHandler struct {
	engine *services.GameEngineV2
}

func NewOracleHandler(engine *services.GameEngineV2) *OracleHandler {
	return &OracleHandler{engine: engine}
}

func (h *OracleHandler) Fulfill(c *gin.Context) {
	var req models.FulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	raw, err := hex.DecodeString(req.Randomness)
	if err != nil || len(raw) != 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Randomness must be 32 bytes of hex"})
		return
	}
	var randomness [32]byte
	copy(randomness[:], raw)

	game, err := h.engine.FulfillRandomness(c.Request.Context(), req.Handle, randomness)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Failed to fulfill",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game_id": game.ID,
		"status":  game.Status,
	})
}
