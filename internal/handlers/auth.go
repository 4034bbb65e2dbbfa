package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

// AuthHandler issues session tokens. Players are identified by an opaque
// address string; there is no account system behind it.
type AuthHandler struct {
	jwtService   *services.JWTService
	redisService *services.RedisService
}

func NewAuthHandler(jwtService *services.JWTService, redisService *services.RedisService) *AuthHandler {
	return &AuthHandler{
		jwtService:   jwtService,
		redisService: redisService,
	}
}

type loginRequest struct {
	Player string `json:"player" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if len(req.Player) < 3 || len(req.Player) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Player must be 3 to 64 characters"})
		return
	}

	token, err := h.jwtService.GenerateToken(req.Player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	// Touch the wallet so the player starts funded.
	wallet, err := h.redisService.GetWallet(req.Player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"player":  req.Player,
		"balance": wallet.Balance,
	})
}

// Me returns the authenticated player's identity and wallet snapshot.
func (h *AuthHandler) Me(c *gin.Context) {
	player := c.GetString("player")

	wallet, err := h.redisService.GetWallet(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"player": player,
		"wallet": gin.H{
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
		},
	})
}
