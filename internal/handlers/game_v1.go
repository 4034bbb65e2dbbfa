package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nongbirb/monsweeper2-contract/internal/models"
	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

// GameV1Handler serves the commit-reveal game: randomness is derived from
// the server seed at creation, so games are playable immediately.
type GameV1Handler struct {
	engine       *services.GameEngineV1
	redisService *services.RedisService
}

func NewGameV1Handler(engine *services.GameEngineV1, redisService *services.RedisService) *GameV1Handler {
	return &GameV1Handler{
		engine:       engine,
		redisService: redisService,
	}
}

func (h *GameV1Handler) CreateGame(c *gin.Context) {
	player := c.GetString("player")

	var req models.CreateGameV1Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	game, err := h.engine.CreateGame(c.Request.Context(), player, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to create game",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game": gin.H{
			"id":         game.ID,
			"version":    game.Version,
			"bet":        game.Bet,
			"status":     game.Status,
			"created_at": game.CreatedAt,
		},
	})
}

func (h *GameV1Handler) SubmitMoves(c *gin.Context) {
	player := c.GetString("player")

	var req models.SubmitMovesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.engine.SubmitMoves(c.Request.Context(), player, req.GameID, req.Tiles)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to submit moves",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// ServerHash exposes the commitment to the current server seed.
func (h *GameV1Handler) ServerHash(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server_hash": h.engine.GetServerHash(),
	})
}

// VerifySeed lets a player recompute a finished board from a revealed
// server seed.
func (h *GameV1Handler) VerifySeed(c *gin.Context) {
	serverSeed := c.Query("server_seed")
	player := c.Query("player")
	clientSeed := c.Query("client_seed")
	nonceStr := c.Query("nonce")

	if serverSeed == "" || player == "" || clientSeed == "" || nonceStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_seed, player, client_seed and nonce are required"})
		return
	}
	nonce, err := strconv.ParseInt(nonceStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid nonce"})
		return
	}

	bombs, serverHash, err := h.engine.VerifySeed(serverSeed, player, clientSeed, nonce)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bomb_positions": bombs,
		"server_hash":    serverHash,
	})
}
