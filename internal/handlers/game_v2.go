package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nongbirb/monsweeper2-contract/internal/models"
	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

// GameV2Handler serves the oracle-backed game with difficulties, forced
// cash-outs and pool-aware bet limits.
type GameV2Handler struct {
	engine       *services.GameEngineV2
	redisService *services.RedisService
}

func NewGameV2Handler(engine *services.GameEngineV2, redisService *services.RedisService) *GameV2Handler {
	return &GameV2Handler{
		engine:       engine,
		redisService: redisService,
	}
}

func (h *GameV2Handler) CreateGame(c *gin.Context) {
	player := c.GetString("player")

	var req models.CreateGameV2Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	game, fee, err := h.engine.CreateGame(c.Request.Context(), player, &req)
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
			"difficulty": game.Difficulty,
			"bet":        game.Bet,
			"fee":        fee,
			"status":     game.Status,
			"created_at": game.CreatedAt,
		},
	})
}

func (h *GameV2Handler) SubmitMoves(c *gin.Context) {
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

// GetGame returns the caller's view of one game.
func (h *GameV2Handler) GetGame(c *gin.Context) {
	player := c.GetString("player")
	gameID := c.Param("id")

	game, err := h.redisService.GetGame(gameID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	if game.Player != player {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your game"})
		return
	}

	waiting := game.Active && game.RandomnessRequested && !game.RandomnessRevealed

	c.JSON(http.StatusOK, gin.H{
		"game": gin.H{
			"id":                     game.ID,
			"version":                game.Version,
			"difficulty":             game.Difficulty,
			"bet":                    game.Bet,
			"status":                 game.Status,
			"active":                 game.Active,
			"waiting_for_randomness": waiting,
			"clicked_tiles":          game.ClickedTiles,
			"won":                    game.Won,
			"payout":                 game.Payout,
			"forced_cashout":         game.ForcedCashout,
			"forced_reason":          game.ForcedReason,
			"created_at":             game.CreatedAt,
		},
	})
}

// ActiveGames lists the caller's in-flight games.
func (h *GameV2Handler) ActiveGames(c *gin.Context) {
	player := c.GetString("player")

	games, err := h.redisService.GetPlayerActiveGames(player)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load active games"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games})
}

// History returns the caller's most recent finished games.
func (h *GameV2Handler) History(c *gin.Context) {
	player := c.GetString("player")

	limit := int64(20)
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	games, err := h.redisService.GetGameHistory(player, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load game history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": games})
}

// Forecast projects the forced-cashout classification for extra clicks on
// an existing game.
func (h *GameV2Handler) Forecast(c *gin.Context) {
	player := c.GetString("player")
	gameID := c.Param("id")

	game, err := h.redisService.GetGame(gameID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	if game.Player != player {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your game"})
		return
	}

	extra := 0
	if v := c.Query("extra_clicks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid extra_clicks"})
			return
		}
		extra = n
	}

	forecast, err := h.engine.PredictForcedCashout(c.Request.Context(), gameID, extra)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"forecast": forecast})
}

// Limits quotes the oracle fee and the current maximum admissible bet.
func (h *GameV2Handler) Limits(c *gin.Context) {
	fee, maxBet, err := h.engine.FeeAndMaxBet(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to quote limits",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fee":     fee,
		"max_bet": maxBet,
	})
}
