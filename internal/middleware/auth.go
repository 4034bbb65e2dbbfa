package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("player", claims.Player)
		c.Set("session_id", claims.SessionID)

		c.Next()
	}
}

// RequireOwner gates pool withdrawals and emergency terminations to the
// configured owner account. Runs after AuthMiddleware.
func RequireOwner(ownerAddress string) gin.HandlerFunc {
	return func(c *gin.Context) {
		player := c.GetString("player")
		if player == "" || player != ownerAddress {
			c.JSON(http.StatusForbidden, gin.H{"error": "Owner access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OracleAuthMiddleware authenticates the randomness callback with a shared
// secret header instead of a player token.
func OracleAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Oracle-Secret") != secret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid oracle credentials"})
			c.Abort()
			return
		}
		c.Next()
	}
}
