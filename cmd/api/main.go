package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/nongbirb/monsweeper2-contract/internal/config"
	"github.com/nongbirb/monsweeper2-contract/internal/handlers"
	"github.com/nongbirb/monsweeper2-contract/internal/middleware"
	"github.com/nongbirb/monsweeper2-contract/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	audit, err := services.NewAuditStore(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to audit store: %v", err)
	}
	defer audit.Close()

	treasury := services.NewTreasuryService(redisService)
	if err := treasury.InitPool(cfg.InitialPool); err != nil {
		log.Fatalf("Failed to initialize house pool: %v", err)
	}

	jwtService := services.NewJWTService(cfg)

	wsHandler := handlers.NewWebSocketHandler(redisService)
	hub := wsHandler.Hub()

	// The dev provider delivers randomness back into the engine after a
	// short delay; the closure resolves the engine assigned below.
	var engineV2 *services.GameEngineV2
	provider := services.NewDevProvider(cfg.OracleFee, time.Duration(cfg.OracleDelayMS)*time.Millisecond,
		func(handle string, randomness [32]byte) {
			if _, err := engineV2.FulfillRandomness(context.Background(), handle, randomness); err != nil {
				log.Printf("Oracle self-delivery failed for %s: %v", handle, err)
			}
		})
	oracle := services.NewOracleService(redisService, provider)

	engineV1 := services.NewGameEngineV1(redisService, treasury, hub)
	engineV2 = services.NewGameEngineV2(redisService, treasury, oracle, hub, audit)

	sched, err := services.StartSeedRotation(engineV1, 24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to start seed rotation: %v", err)
	}
	defer sched.Shutdown()

	authHandler := handlers.NewAuthHandler(jwtService, redisService)
	walletHandler := handlers.NewWalletHandler(redisService)
	gameV1Handler := handlers.NewGameV1Handler(engineV1, redisService)
	gameV2Handler := handlers.NewGameV2Handler(engineV2, redisService)
	oracleHandler := handlers.NewOracleHandler(engineV2)
	adminHandler := handlers.NewAdminHandler(engineV2, treasury)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/login", authHandler.Login)

	// Oracle callback authenticates with a shared secret, not a player token.
	oracleRoutes := router.Group("/oracle")
	oracleRoutes.Use(middleware.OracleAuthMiddleware(cfg.OracleSecret))
	{
		oracleRoutes.POST("/fulfill", oracleHandler.Fulfill)
	}

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/me", authHandler.Me)
		protected.GET("/ws", wsHandler.HandleWebSocket)

		wallet := protected.Group("/wallet")
		{
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.POST("/deposit", walletHandler.Deposit)
			wallet.GET("/transactions", walletHandler.GetTransactions)
			wallet.GET("/stats", walletHandler.GetStats)
		}

		classic := protected.Group("/games/classic")
		{
			classic.POST("/create", gameV1Handler.CreateGame)
			classic.POST("/moves", gameV1Handler.SubmitMoves)
			classic.GET("/server-hash", gameV1Handler.ServerHash)
			classic.GET("/verify", gameV1Handler.VerifySeed)
		}

		games := protected.Group("/games")
		{
			games.POST("/create", gameV2Handler.CreateGame)
			games.POST("/moves", gameV2Handler.SubmitMoves)
			games.GET("/limits", gameV2Handler.Limits)
			games.GET("/active", gameV2Handler.ActiveGames)
			games.GET("/history", gameV2Handler.History)
			games.GET("/:id", gameV2Handler.GetGame)
			games.GET("/:id/forecast", gameV2Handler.Forecast)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireOwner(cfg.OwnerAddress))
		{
			admin.GET("/pool", adminHandler.Pool)
			admin.POST("/withdraw", adminHandler.Withdraw)
			admin.POST("/games/:id/end", adminHandler.EmergencyEndGame)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
