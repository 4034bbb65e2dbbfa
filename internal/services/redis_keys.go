package services

import "time"

const (
	KeyGame                 = "game:%s"
	KeyPlayerActiveGames    = "player:%s:active_games"
	KeyPlayerCompletedGames = "player:%s:completed_games"
	KeyPlayerStats          = "player:%s:stats"
	KeyWallet               = "wallet:%s"
	KeyOracleRequest        = "oracle:request:%s"
	KeyTreasuryPool         = "treasury:pool"
	KeyTransaction          = "transaction:%s"
	KeyPlayerTransactions   = "player:%s:transactions"
	KeyRateLimit            = "ratelimit:%s:%s"

	TTLGame        = 7 * 24 * time.Hour
	TTLTransaction = 30 * 24 * time.Hour

	DefaultRateLimitCreate = 30  // game creations per minute
	DefaultRateLimitMoves  = 120 // move submissions per minute
)
