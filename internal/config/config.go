package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret    string
	OwnerAddress string

	// Oracle (v2 randomness provider) settings.
	OracleSecret  string // shared secret the fulfillment callback must present
	OracleFee     int64  // chips charged per randomness request
	OracleDelayMS int    // dev provider fulfillment delay

	// DATABASE_URL for the optional Postgres audit log; empty disables it.
	DatabaseURL string

	StartingBalance int64 // chips credited to a fresh wallet
	InitialPool     int64 // house pool seeded on first boot
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:             getEnv("ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:       os.Getenv("REDIS_PASS"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		OwnerAddress:    os.Getenv("OWNER_ADDRESS"),
		OracleSecret:    os.Getenv("ORACLE_SECRET"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		OracleFee:       getEnvInt64("ORACLE_FEE", 25),
		OracleDelayMS:   int(getEnvInt64("ORACLE_DELAY_MS", 250)),
		StartingBalance: getEnvInt64("STARTING_BALANCE", 10000),
		InitialPool:     getEnvInt64("INITIAL_POOL", 1000000),
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		v, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %v", err)
		}
		cfg.RedisDB = v
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret-do-not-use"
	}

	if cfg.OwnerAddress == "" {
		cfg.OwnerAddress = "owner"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
