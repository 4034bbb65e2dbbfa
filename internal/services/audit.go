package services

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditStore writes an append-only event log to Postgres: game lifecycle,
// payouts, forced cash-outs, withdrawals. It is optional infrastructure; a
// nil store is a valid no-op so the service runs without a database in
// development.
type AuditStore struct {
	pool *pgxpool.Pool
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id         BIGSERIAL PRIMARY KEY,
	event_type TEXT        NOT NULL,
	player     TEXT        NOT NULL DEFAULT '',
	game_id    TEXT        NOT NULL DEFAULT '',
	amount     BIGINT      NOT NULL DEFAULT 0,
	details    TEXT        NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewAuditStore connects to DATABASE_URL and ensures the schema exists.
// An empty URL returns (nil, nil): auditing disabled.
func NewAuditStore(ctx context.Context, databaseURL string) (*AuditStore, error) {
	if databaseURL == "" {
		return nil, nil
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 4 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, auditSchema); err != nil {
		pool.Close()
		return nil, err
	}

	return &AuditStore{pool: pool}, nil
}

// Record inserts one event. Audit failures are logged, never propagated:
// the ledger, not the audit log, is the source of truth.
func (a *AuditStore) Record(ctx context.Context, eventType, player, gameID string, amount int64, details string) {
	if a == nil {
		return
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO audit_events (event_type, player, game_id, amount, details)
		 VALUES ($1, $2, $3, $4, $5)`,
		eventType, player, gameID, amount, details)
	if err != nil {
		log.Printf("audit: failed to record %s: %v", eventType, err)
	}
}

func (a *AuditStore) Close() {
	if a == nil {
		return
	}
	a.pool.Close()
}
