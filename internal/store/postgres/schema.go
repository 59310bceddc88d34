package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlGuildSettings = `
CREATE TABLE IF NOT EXISTS guild_settings (
    guild_id    TEXT PRIMARY KEY,
    mode        TEXT NOT NULL,
    interval_ns BIGINT NOT NULL,
    fact_check  BOOLEAN NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const ddlGuildCredentials = `
CREATE TABLE IF NOT EXISTS guild_credentials (
    guild_id   TEXT PRIMARY KEY,
    provider   TEXT NOT NULL,
    api_key    TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const ddlReports = `
CREATE TABLE IF NOT EXISTS reports (
    id         BIGSERIAL PRIMARY KEY,
    guild_id   TEXT NOT NULL,
    channel_id TEXT NOT NULL,
    cycle      INTEGER NOT NULL,
    mode       TEXT NOT NULL,
    final      BOOLEAN NOT NULL,
    body       TEXT NOT NULL,
    claims     INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS reports_guild_created_idx
    ON reports (guild_id, created_at DESC);
`

// Migrate creates or ensures all required tables exist. It is idempotent
// and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlGuildSettings,
		ddlGuildCredentials,
		ddlReports,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
