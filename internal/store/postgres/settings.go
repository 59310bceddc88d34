package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// Settings implements [store.Settings]. A guild without a row gets
// [store.DefaultSettings].
func (s *Store) Settings(ctx context.Context, guildID string) (store.GuildSettings, error) {
	const q = `
		SELECT mode, interval_ns, fact_check, updated_at
		FROM   guild_settings
		WHERE  guild_id = $1`

	var (
		mode       string
		intervalNS int64
		out        store.GuildSettings
	)
	err := s.pool.QueryRow(ctx, q, guildID).Scan(&mode, &intervalNS, &out.FactCheck, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.DefaultSettings(guildID), nil
	}
	if err != nil {
		return store.GuildSettings{}, fmt.Errorf("settings: query: %w", err)
	}

	out.GuildID = guildID
	out.Mode = analyzer.Mode(mode)
	out.Interval = time.Duration(intervalNS)
	return out, nil
}

// SetMode implements [store.Settings].
func (s *Store) SetMode(ctx context.Context, guildID string, mode analyzer.Mode) error {
	return s.upsertSettings(ctx, guildID, func(g *store.GuildSettings) { g.Mode = mode })
}

// SetInterval implements [store.Settings].
func (s *Store) SetInterval(ctx context.Context, guildID string, interval time.Duration) error {
	return s.upsertSettings(ctx, guildID, func(g *store.GuildSettings) { g.Interval = interval })
}

// SetFactCheck implements [store.Settings].
func (s *Store) SetFactCheck(ctx context.Context, guildID string, enabled bool) error {
	return s.upsertSettings(ctx, guildID, func(g *store.GuildSettings) { g.FactCheck = enabled })
}

// upsertSettings reads the current row (or defaults), applies fn, and writes
// the full row back. Settings writes are rare and per-guild, so the
// read-modify-write race window is acceptable.
func (s *Store) upsertSettings(ctx context.Context, guildID string, fn func(*store.GuildSettings)) error {
	cur, err := s.Settings(ctx, guildID)
	if err != nil {
		return err
	}
	fn(&cur)

	const q = `
		INSERT INTO guild_settings (guild_id, mode, interval_ns, fact_check, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (guild_id) DO UPDATE
		SET mode = EXCLUDED.mode,
		    interval_ns = EXCLUDED.interval_ns,
		    fact_check = EXCLUDED.fact_check,
		    updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, guildID, string(cur.Mode), cur.Interval.Nanoseconds(), cur.FactCheck); err != nil {
		return fmt.Errorf("settings: upsert: %w", err)
	}
	return nil
}
