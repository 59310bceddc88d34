package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
)

// SetKey implements [store.Credentials].
func (s *Store) SetKey(ctx context.Context, guildID, provider, key string) error {
	const q = `
		INSERT INTO guild_credentials (guild_id, provider, api_key, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (guild_id) DO UPDATE
		SET provider = EXCLUDED.provider,
		    api_key = EXCLUDED.api_key,
		    updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, guildID, provider, key); err != nil {
		// The key itself must never end up in the wrapped error text.
		return fmt.Errorf("credentials: upsert for guild %s: %w", guildID, err)
	}
	return nil
}

// Key implements [store.Credentials].
func (s *Store) Key(ctx context.Context, guildID string) (store.Credential, error) {
	const q = `
		SELECT provider, api_key, updated_at
		FROM   guild_credentials
		WHERE  guild_id = $1`

	out := store.Credential{GuildID: guildID}
	err := s.pool.QueryRow(ctx, q, guildID).Scan(&out.Provider, &out.Key, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Credential{}, store.ErrNotFound
	}
	if err != nil {
		return store.Credential{}, fmt.Errorf("credentials: query: %w", err)
	}
	return out, nil
}

// DeleteKey implements [store.Credentials]. Deleting an absent key is not an
// error.
func (s *Store) DeleteKey(ctx context.Context, guildID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM guild_credentials WHERE guild_id = $1`, guildID); err != nil {
		return fmt.Errorf("credentials: delete: %w", err)
	}
	return nil
}
