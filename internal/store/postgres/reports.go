package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// SaveReport implements [store.Reports].
func (s *Store) SaveReport(ctx context.Context, rec store.ReportRecord) error {
	const q = `
		INSERT INTO reports (guild_id, channel_id, cycle, mode, final, body, claims, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.pool.Exec(ctx, q,
		rec.GuildID,
		rec.ChannelID,
		rec.Cycle,
		string(rec.Mode),
		rec.Final,
		rec.Text,
		rec.Claims,
		created,
	)
	if err != nil {
		return fmt.Errorf("reports: insert: %w", err)
	}
	return nil
}

// RecentReports implements [store.Reports].
func (s *Store) RecentReports(ctx context.Context, guildID string, limit int) ([]store.ReportRecord, error) {
	const q = `
		SELECT channel_id, cycle, mode, final, body, claims, created_at
		FROM   reports
		WHERE  guild_id = $1
		ORDER  BY created_at DESC
		LIMIT  $2`

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, q, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("reports: query: %w", err)
	}
	defer rows.Close()

	var out []store.ReportRecord
	for rows.Next() {
		rec := store.ReportRecord{GuildID: guildID}
		var mode string
		if err := rows.Scan(&rec.ChannelID, &rec.Cycle, &mode, &rec.Final, &rec.Text, &rec.Claims, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("reports: scan: %w", err)
		}
		rec.Mode = analyzer.Mode(mode)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reports: rows: %w", err)
	}
	return out, nil
}
