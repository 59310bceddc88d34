// Package store defines persistence interfaces for per-guild settings,
// analysis-service credentials, and the report archive.
//
// Two implementations exist: [Memory] for tests and ephemeral deployments,
// and the postgres subpackage for durable ones.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Settings limits. Intervals shorter than MinInterval hammer the analysis
// service; commands reject them before they reach the store.
const (
	MinInterval     = 60 * time.Second
	DefaultInterval = 300 * time.Second
)

// GuildSettings is a guild's analysis configuration. Sessions re-read it at
// every cycle boundary, so changes apply from the next cycle without a
// restart.
type GuildSettings struct {
	GuildID   string
	Mode      analyzer.Mode
	Interval  time.Duration
	FactCheck bool
	UpdatedAt time.Time
}

// DefaultSettings returns the configuration a guild has before anyone
// touches it: debate mode with fact-checking at the default interval.
func DefaultSettings(guildID string) GuildSettings {
	return GuildSettings{
		GuildID:   guildID,
		Mode:      analyzer.ModeDebate,
		Interval:  DefaultInterval,
		FactCheck: true,
	}
}

// Settings persists per-guild analysis configuration. Reads for a guild
// without stored settings return [DefaultSettings], not ErrNotFound.
type Settings interface {
	Settings(ctx context.Context, guildID string) (GuildSettings, error)
	SetMode(ctx context.Context, guildID string, mode analyzer.Mode) error
	SetInterval(ctx context.Context, guildID string, interval time.Duration) error
	SetFactCheck(ctx context.Context, guildID string, enabled bool) error
}

// Credential is a guild's analysis-service API key. The key value is
// sensitive and must never appear in logs or command replies.
type Credential struct {
	GuildID   string
	Provider  string
	Key       string
	UpdatedAt time.Time
}

// Credentials persists per-guild API keys (bring-your-own-key). Key returns
// ErrNotFound when the guild has not registered one.
type Credentials interface {
	SetKey(ctx context.Context, guildID, provider, key string) error
	Key(ctx context.Context, guildID string) (Credential, error)
	DeleteKey(ctx context.Context, guildID string) error
}

// ReportRecord is one archived analysis report.
type ReportRecord struct {
	GuildID   string
	ChannelID string
	Cycle     int
	Mode      analyzer.Mode
	Final     bool
	Text      string
	Claims    int
	CreatedAt time.Time
}

// Reports archives produced reports for later retrieval.
type Reports interface {
	SaveReport(ctx context.Context, rec ReportRecord) error

	// RecentReports returns up to limit reports for the guild, newest
	// first.
	RecentReports(ctx context.Context, guildID string, limit int) ([]ReportRecord, error)
}
