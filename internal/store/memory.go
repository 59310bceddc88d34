package store

import (
	"context"
	"sync"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// Memory is an in-process implementation of [Settings], [Credentials] and
// [Reports]. Everything is lost on restart. Safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	settings    map[string]GuildSettings
	credentials map[string]Credential
	reports     map[string][]ReportRecord
}

var (
	_ Settings    = (*Memory)(nil)
	_ Credentials = (*Memory)(nil)
	_ Reports     = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		settings:    make(map[string]GuildSettings),
		credentials: make(map[string]Credential),
		reports:     make(map[string][]ReportRecord),
	}
}

// Settings implements [Settings].
func (m *Memory) Settings(ctx context.Context, guildID string) (GuildSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.settings[guildID]; ok {
		return s, nil
	}
	return DefaultSettings(guildID), nil
}

// SetMode implements [Settings].
func (m *Memory) SetMode(ctx context.Context, guildID string, mode analyzer.Mode) error {
	m.update(guildID, func(s *GuildSettings) { s.Mode = mode })
	return nil
}

// SetInterval implements [Settings].
func (m *Memory) SetInterval(ctx context.Context, guildID string, interval time.Duration) error {
	m.update(guildID, func(s *GuildSettings) { s.Interval = interval })
	return nil
}

// SetFactCheck implements [Settings].
func (m *Memory) SetFactCheck(ctx context.Context, guildID string, enabled bool) error {
	m.update(guildID, func(s *GuildSettings) { s.FactCheck = enabled })
	return nil
}

func (m *Memory) update(guildID string, fn func(*GuildSettings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[guildID]
	if !ok {
		s = DefaultSettings(guildID)
	}
	fn(&s)
	s.UpdatedAt = time.Now()
	m.settings[guildID] = s
}

// SetKey implements [Credentials].
func (m *Memory) SetKey(ctx context.Context, guildID, provider, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[guildID] = Credential{
		GuildID:   guildID,
		Provider:  provider,
		Key:       key,
		UpdatedAt: time.Now(),
	}
	return nil
}

// Key implements [Credentials].
func (m *Memory) Key(ctx context.Context, guildID string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.credentials[guildID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}

// DeleteKey implements [Credentials].
func (m *Memory) DeleteKey(ctx context.Context, guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.credentials, guildID)
	return nil
}

// SaveReport implements [Reports].
func (m *Memory) SaveReport(ctx context.Context, rec ReportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.reports[rec.GuildID] = append(m.reports[rec.GuildID], rec)
	return nil
}

// RecentReports implements [Reports].
func (m *Memory) RecentReports(ctx context.Context, guildID string, limit int) ([]ReportRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.reports[guildID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]ReportRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
