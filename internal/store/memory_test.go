package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

func TestSettingsDefaults(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	s, err := m.Settings(context.Background(), "g1")
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s.Mode != analyzer.ModeDebate || s.Interval != DefaultInterval || !s.FactCheck {
		t.Errorf("unexpected defaults: %+v", s)
	}
}

func TestSettingsUpdatesAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	if err := m.SetMode(ctx, "g1", analyzer.ModeSummary); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := m.SetInterval(ctx, "g1", 2*time.Minute); err != nil {
		t.Fatalf("SetInterval: %v", err)
	}

	s, _ := m.Settings(ctx, "g1")
	if s.Mode != analyzer.ModeSummary {
		t.Errorf("mode = %s", s.Mode)
	}
	if s.Interval != 2*time.Minute {
		t.Errorf("interval = %v", s.Interval)
	}
	if !s.FactCheck {
		t.Error("fact-check default should survive other updates")
	}

	other, _ := m.Settings(ctx, "g2")
	if other.Mode != analyzer.ModeDebate {
		t.Errorf("g2 should keep defaults, got %+v", other)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Key(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := m.SetKey(ctx, "g1", "gemini", "sk-test"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	c, err := m.Key(ctx, "g1")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if c.Provider != "gemini" || c.Key != "sk-test" {
		t.Errorf("credential = %+v", c)
	}

	if err := m.DeleteKey(ctx, "g1"); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, err := m.Key(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRecentReportsNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	for i := 1; i <= 5; i++ {
		err := m.SaveReport(ctx, ReportRecord{
			GuildID: "g1",
			Cycle:   i,
			Mode:    analyzer.ModeDebate,
			Text:    "report",
		})
		if err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	recs, err := m.RecentReports(ctx, "g1", 3)
	if err != nil {
		t.Fatalf("RecentReports: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	for i, want := range []int{5, 4, 3} {
		if recs[i].Cycle != want {
			t.Errorf("record %d: cycle = %d, want %d", i, recs[i].Cycle, want)
		}
	}
}
