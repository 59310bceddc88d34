package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/internal/analysis"
	"github.com/NagataYushi0222/InsightDebateBot/internal/app"
	"github.com/NagataYushi0222/InsightDebateBot/internal/config"
	"github.com/NagataYushi0222/InsightDebateBot/internal/session"
	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
	analyzermock "github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer/mock"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
	audiomock "github.com/NagataYushi0222/InsightDebateBot/pkg/audio/mock"
)

// memoDelivery records delivered reports.
type memoDelivery struct {
	mu      sync.Mutex
	reports []analysis.Report
}

func (d *memoDelivery) Deliver(_ context.Context, rep analysis.Report) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports = append(d.reports, rep)
	return nil
}

func (d *memoDelivery) Notify(_ context.Context, _, _ string) error {
	return nil
}

func (d *memoDelivery) delivered() []analysis.Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]analysis.Report(nil), d.reports...)
}

// testConfig disables the metrics listener so parallel tests do not fight
// over a port.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.MetricsAddr = ""
	return cfg
}

func testDeps(mem *store.Memory, delivery analysis.Delivery, provider analyzer.Provider) app.Deps {
	return app.Deps{
		Platform:    &audiomock.Platform{ConnectResult: audiomock.NewCapture()},
		Delivery:    delivery,
		Settings:    mem,
		Credentials: mem,
		Reports:     mem,
		Providers: func(context.Context, string, string) (analyzer.Provider, error) {
			return provider, nil
		},
	}
}

func TestNewWithMocks(t *testing.T) {
	t.Parallel()

	application, err := app.New(t.Context(), testConfig(), testDeps(store.NewMemory(), &memoDelivery{}, &analyzermock.Provider{}))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if application.Engine() == nil {
		t.Fatal("Engine() returned nil")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	application, err := app.New(t.Context(), testConfig(), testDeps(store.NewMemory(), &memoDelivery{}, &analyzermock.Provider{}))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func TestShutdownStopsLiveSessions(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	if err := mem.SetKey(context.Background(), "g1", "gemini", "sk-test"); err != nil {
		t.Fatalf("SetKey() error: %v", err)
	}

	capture := audiomock.NewCapture()
	delivery := &memoDelivery{}
	deps := testDeps(mem, delivery, &analyzermock.Provider{
		Result: &analyzer.Result{Text: "closing remarks"},
	})
	deps.Platform = &audiomock.Platform{ConnectResult: capture}

	application, err := app.New(t.Context(), testConfig(), deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	err = application.Engine().Start(context.Background(), session.StartRequest{
		GuildID:        "g1",
		VoiceChannelID: "vc",
		TextChannelID:  "tc",
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	capture.Emit(audio.Frame{
		SpeakerID:  "alice",
		Data:       make([]byte, audio.CaptureSampleRate*audio.CaptureChannels*2),
		SampleRate: audio.CaptureSampleRate,
		Channels:   audio.CaptureChannels,
		Timestamp:  time.Now(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if n := application.Engine().ActiveSessions(); n != 0 {
		t.Errorf("ActiveSessions() = %d after shutdown, want 0", n)
	}
	reports := delivery.delivered()
	if len(reports) != 1 {
		t.Fatalf("delivered %d reports during shutdown, want 1", len(reports))
	}
	if !reports[0].Final {
		t.Error("shutdown report not marked final")
	}

	// Shutdown is idempotent.
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
}

func TestProviderFactoryRejectsUnknown(t *testing.T) {
	t.Parallel()

	factory := app.NewProviderFactory("")
	_, err := factory(t.Context(), "acme-ai", "sk-test")
	if err == nil {
		t.Fatal("expected error for unknown provider name")
	}
	if !strings.Contains(err.Error(), "acme-ai") {
		t.Errorf("error %q does not name the provider", err)
	}
}
