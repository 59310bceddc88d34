// Package app wires configuration, storage, telemetry and the session
// engine into a running bot process.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown tears
// everything down in order. Tests inject in-memory stores and mock
// providers through the Deps struct; slots left nil are filled with real
// implementations built from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NagataYushi0222/InsightDebateBot/internal/analysis"
	"github.com/NagataYushi0222/InsightDebateBot/internal/config"
	"github.com/NagataYushi0222/InsightDebateBot/internal/observe"
	"github.com/NagataYushi0222/InsightDebateBot/internal/session"
	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
	"github.com/NagataYushi0222/InsightDebateBot/internal/store/postgres"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer/gemini"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer/openai"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

// stopAllTimeout bounds the final analysis cycles run for every live
// session during shutdown.
const stopAllTimeout = 4 * time.Minute

// Deps holds the external dependencies of the application. Platform and
// Delivery come from the Discord bot in main; the store slots and Providers
// may be left nil to have New build them from the config.
type Deps struct {
	Platform audio.Platform
	Delivery analysis.Delivery

	Settings    store.Settings
	Credentials store.Credentials
	Reports     store.Reports

	Providers session.ProviderFactory
}

// App owns all subsystem lifetimes.
type App struct {
	cfg    *config.Config
	deps   Deps
	engine *session.Engine

	metricsSrv *observe.Server

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// New creates an App by wiring all subsystems together.
//
// Initialisation is synchronous: telemetry provider, storage backend
// (PostgreSQL when a DSN is configured, in-memory otherwise), provider
// factory, session engine and the metrics endpoint.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	a := &App{cfg: cfg}

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	a.closers = append(a.closers, otelShutdown)

	checkers, err := a.initStores(ctx, &deps)
	if err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	if deps.Providers == nil {
		deps.Providers = NewProviderFactory(cfg.Analysis.Model)
	}

	a.engine = session.NewEngine(session.EngineConfig{
		Platform:    deps.Platform,
		Settings:    deps.Settings,
		Credentials: deps.Credentials,
		Reports:     deps.Reports,
		Delivery:    deps.Delivery,
		Providers:   deps.Providers,
		Config: session.Config{
			Pipeline: analysis.Config{
				RequestTimeout: cfg.Analysis.RequestTimeout,
				MaxAttempts:    cfg.Analysis.MaxAttempts,
				RetryBaseDelay: cfg.Analysis.RetryBaseDelay,
			},
			MaxSegment:      cfg.Audio.MaxSegment,
			MaxPerSpeaker:   cfg.Audio.MaxPerSpeaker,
			DefaultProvider: cfg.Analysis.Provider,
			DefaultAPIKey:   cfg.Analysis.DefaultAPIKey,
		},
		Metrics: observe.DefaultMetrics(),
	})

	if cfg.Server.MetricsAddr != "" {
		a.metricsSrv = observe.NewServer(cfg.Server.MetricsAddr, checkers...)
	}

	a.deps = deps
	return a, nil
}

// initStores fills the nil store slots in deps. With a configured DSN all
// three are served by one PostgreSQL store; otherwise a shared in-memory
// store backs them, losing settings and keys on restart.
func (a *App) initStores(ctx context.Context, deps *Deps) ([]observe.Checker, error) {
	if deps.Settings != nil && deps.Credentials != nil && deps.Reports != nil {
		return nil, nil
	}

	var checkers []observe.Checker
	if dsn := a.cfg.Storage.PostgresDSN; dsn != "" {
		pg, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error {
			pg.Close()
			return nil
		})
		checkers = append(checkers, observe.Checker{Name: "postgres", Check: pg.Ping})

		if deps.Settings == nil {
			deps.Settings = pg
		}
		if deps.Credentials == nil {
			deps.Credentials = pg
		}
		if deps.Reports == nil {
			deps.Reports = pg
		}
		return checkers, nil
	}

	slog.Warn("no postgres dsn configured, falling back to in-memory storage")
	mem := store.NewMemory()
	if deps.Settings == nil {
		deps.Settings = mem
	}
	if deps.Credentials == nil {
		deps.Credentials = mem
	}
	if deps.Reports == nil {
		deps.Reports = mem
	}
	return nil, nil
}

// Engine exposes the session engine for command registration.
func (a *App) Engine() *session.Engine {
	return a.engine
}

// Settings exposes the effective settings store.
func (a *App) Settings() store.Settings { return a.deps.Settings }

// Credentials exposes the effective credential store.
func (a *App) Credentials() store.Credentials { return a.deps.Credentials }

// Reports exposes the effective report archive.
func (a *App) Reports() store.Reports { return a.deps.Reports }

// Run serves the metrics endpoint and blocks until ctx is cancelled or a
// listener fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.metricsSrv != nil {
		g.Go(a.metricsSrv.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	return g.Wait()
}

// Shutdown stops all live sessions, letting each post its final report,
// then tears down the remaining subsystems in order. Safe to call more
// than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		stopCtx, cancel := context.WithTimeout(ctx, stopAllTimeout)
		defer cancel()
		a.engine.StopAll(stopCtx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
	})
	return shutdownErr
}

// NewProviderFactory builds analysis providers by name. The model override
// from the config applies to whichever service a guild's credential picks.
func NewProviderFactory(model string) session.ProviderFactory {
	return func(ctx context.Context, providerName, apiKey string) (analyzer.Provider, error) {
		switch providerName {
		case "", "gemini":
			return gemini.New(ctx, apiKey, model)
		case "openai":
			return openai.New(apiKey, model)
		default:
			return nil, errors.New("app: unknown analysis provider " + providerName)
		}
	}
}
