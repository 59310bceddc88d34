package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/internal/analysis"
	"github.com/NagataYushi0222/InsightDebateBot/internal/buffer"
	"github.com/NagataYushi0222/InsightDebateBot/internal/observe"
	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

// ProviderFactory builds an analysis provider for a session from the
// guild's credential. Called once per session start.
type ProviderFactory func(ctx context.Context, providerName, apiKey string) (analyzer.Provider, error)

// Config tunes sessions created by the engine.
type Config struct {
	// Pipeline is the per-cycle configuration. ProviderName is filled in
	// per session from the credential.
	Pipeline analysis.Config

	// MaxSegment and MaxPerSpeaker bound the capture buffer.
	MaxSegment    time.Duration
	MaxPerSpeaker time.Duration

	// DefaultProvider names the analysis service used when a guild's
	// credential does not pick one, e.g. "gemini".
	DefaultProvider string

	// DefaultAPIKey, when non-empty, serves guilds without their own key.
	DefaultAPIKey string
}

// EngineConfig wires the engine's dependencies.
type EngineConfig struct {
	Platform    audio.Platform
	Settings    store.Settings
	Credentials store.Credentials
	Reports     store.Reports
	Delivery    analysis.Delivery
	Providers   ProviderFactory
	Config      Config
	Metrics     *observe.Metrics
	Log         *slog.Logger
}

// Engine owns all active sessions, at most one per guild, and is the sole
// entry point for lifecycle commands. Safe for concurrent use.
type Engine struct {
	platform    audio.Platform
	settings    store.Settings
	credentials store.Credentials
	reports     store.Reports
	delivery    analysis.Delivery
	providers   ProviderFactory
	cfg         Config
	metrics     *observe.Metrics
	log         *slog.Logger

	mu sync.Mutex
	// sessions maps guild ID to its session. A nil value reserves the slot
	// while Start is still connecting, keeping check-and-insert atomic
	// without holding the lock across network calls.
	sessions map[string]*Session
}

// NewEngine creates an engine with no active sessions.
func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		platform:    cfg.Platform,
		settings:    cfg.Settings,
		credentials: cfg.Credentials,
		reports:     cfg.Reports,
		delivery:    cfg.Delivery,
		providers:   cfg.Providers,
		cfg:         cfg.Config,
		metrics:     cfg.Metrics,
		log:         log,
		sessions:    make(map[string]*Session),
	}
}

// StartRequest carries everything needed to begin recording.
type StartRequest struct {
	GuildID        string
	VoiceChannelID string

	// TextChannelID is where reports are delivered.
	TextChannelID string

	// InvokerID is the user who issued the command, for the audit log line.
	InvokerID string
}

// Start begins a recording session for the guild. Returns ErrAlreadyActive
// when one exists, ErrNoCredential when no usable API key is available.
func (e *Engine) Start(ctx context.Context, req StartRequest) error {
	log := e.log.With("guild_id", req.GuildID)

	e.mu.Lock()
	if _, ok := e.sessions[req.GuildID]; ok {
		e.mu.Unlock()
		return ErrAlreadyActive
	}
	e.sessions[req.GuildID] = nil
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		delete(e.sessions, req.GuildID)
		e.mu.Unlock()
	}

	providerName, apiKey, err := e.credentialFor(ctx, req.GuildID)
	if err != nil {
		release()
		return err
	}
	provider, err := e.providers(ctx, providerName, apiKey)
	if err != nil {
		release()
		return fmt.Errorf("create analysis provider: %w", err)
	}

	capture, err := e.platform.Connect(ctx, req.GuildID, req.VoiceChannelID)
	if err != nil {
		release()
		return fmt.Errorf("join voice channel: %w", err)
	}

	buf := buffer.New(e.cfg.MaxSegment, e.cfg.MaxPerSpeaker)
	pcfg := e.cfg.Pipeline
	pcfg.ProviderName = providerName
	pipeline := analysis.New(provider, buf, e.delivery, e.reports, capture.SpeakerName, pcfg, e.metrics, log)

	sess := &Session{
		guildID:        req.GuildID,
		voiceChannelID: req.VoiceChannelID,
		textChannelID:  req.TextChannelID,
		startedAt:      time.Now(),
		capture:        capture,
		buf:            buf,
		pipeline:       pipeline,
		settings:       e.settings,
		log:            log,
		onClosed:       e.remove,
		ingestDone:     make(chan struct{}),
	}
	sess.sched = newScheduler(sess.intervalFor, sess.runCycle, func() {
		if e.metrics != nil {
			e.metrics.RecordCycle(context.Background(), observe.OutcomeSkipped, "interval", 0)
		}
	}, log)

	e.mu.Lock()
	e.sessions[req.GuildID] = sess
	e.mu.Unlock()

	// The session outlives the command that started it; only Stop or a
	// transport disconnect ends it.
	sess.start(context.WithoutCancel(ctx))
	if e.metrics != nil {
		e.metrics.ActiveSessions.Add(ctx, 1)
	}
	log.Info("session started",
		"voice_channel_id", req.VoiceChannelID,
		"text_channel_id", req.TextChannelID,
		"invoker_id", req.InvokerID,
		"provider", providerName,
	)
	return nil
}

// Stop ends the guild's session: final cycle, voice disconnect, deregister.
func (e *Engine) Stop(ctx context.Context, guildID string) error {
	sess, ok := e.lookup(guildID)
	if !ok {
		return ErrNotActive
	}
	return sess.stop(ctx)
}

// TriggerNow runs one out-of-band analysis cycle for the guild.
func (e *Engine) TriggerNow(ctx context.Context, guildID string) error {
	sess, ok := e.lookup(guildID)
	if !ok {
		return ErrNotActive
	}
	return sess.triggerNow(ctx)
}

// SessionInfo returns a status snapshot for the guild's session.
func (e *Engine) SessionInfo(guildID string) (Info, bool) {
	sess, ok := e.lookup(guildID)
	if !ok {
		return Info{}, false
	}
	return sess.Info(), true
}

// ActiveSessions returns the number of live sessions, reservations included.
func (e *Engine) ActiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Active returns a status snapshot of every live session, for diagnostics.
// Slots still reserved by an in-progress Start are excluded.
func (e *Engine) Active() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Info, 0, len(e.sessions))
	for _, s := range e.sessions {
		if s != nil {
			out = append(out, s.Info())
		}
	}
	return out
}

// StopAll ends every active session. Used during shutdown; errors are
// logged, not returned, so one stuck session cannot block the rest.
func (e *Engine) StopAll(ctx context.Context) {
	e.mu.Lock()
	all := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		if s != nil {
			all = append(all, s)
		}
	}
	e.mu.Unlock()

	for _, s := range all {
		if err := s.stop(ctx); err != nil && !errors.Is(err, ErrNotActive) {
			e.log.Error("shutdown: session stop failed", "guild_id", s.guildID, "error", err)
		}
	}
}

func (e *Engine) lookup(guildID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[guildID]
	if !ok || sess == nil {
		return nil, false
	}
	return sess, true
}

// remove deregisters a closed session. Guarded against a stale pointer in
// case the guild already started a new session.
func (e *Engine) remove(sess *Session) {
	e.mu.Lock()
	if cur, ok := e.sessions[sess.guildID]; ok && cur == sess {
		delete(e.sessions, sess.guildID)
	}
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.ActiveSessions.Add(context.Background(), -1)
	}
}

// credentialFor resolves the analysis provider and API key for a guild:
// the guild's own key first, then the shared default if configured.
func (e *Engine) credentialFor(ctx context.Context, guildID string) (providerName, apiKey string, err error) {
	cred, err := e.credentials.Key(ctx, guildID)
	switch {
	case err == nil:
		name := cred.Provider
		if name == "" {
			name = e.cfg.DefaultProvider
		}
		return name, cred.Key, nil
	case errors.Is(err, store.ErrNotFound):
		if e.cfg.DefaultAPIKey != "" {
			return e.cfg.DefaultProvider, e.cfg.DefaultAPIKey, nil
		}
		return "", "", ErrNoCredential
	default:
		return "", "", fmt.Errorf("credential lookup: %w", err)
	}
}
