// Package session owns the voice-session lifecycle: one recording session
// per guild, a periodic cycle scheduler, and the state machine that ties
// audio capture to the analysis pipeline.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/internal/analysis"
	"github.com/NagataYushi0222/InsightDebateBot/internal/buffer"
	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

// State is a session's lifecycle phase. A guild with no Session is Idle.
type State int32

const (
	// StateRecording means audio is being captured and cycles run on the
	// configured interval.
	StateRecording State = iota + 1

	// StateStopping means teardown has begun: the scheduler is halting and
	// the final cycle runs. No new cycles or triggers are accepted.
	StateStopping
)

// String returns the lifecycle phase name.
func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// finalCycleTimeout bounds the wrap-up cycle during forced teardown, where
// no caller context exists.
const finalCycleTimeout = 3 * time.Minute

// Session is one guild's active recording session.
type Session struct {
	guildID        string
	voiceChannelID string
	textChannelID  string
	startedAt      time.Time

	capture  audio.Capture
	buf      *buffer.Buffer
	pipeline *analysis.Pipeline
	settings store.Settings
	sched    *scheduler
	log      *slog.Logger

	state atomic.Int32

	// onClosed deregisters the session from the engine exactly once,
	// whether teardown was requested or forced by a transport disconnect.
	onClosed  func(*Session)
	closeOnce sync.Once

	ingestDone chan struct{}
}

// Info is a point-in-time snapshot for status replies.
type Info struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	State          State
	StartedAt      time.Time
	Reports        int
	Buffered       buffer.Stats
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Info returns a status snapshot.
func (s *Session) Info() Info {
	return Info{
		GuildID:        s.guildID,
		VoiceChannelID: s.voiceChannelID,
		TextChannelID:  s.textChannelID,
		State:          s.State(),
		StartedAt:      s.startedAt,
		Reports:        s.pipeline.History().Cycles(),
		Buffered:       s.buf.Stats(),
	}
}

// start launches the ingest loop and the cycle scheduler.
func (s *Session) start(ctx context.Context) {
	s.state.Store(int32(StateRecording))
	go s.ingestLoop()
	s.sched.start(ctx)
}

// ingestLoop moves captured frames into the buffer until the capture stream
// closes. A close while still recording means the voice transport dropped;
// that forces teardown with a best-effort final report.
func (s *Session) ingestLoop() {
	for f := range s.capture.Frames() {
		s.buf.Ingest(f)
	}
	close(s.ingestDone)

	if State(s.state.Load()) != StateRecording {
		return
	}
	s.log.Warn("voice capture closed unexpectedly, forcing session teardown")

	ctx, cancel := context.WithTimeout(context.Background(), finalCycleTimeout)
	defer cancel()
	if err := s.stop(ctx); err != nil {
		s.log.Error("forced teardown failed", "error", err)
	}
}

// triggerNow runs one out-of-band cycle. ErrNotActive unless recording,
// ErrBusy when a cycle is already in flight.
func (s *Session) triggerNow(ctx context.Context) error {
	if State(s.state.Load()) != StateRecording {
		return ErrNotActive
	}
	return s.sched.runNow(ctx)
}

// stop transitions Recording to Stopping, halts the scheduler, runs the
// final cycle, disconnects the capture, and deregisters the session.
// Returns ErrNotActive when teardown has already begun.
func (s *Session) stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRecording), int32(StateStopping)) {
		return ErrNotActive
	}
	s.log.Info("stopping session")

	// Disconnect first so no new audio lands after the final drain. The
	// ingest loop sees the stream close and exits; its forced-teardown path
	// is disarmed by the state swap above.
	if err := s.capture.Disconnect(); err != nil {
		s.log.Warn("voice disconnect failed", "error", err)
	}
	s.sched.stop()
	<-s.ingestDone

	// Final cycle. An in-flight periodic cycle has already finished because
	// the scheduler loop exited; the exclusive lock also serialises against
	// a concurrent manual trigger.
	s.sched.runExclusive(func() {
		spec := s.cycleSpec(ctx, "stop")
		spec.Final = true
		if _, err := s.pipeline.Run(ctx, spec); err != nil {
			s.log.Error("final analysis cycle failed", "error", err)
		}
	})

	s.closeOnce.Do(func() { s.onClosed(s) })
	s.log.Info("session stopped", "reports", s.pipeline.History().Cycles())
	return nil
}

// runCycle is the scheduler's work function for periodic and manual runs.
func (s *Session) runCycle(ctx context.Context, trigger string) {
	if _, err := s.pipeline.Run(ctx, s.cycleSpec(ctx, trigger)); err != nil {
		// Already logged with classification by the pipeline.
		return
	}
}

// cycleSpec assembles the next cycle's parameters, re-reading the guild
// settings so mode and fact-check changes apply without a restart. Report
// numbers count delivered reports, so empty and failed cycles do not consume
// one.
func (s *Session) cycleSpec(ctx context.Context, trigger string) analysis.CycleSpec {
	settings, err := s.settings.Settings(ctx, s.guildID)
	if err != nil {
		s.log.Warn("settings read failed, using defaults", "error", err)
		settings = store.DefaultSettings(s.guildID)
	}
	return analysis.CycleSpec{
		GuildID:   s.guildID,
		ChannelID: s.textChannelID,
		Cycle:     s.pipeline.History().Cycles() + 1,
		Mode:      settings.Mode,
		FactCheck: settings.FactCheck,
		Trigger:   trigger,
	}
}

// intervalFor reads the current cycle interval from the settings store,
// falling back to the default on read failure or a missing value. Lower
// bounds are enforced where intervals are set, not here.
func (s *Session) intervalFor(ctx context.Context) time.Duration {
	settings, err := s.settings.Settings(ctx, s.guildID)
	if err != nil || settings.Interval <= 0 {
		if err != nil {
			s.log.Warn("settings read failed, using default interval", "error", err)
		}
		return store.DefaultInterval
	}
	return settings.Interval
}
