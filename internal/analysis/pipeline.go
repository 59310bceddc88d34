package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/internal/buffer"
	"github.com/NagataYushi0222/InsightDebateBot/internal/observe"
	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

// Outcome is what one cycle produced. Every run yields exactly one outcome.
type Outcome int

const (
	// OutcomeReported means a report was produced and delivered.
	OutcomeReported Outcome = iota

	// OutcomeEmpty means no speech was buffered; nothing was sent to the
	// analysis service and nothing was posted.
	OutcomeEmpty

	// OutcomeFailed means the service call or delivery failed after
	// exhausting retries. The drained audio is gone; the next cycle starts
	// fresh.
	OutcomeFailed
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeReported:
		return observe.OutcomeReported
	case OutcomeEmpty:
		return observe.OutcomeEmpty
	case OutcomeFailed:
		return observe.OutcomeFailed
	default:
		return "unknown"
	}
}

// Delivery posts an assembled report to the session's text channel.
type Delivery interface {
	Deliver(ctx context.Context, rep Report) error

	// Notify posts a short status message to the session's text channel,
	// used for cycle-failure notices.
	Notify(ctx context.Context, channelID, text string) error
}

// NameResolver maps a speaker ID to a display name.
type NameResolver func(speakerID string) string

// CycleSpec describes one cycle run.
type CycleSpec struct {
	GuildID   string
	ChannelID string

	// Cycle is the 1-based sequence number within the session.
	Cycle int

	Mode      analyzer.Mode
	FactCheck bool

	// Final marks the session wrap-up cycle run during Stop.
	Final bool

	// Trigger is "interval" or "manual", for metrics and logs.
	Trigger string
}

// Config tunes the pipeline.
type Config struct {
	// ProviderName labels metrics, e.g. "gemini".
	ProviderName string

	// RequestTimeout bounds one analysis call including retries' individual
	// calls.
	RequestTimeout time.Duration

	// MaxAttempts and RetryBaseDelay control the transient-failure retry
	// loop.
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Pipeline executes analysis cycles for one session: drain, convert, call
// the service, assemble, deliver, archive. It owns no goroutines; the
// session scheduler decides when Run is called and guarantees one run at a
// time.
type Pipeline struct {
	provider analyzer.Provider
	buf      *buffer.Buffer
	history  *History
	delivery Delivery
	archive  store.Reports
	names    NameResolver
	cfg      Config
	metrics  *observe.Metrics
	log      *slog.Logger

	sleep sleepFunc
}

// New creates a pipeline. archive may be nil to disable the report archive;
// names may be nil to fall back to raw speaker IDs.
func New(provider analyzer.Provider, buf *buffer.Buffer, delivery Delivery, archive store.Reports, names NameResolver, cfg Config, metrics *observe.Metrics, log *slog.Logger) *Pipeline {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if names == nil {
		names = func(id string) string { return id }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		provider: provider,
		buf:      buf,
		history:  NewHistory(),
		delivery: delivery,
		archive:  archive,
		names:    names,
		cfg:      cfg,
		metrics:  metrics,
		log:      log,
		sleep:    sleepCtx,
	}
}

// History exposes the continuity digest, mainly for tests.
func (p *Pipeline) History() *History { return p.history }

// Run executes one cycle and returns its outcome. The returned error is nil
// for OutcomeReported and OutcomeEmpty; for OutcomeFailed it carries the
// classified cause.
func (p *Pipeline) Run(ctx context.Context, spec CycleSpec) (Outcome, error) {
	started := time.Now()
	outcome, err := p.run(ctx, spec)
	if p.metrics != nil {
		p.metrics.RecordCycle(ctx, outcome.String(), spec.Trigger, time.Since(started))
	}
	return outcome, err
}

func (p *Pipeline) run(ctx context.Context, spec CycleSpec) (Outcome, error) {
	log := p.log.With("guild_id", spec.GuildID, "cycle", spec.Cycle, "trigger", spec.Trigger)

	stats := p.buf.Stats()
	if p.metrics != nil && stats.Dropped > 0 {
		p.metrics.DroppedAudio.Add(ctx, stats.Dropped.Seconds())
	}

	segments := p.buf.Drain()
	if len(segments) == 0 {
		log.Debug("cycle skipped, no buffered speech")
		return OutcomeEmpty, nil
	}

	req, speakers, audioLen := p.buildRequest(spec, segments)
	log.Info("running analysis cycle",
		"speakers", len(speakers),
		"audio", audioLen.Round(time.Second),
		"mode", spec.Mode,
		"final", spec.Final,
	)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	analyzeStart := time.Now()
	res, err := retryAnalyze(callCtx, p.provider, req, p.cfg.MaxAttempts, p.cfg.RetryBaseDelay, p.sleep, func(attempt int, err error) {
		log.Warn("analysis call failed, retrying", "attempt", attempt, "error", err)
		if p.metrics != nil {
			p.metrics.AnalyzeRetries.Add(ctx, 1)
		}
	})
	if p.metrics != nil {
		status := "ok"
		if err != nil {
			status = analyzer.KindOf(err).String()
		}
		p.metrics.RecordAnalyze(ctx, p.cfg.ProviderName, status, time.Since(analyzeStart))
	}
	if err != nil {
		log.Error("analysis cycle failed", "kind", analyzer.KindOf(err), "error", err)
		p.notifyFailure(ctx, spec, err, log)
		return OutcomeFailed, err
	}

	rep := Report{
		GuildID:     spec.GuildID,
		ChannelID:   spec.ChannelID,
		Cycle:       spec.Cycle,
		Mode:        spec.Mode,
		Final:       spec.Final,
		Trigger:     spec.Trigger,
		Text:        assembleReport(spec.Cycle, spec.Mode, spec.Final, speakers, audioLen, res),
		Claims:      res.Claims,
		Speakers:    speakers,
		Audio:       audioLen,
		GeneratedAt: time.Now(),
	}

	if err := p.delivery.Deliver(ctx, rep); err != nil {
		log.Error("report delivery failed", "error", err)
		return OutcomeFailed, fmt.Errorf("deliver report: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordReport(ctx, string(spec.Mode), spec.Final)
	}

	p.history.Append(res.Text)
	p.archiveReport(ctx, rep, log)

	log.Info("analysis cycle reported", "claims", len(res.Claims))
	return OutcomeReported, nil
}

// buildRequest converts drained segments into an analysis request: downmix
// and resample each segment's PCM to the analysis format, wrap it in WAV,
// and attach the continuity digest. Segments are ordered by speaker name so
// requests are deterministic; a speaker with several force-closed segments
// keeps them in arrival order.
func (p *Pipeline) buildRequest(spec CycleSpec, segments []buffer.Segment) (analyzer.Request, []string, time.Duration) {
	sort.SliceStable(segments, func(i, j int) bool {
		return p.names(segments[i].SpeakerID) < p.names(segments[j].SpeakerID)
	})

	req := analyzer.Request{
		Mode:      spec.Mode,
		Context:   p.history.Digest(),
		FactCheck: spec.FactCheck && spec.Mode == analyzer.ModeDebate,
	}

	var (
		speakers []string
		seen     = make(map[string]bool)
		audioLen time.Duration
	)
	for _, seg := range segments {
		name := p.names(seg.SpeakerID)
		pcm := audio.Convert(seg.PCM, seg.Format, audio.AnalysisFormat)
		req.Speakers = append(req.Speakers, analyzer.SpeakerAudio{
			SpeakerID:   seg.SpeakerID,
			SpeakerName: name,
			WAV:         audio.EncodeWAV(pcm, audio.AnalysisFormat.SampleRate, audio.AnalysisFormat.Channels),
			Duration:    seg.Duration,
		})
		if !seen[name] {
			seen[name] = true
			speakers = append(speakers, name)
		}
		audioLen += seg.Duration
	}
	return req, speakers, audioLen
}

// notifyFailure posts the cycle's failure notice. The session stays active,
// so the notice tells users what happens next; credential failures get a
// distinct reauthenticate message. Notice delivery failures are logged only.
func (p *Pipeline) notifyFailure(ctx context.Context, spec CycleSpec, cause error, log *slog.Logger) {
	var text string
	switch analyzer.KindOf(cause) {
	case analyzer.KindCredential:
		text = "⚠️ Analysis failed: the analysis service rejected the API key. Re-register it with `/debate-key set`."
	case analyzer.KindPermanent:
		text = "⚠️ Analysis failed: the analysis service rejected this cycle's request. The session stays active."
	default:
		text = "⚠️ Analysis failed after repeated attempts (service unavailable or rate limited). The session stays active and the next cycle will try again."
	}
	if err := p.delivery.Notify(ctx, spec.ChannelID, text); err != nil {
		log.Warn("failure notice delivery failed", "error", err)
	}
}

// archiveReport persists the report. Archive failures are logged, not
// propagated; the report already reached the channel.
func (p *Pipeline) archiveReport(ctx context.Context, rep Report, log *slog.Logger) {
	if p.archive == nil {
		return
	}
	err := p.archive.SaveReport(ctx, store.ReportRecord{
		GuildID:   rep.GuildID,
		ChannelID: rep.ChannelID,
		Cycle:     rep.Cycle,
		Mode:      rep.Mode,
		Final:     rep.Final,
		Text:      rep.Text,
		Claims:    len(rep.Claims),
		CreatedAt: rep.GeneratedAt,
	})
	if err != nil {
		log.Warn("report archive failed", "error", err)
	}
}
