// Package analyzer defines the Provider interface for the external analysis
// service that turns buffered voice-chat audio into a discussion report.
//
// A provider wraps a remote multimodal model API (Gemini, OpenAI) and exposes
// a single blocking Analyze call. Failures are classified into [Error] kinds
// so that the analysis pipeline can decide between retrying, giving up for
// the cycle, and asking the user to fix their credentials.
//
// Implementations must be safe for concurrent use.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode selects the analysis style for a session.
type Mode string

const (
	// ModeDebate produces a disagreement-focused report with per-claim
	// fact-check annotations.
	ModeDebate Mode = "debate"

	// ModeSummary produces a condensed narrative of the discussion without
	// fact-checking.
	ModeSummary Mode = "summary"
)

// IsValid reports whether m is a recognised analysis mode.
func (m Mode) IsValid() bool {
	return m == ModeDebate || m == ModeSummary
}

// SpeakerAudio is one speaker's contribution to an analysis request.
type SpeakerAudio struct {
	// SpeakerID is the platform identifier of the speaker.
	SpeakerID string

	// SpeakerName is the display name presented to the model for
	// attribution.
	SpeakerName string

	// WAV is the speaker's audio for this cycle, WAV-wrapped 16 kHz mono PCM.
	WAV []byte

	// Duration is the playback length of the audio.
	Duration time.Duration
}

// Request carries everything the analysis service needs for one cycle.
type Request struct {
	// Mode selects the report style.
	Mode Mode

	// Speakers holds one entry per participant with speech this cycle.
	// Must be non-empty; empty cycles are filtered out before a request is
	// built.
	Speakers []SpeakerAudio

	// Context is the bounded digest of prior reports, giving the model
	// continuity across cycles. May be empty on the first cycle.
	Context string

	// FactCheck asks the service to ground factual statements against live
	// search and annotate each extracted claim. Only set in debate mode.
	FactCheck bool
}

// Verdict is the outcome of fact-checking one extracted claim.
type Verdict string

const (
	VerdictVerified     Verdict = "verified"
	VerdictDisputed     Verdict = "disputed"
	VerdictUnverifiable Verdict = "unverifiable"
)

// Claim is a single fact-checked statement extracted from the discussion.
type Claim struct {
	// Text is the claim as the model restated it, with speaker attribution.
	Text string

	// Verdict is the fact-check outcome.
	Verdict Verdict
}

// Result is the analysis service's answer for one cycle.
type Result struct {
	// Text is the produced report body.
	Text string

	// Claims holds per-claim fact-check annotations. Empty unless the
	// request set FactCheck.
	Claims []Claim
}

// Provider is the abstraction over the external analysis service.
//
// Analyze blocks for the duration of the remote call; callers bound it with
// a context deadline. Errors should be wrapped in [Error] so the pipeline
// can classify them; unclassified errors are treated as transient.
type Provider interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// ─── Error classification ─────────────────────────────────────────────────────

// ErrorKind classifies an analysis-service failure for retry handling.
type ErrorKind int

const (
	// KindTransient covers timeouts, rate limits, and 5xx-equivalent
	// failures. Worth retrying with backoff.
	KindTransient ErrorKind = iota

	// KindPermanent covers malformed requests and invalid responses.
	// Retrying cannot help within the same cycle.
	KindPermanent

	// KindCredential covers rejected or missing API keys. Retrying is
	// pointless until the user re-authenticates.
	KindCredential
)

// String returns the human-readable name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindCredential:
		return "credential"
	default:
		return "unknown"
	}
}

// Error is a classified analysis-service failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("analyzer: %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(err error) *Error { return &Error{Kind: KindTransient, Err: err} }

// Permanent wraps err as a non-retryable failure.
func Permanent(err error) *Error { return &Error{Kind: KindPermanent, Err: err} }

// Credential wraps err as an authentication failure.
func Credential(err error) *Error { return &Error{Kind: KindCredential, Err: err} }

// KindOf extracts the classification from err. Unclassified errors are
// reported as [KindTransient]: a blip the pipeline cannot name should not
// permanently fail the cycle without at least one retry.
func KindOf(err error) ErrorKind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}
