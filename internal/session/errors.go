package session

import "errors"

// Command-level errors. The command layer maps these onto user-facing
// replies, so the messages stay short and free of internal detail.
var (
	// ErrAlreadyActive is returned by Start when the guild already has a
	// recording session.
	ErrAlreadyActive = errors.New("a session is already active in this guild")

	// ErrNotActive is returned by Stop, TriggerNow and Status-changing
	// operations when the guild has no recording session.
	ErrNotActive = errors.New("no active session in this guild")

	// ErrNoCredential is returned by Start when the guild has no usable
	// analysis-service API key.
	ErrNoCredential = errors.New("no analysis API key registered for this guild")

	// ErrBusy is returned by TriggerNow when an analysis cycle is already
	// in flight. Manual triggers coalesce instead of queueing.
	ErrBusy = errors.New("an analysis cycle is already running")
)
