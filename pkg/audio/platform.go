// Package audio defines the capture-side interfaces and PCM utilities for
// InsightDebateBot.
//
// The two primary abstractions are:
//
//   - [Platform] joins a voice channel and returns a [Capture].
//   - [Capture] is an active listen-only presence on that channel, delivering
//     decoded per-speaker PCM frames on a single fan-in channel.
//
// Implementations live in platform-specific adapter packages (currently
// audio/discord). The interfaces are intentionally narrow so that the session
// engine stays decoupled from provider details, and so tests can substitute
// the mock package.
package audio

import "context"

// Capture represents an active listen-only session on a voice channel.
//
// A Capture is obtained from [Platform.Connect] and remains valid until
// [Capture.Disconnect] is called or the platform drops the connection.
//
// Implementations must be safe for concurrent use.
type Capture interface {
	// Frames returns the channel on which decoded audio arrives, tagged by
	// speaker. Frames from one speaker preserve their arrival order; no
	// ordering is guaranteed across speakers. The channel is closed when the
	// capture ends, either through Disconnect or because the platform lost
	// the voice connection. Consumers treat the close as the disconnect
	// signal.
	Frames() <-chan Frame

	// SpeakerName resolves a speaker ID to a human-readable display name.
	// Unresolvable IDs yield a stable fallback, never an empty string.
	SpeakerName(speakerID string) string

	// Disconnect leaves the voice channel and closes the Frames channel.
	// Safe to call more than once; subsequent calls are no-ops returning nil.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel identified by channelID in the given
	// guild and returns an active [Capture]. The supplied ctx governs the
	// connection attempt only; once connected, the Capture lives until its
	// Disconnect is called.
	Connect(ctx context.Context, guildID, channelID string) (Capture, error)
}
