// Package mock provides in-memory mock implementations of [audio.Platform]
// and [audio.Capture] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and expose exported
// fields the test can set to control return values.
//
// Typical usage:
//
//	cap := mock.NewCapture()
//	platform := &mock.Platform{ConnectResult: cap}
//	got, err := platform.Connect(ctx, "guild-1", "channel-42")
//	cap.Emit(audio.Frame{SpeakerID: "user-1", Data: pcm})
//	cap.Disconnect()
package mock

import (
	"context"
	"sync"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is a mock implementation of [audio.Capture]. Use [Capture.Emit] to
// inject frames and [Capture.Disconnect] to simulate the capture ending.
type Capture struct {
	mu sync.Mutex

	// Names maps speaker IDs to display names returned by SpeakerName.
	// IDs absent from the map fall back to the ID itself.
	Names map[string]string

	// DisconnectError is returned by the first Disconnect call.
	DisconnectError error

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int

	frames chan audio.Frame
	closed bool
}

// NewCapture creates a Capture with a buffered frame channel.
func NewCapture() *Capture {
	return &Capture{
		frames: make(chan audio.Frame, 256),
		Names:  make(map[string]string),
	}
}

// Frames implements [audio.Capture].
func (c *Capture) Frames() <-chan audio.Frame {
	return c.frames
}

// SpeakerName implements [audio.Capture].
func (c *Capture) SpeakerName(speakerID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.Names[speakerID]; ok {
		return name
	}
	return speakerID
}

// Disconnect implements [audio.Capture]. The first call closes the frame
// channel; subsequent calls are no-ops returning nil.
func (c *Capture) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.frames)
	return c.DisconnectError
}

// Emit injects a frame into the capture stream. Panics if called after
// Disconnect, mirroring a real adapter bug a test should catch.
func (c *Capture) Emit(f audio.Frame) {
	c.frames <- f
}

// ─── Platform ─────────────────────────────────────────────────────────────────

// ConnectCall records the arguments of a single [Platform.Connect] invocation.
type ConnectCall struct {
	GuildID   string
	ChannelID string
}

// Platform is a mock implementation of [audio.Platform].
type Platform struct {
	mu sync.Mutex

	// ConnectResult is the [audio.Capture] returned by Connect.
	ConnectResult audio.Capture

	// ConnectError is the error returned by Connect.
	ConnectError error

	// ConnectCalls records all Connect invocations.
	ConnectCalls []ConnectCall
}

// Connect implements [audio.Platform].
func (p *Platform) Connect(_ context.Context, guildID, channelID string) (audio.Capture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{GuildID: guildID, ChannelID: channelID})
	return p.ConnectResult, p.ConnectError
}
