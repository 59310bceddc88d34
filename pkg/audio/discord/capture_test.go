package discord

import (
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

var _ audio.Platform = (*Platform)(nil)

// newTestCapture creates a Capture suitable for unit testing without a real
// Discord voice connection. It wires up a fake OpusRecv channel and skips
// the handler registration the real constructor performs.
func newTestCapture(t *testing.T) *Capture {
	t.Helper()
	vc := &discordgo.VoiceConnection{
		OpusRecv: make(chan *discordgo.Packet, 16),
	}
	c := &Capture{
		vc:           vc,
		session:      &discordgo.Session{},
		guildID:      "guild-test",
		frames:       make(chan audio.Frame, frameChannelBuffer),
		ssrcUser:     make(map[uint32]string),
		done:         make(chan struct{}),
		disconnectVC: func() error { return nil },
	}
	go c.recvLoop()
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func TestNewPlatform(t *testing.T) {
	t.Parallel()

	s := &discordgo.Session{}
	p := New(s)
	if p == nil {
		t.Fatal("New returned nil")
	}
	if p.session != s {
		t.Error("session not stored correctly")
	}
}

func TestCapture_DisconnectIdempotent(t *testing.T) {
	t.Parallel()

	c := newTestCapture(t)
	for i := range 3 {
		if err := c.Disconnect(); err != nil {
			t.Fatalf("Disconnect[%d]: unexpected error: %v", i, err)
		}
	}

	// The frame channel must be closed so downstream range loops exit.
	select {
	case _, ok := <-c.Frames():
		if ok {
			t.Fatal("unexpected frame after Disconnect")
		}
	case <-time.After(time.Second):
		t.Fatal("frame channel not closed after Disconnect")
	}
}

func TestCapture_ConcurrentDisconnect(t *testing.T) {
	t.Parallel()

	c := newTestCapture(t)
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			_ = c.Disconnect()
		})
	}
	wg.Wait()
}

// TestCapture_DisconnectWhileReceiving tears the capture down while packets
// are still arriving. The receive loop owns the frame channel, so the
// teardown must never race it into a send on a closed channel, and the
// channel must still end up closed.
func TestCapture_DisconnectWhileReceiving(t *testing.T) {
	t.Parallel()

	c := newTestCapture(t)
	silenceOpus := []byte{0xF8, 0xFF, 0xFE}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		for {
			select {
			case <-stop:
				return
			case c.vc.OpusRecv <- &discordgo.Packet{SSRC: 1, Opus: silenceOpus}:
			default:
			}
		}
	})

	// Let the receive loop pick up some packets, then tear down mid-stream.
	time.Sleep(10 * time.Millisecond)
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Frames():
			if !ok {
				close(stop)
				wg.Wait()
				return
			}
		case <-deadline:
			t.Fatal("frame channel not closed after Disconnect")
		}
	}
}

// TestCapture_RecvDecodes verifies that incoming Opus packets are decoded
// and surface as tagged PCM frames.
func TestCapture_RecvDecodes(t *testing.T) {
	t.Parallel()

	c := newTestCapture(t)

	// Opus silence frame: 0xF8 0xFF 0xFE (3 bytes).
	silenceOpus := []byte{0xF8, 0xFF, 0xFE}
	c.vc.OpusRecv <- &discordgo.Packet{SSRC: 100, Opus: silenceOpus}

	select {
	case frame := <-c.Frames():
		if frame.SampleRate != opusSampleRate {
			t.Errorf("SampleRate = %d, want %d", frame.SampleRate, opusSampleRate)
		}
		if frame.Channels != opusChannels {
			t.Errorf("Channels = %d, want %d", frame.Channels, opusChannels)
		}
		if len(frame.Data) == 0 {
			t.Error("frame data is empty")
		}
		// No speaking update seen yet, so the speaker is the SSRC placeholder.
		if frame.SpeakerID != "ssrc-100" {
			t.Errorf("SpeakerID = %q, want %q", frame.SpeakerID, "ssrc-100")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded frame")
	}
}

// TestCapture_SpeakingUpdateBindsUser verifies that frames carry the user ID
// once a speaking update has announced the SSRC binding.
func TestCapture_SpeakingUpdateBindsUser(t *testing.T) {
	t.Parallel()

	c := newTestCapture(t)

	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{
		UserID:   "user-42",
		SSRC:     200,
		Speaking: true,
	})

	silenceOpus := []byte{0xF8, 0xFF, 0xFE}
	c.vc.OpusRecv <- &discordgo.Packet{SSRC: 200, Opus: silenceOpus}

	select {
	case frame := <-c.Frames():
		if frame.SpeakerID != "user-42" {
			t.Errorf("SpeakerID = %q, want %q", frame.SpeakerID, "user-42")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded frame")
	}

	// A nil or empty update must not clobber existing bindings.
	c.handleSpeakingUpdate(nil, nil)
	c.handleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{SSRC: 200})
	if got := c.speakerFor(200); got != "user-42" {
		t.Errorf("speakerFor(200) = %q after empty updates, want %q", got, "user-42")
	}
}

// TestCapture_ClosedRecvEndsCapture verifies that losing the voice
// connection closes the frame channel.
func TestCapture_ClosedRecvEndsCapture(t *testing.T) {
	t.Parallel()

	c := newTestCapture(t)
	close(c.vc.OpusRecv)

	select {
	case _, ok := <-c.Frames():
		if ok {
			t.Fatal("expected closed frame channel, got a frame")
		}
	case <-time.After(time.Second):
		t.Fatal("frame channel not closed after OpusRecv closed")
	}
}
