package discord

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Capture = (*Capture)(nil)

// frameChannelBuffer absorbs short consumer stalls; the receive loop drops
// frames rather than block the voice websocket reader when the buffer fills.
const frameChannelBuffer = 256

// Capture wraps a discordgo.VoiceConnection and adapts it to the
// [audio.Capture] interface. Incoming Opus packets are demuxed by SSRC,
// decoded to PCM with a per-SSRC decoder, tagged with the speaking user's
// ID, and delivered on a single fan-in channel.
//
// Capture is safe for concurrent use.
type Capture struct {
	vc      *discordgo.VoiceConnection
	session *discordgo.Session
	guildID string

	frames chan audio.Frame

	// ssrcUser maps SSRC → Discord user ID, learned from speaking updates.
	mu       sync.RWMutex
	ssrcUser map[uint32]string

	done      chan struct{}
	closeOnce sync.Once

	// disconnectVC tears down the voice connection during Disconnect.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newCapture initialises a Capture for an already-joined voice channel and
// starts the receive loop.
func newCapture(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID string) (*Capture, error) {
	c := &Capture{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		frames:       make(chan audio.Frame, frameChannelBuffer),
		ssrcUser:     make(map[uint32]string),
		done:         make(chan struct{}),
		disconnectVC: vc.Disconnect,
	}

	// Speaking updates carry the SSRC→user binding Discord never repeats in
	// the audio packets themselves.
	vc.AddHandler(c.handleSpeakingUpdate)

	go c.recvLoop()
	return c, nil
}

// Frames implements [audio.Capture].
func (c *Capture) Frames() <-chan audio.Frame {
	return c.frames
}

// SpeakerName implements [audio.Capture]. It resolves a Discord user ID to
// the member's display name, falling back to the username and finally to a
// stable "User_<id>" placeholder.
func (c *Capture) SpeakerName(speakerID string) string {
	member, err := c.session.State.Member(c.guildID, speakerID)
	if err != nil || member == nil {
		member, err = c.session.GuildMember(c.guildID, speakerID)
	}
	if err == nil && member != nil {
		if member.Nick != "" {
			return member.Nick
		}
		if member.User != nil && member.User.Username != "" {
			return member.User.Username
		}
	}
	return fmt.Sprintf("User_%s", speakerID)
}

// Disconnect implements [audio.Capture]. Safe to call more than once.
// The frame channel closes shortly after, once the receive loop has exited;
// recvLoop is the only sender, so it alone may close the channel.
func (c *Capture) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.disconnectVC != nil {
			err = c.disconnectVC()
		}
	})
	return err
}

// recvLoop reads Opus packets from the voice connection, decodes them, and
// delivers tagged frames. It exits on Disconnect or when the voice
// connection's receive channel closes, which is how a platform-side drop
// surfaces; either way the frame channel closes on exit so consumers see the
// capture end.
func (c *Capture) recvLoop() {
	defer close(c.frames)

	decoders := make(map[uint32]*opusDecoder)

	for {
		select {
		case <-c.done:
			return
		case pkt, ok := <-c.vc.OpusRecv:
			if !ok {
				// Voice connection lost; surface as capture end.
				_ = c.Disconnect()
				return
			}
			if pkt == nil {
				continue
			}

			dec, exists := decoders[pkt.SSRC]
			if !exists {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: create opus decoder", "ssrc", pkt.SSRC, "error", err)
					continue
				}
				decoders[pkt.SSRC] = dec
			}

			pcm, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
				continue
			}

			frame := audio.Frame{
				SpeakerID:  c.speakerFor(pkt.SSRC),
				Data:       pcm,
				SampleRate: opusSampleRate,
				Channels:   opusChannels,
				Timestamp:  time.Now(),
			}

			select {
			case c.frames <- frame:
			default:
				// Channel full. Drop rather than block the voice reader.
			}
		}
	}
}

// speakerFor returns the user ID bound to ssrc, or a synthetic placeholder
// until a speaking update arrives for it.
func (c *Capture) speakerFor(ssrc uint32) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.ssrcUser[ssrc]; ok {
		return id
	}
	return fmt.Sprintf("ssrc-%d", ssrc)
}

// handleSpeakingUpdate records the SSRC→user binding announced when a
// participant starts or stops speaking.
func (c *Capture) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	if vs == nil || vs.UserID == "" {
		return
	}
	c.mu.Lock()
	c.ssrcUser[uint32(vs.SSRC)] = vs.UserID
	c.mu.Unlock()
}
