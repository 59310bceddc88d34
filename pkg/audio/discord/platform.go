// Package discord provides an [audio.Platform] implementation backed by
// Discord voice channels via the bwmarrin/discordgo library. It bridges
// Discord's Opus voice transport with the engine's PCM [audio.Frame] stream.
//
// The platform requires an active *discordgo.Session (owned by the bot
// layer). Each call to [Platform.Connect] joins the requested voice channel
// in listen-only mode and returns a [Capture] that demuxes per-SSRC audio,
// decodes it to PCM, and tags each frame with the speaking user's ID.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Platform = (*Platform)(nil)

// Platform implements [audio.Platform] using discordgo voice connections.
// It is safe for concurrent use; each Connect produces an independent Capture.
type Platform struct {
	session *discordgo.Session
}

// New creates a Platform for the given session.
func New(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

// Connect joins the voice channel in listen-only mode (muted, not deafened)
// and returns an active [audio.Capture]. discordgo handles the voice
// handshake with its own internal timeout.
func (p *Platform) Connect(_ context.Context, guildID, channelID string) (audio.Capture, error) {
	vc, err := p.session.ChannelVoiceJoin(guildID, channelID, true, false)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}

	cap, err := newCapture(vc, p.session, guildID)
	if err != nil {
		_ = vc.Disconnect()
		return nil, fmt.Errorf("discord: create capture: %w", err)
	}
	return cap, nil
}
