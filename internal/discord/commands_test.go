package discord

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/NagataYushi0222/InsightDebateBot/internal/analysis"
	"github.com/NagataYushi0222/InsightDebateBot/internal/session"
	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
)

func TestRegisterCommands(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	c := NewCommands(nil, nil, nil, nil, nil)
	c.Register(r)

	defs := r.ApplicationCommands()
	byName := make(map[string]*discordgo.ApplicationCommand, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	for _, name := range []string{
		"debate-start", "debate-stop", "analyze-now",
		"debate-status", "debate-reports", "debate-settings", "debate-key",
	} {
		if _, ok := byName[name]; !ok {
			t.Errorf("command %q not registered", name)
		}
	}
	if len(defs) != 7 {
		t.Errorf("registered %d top-level commands, want 7", len(defs))
	}
}

func TestSettingsCommandDefinition(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	NewCommands(nil, nil, nil, nil, nil).Register(r)

	var settings *discordgo.ApplicationCommand
	for _, d := range r.ApplicationCommands() {
		if d.Name == "debate-settings" {
			settings = d
		}
	}
	if settings == nil {
		t.Fatal("debate-settings not registered")
	}
	if len(settings.Options) != 3 {
		t.Fatalf("subcommand count = %d, want 3", len(settings.Options))
	}

	var interval *discordgo.ApplicationCommandOption
	for _, sub := range settings.Options {
		if sub.Name == "interval" {
			interval = sub
		}
	}
	if interval == nil {
		t.Fatal("interval subcommand missing")
	}

	// The slider minimum must match the store's floor, so invalid values
	// are rejected client-side too.
	min := interval.Options[0].MinValue
	if min == nil {
		t.Fatal("interval option has no minimum value")
	}
	if want := float64(store.MinInterval / time.Second); *min != want {
		t.Errorf("interval minimum = %v, want %v", *min, want)
	}
}

func TestInteractionKey(t *testing.T) {
	t.Parallel()

	top := discordgo.ApplicationCommandInteractionData{Name: "debate-start"}
	if got := interactionKey(top); got != "debate-start" {
		t.Errorf("got %q, want %q", got, "debate-start")
	}

	sub := discordgo.ApplicationCommandInteractionData{
		Name: "debate-settings",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name: "interval",
			Type: discordgo.ApplicationCommandOptionSubCommand,
		}},
	}
	if got := interactionKey(sub); got != "debate-settings/interval" {
		t.Errorf("got %q, want %q", got, "debate-settings/interval")
	}
}

func TestSubcommandOptions(t *testing.T) {
	t.Parallel()

	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "debate-key",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{{
					Name: "set",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandInteractionDataOption{
						{Name: "key", Type: discordgo.ApplicationCommandOptionString, Value: "sk-test"},
						{Name: "provider", Type: discordgo.ApplicationCommandOptionString, Value: "openai"},
					},
				}},
			},
		},
	}

	opts := subcommandOptions(i)
	if got := opts["key"].StringValue(); got != "sk-test" {
		t.Errorf("key = %q, want %q", got, "sk-test")
	}
	if got := opts["provider"].StringValue(); got != "openai" {
		t.Errorf("provider = %q, want %q", got, "openai")
	}
}

func TestInvokerID(t *testing.T) {
	t.Parallel()

	guild := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: &discordgo.User{ID: "member-1"}},
		},
	}
	if got := invokerID(guild); got != "member-1" {
		t.Errorf("got %q, want %q", got, "member-1")
	}

	dm := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			User: &discordgo.User{ID: "user-2"},
		},
	}
	if got := invokerID(dm); got != "user-2" {
		t.Errorf("got %q, want %q", got, "user-2")
	}

	empty := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}
	if got := invokerID(empty); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestStatusEmbed(t *testing.T) {
	t.Parallel()

	settings := store.DefaultSettings("g1")

	embed := statusEmbed(settings, session.Info{}, false)
	if embed.Description != "No active session." {
		t.Errorf("idle description = %q", embed.Description)
	}
	if len(embed.Fields) != 3 {
		t.Fatalf("idle embed has %d fields, want 3", len(embed.Fields))
	}
	if embed.Fields[0].Value != string(settings.Mode) {
		t.Errorf("mode field = %q", embed.Fields[0].Value)
	}

	info := session.Info{
		GuildID:        "g1",
		VoiceChannelID: "vc1",
		State:          session.StateRecording,
		StartedAt:      time.Now(),
		Reports:        3,
	}
	embed = statusEmbed(settings, info, true)
	if !strings.Contains(embed.Description, "<#vc1>") || !strings.Contains(embed.Description, "recording") {
		t.Errorf("active description = %q", embed.Description)
	}
	if len(embed.Fields) != 5 {
		t.Fatalf("active embed has %d fields, want 5", len(embed.Fields))
	}
	if embed.Fields[3].Name != "Reports" || embed.Fields[3].Value != "3" {
		t.Errorf("reports field = %+v", embed.Fields[3])
	}
}

func TestPublicError(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("engine: start guild g1: %w", errors.New("voice handshake timed out"))
	if got := publicError(wrapped); got != "voice handshake timed out" {
		t.Errorf("got %q, want innermost message", got)
	}

	plain := errors.New("boom")
	if got := publicError(plain); got != "boom" {
		t.Errorf("got %q, want %q", got, "boom")
	}
}

func TestThreadName(t *testing.T) {
	t.Parallel()

	if got := threadName(analysis.Report{Final: true, Cycle: 7}); got != "Final report details" {
		t.Errorf("got %q", got)
	}
	if got := threadName(analysis.Report{Cycle: 3}); got != "Report #3 details" {
		t.Errorf("got %q", got)
	}
}
