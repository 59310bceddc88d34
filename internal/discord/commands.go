package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/NagataYushi0222/InsightDebateBot/internal/session"
	"github.com/NagataYushi0222/InsightDebateBot/internal/store"
	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// commandTimeout bounds the engine work done on behalf of one interaction.
// Long enough for a full manual analysis cycle.
const commandTimeout = 5 * time.Minute

// Commands wires the slash command surface to the session engine and the
// settings, credential and report stores.
type Commands struct {
	engine      *session.Engine
	settings    store.Settings
	credentials store.Credentials
	reports     store.Reports
	log         *slog.Logger
}

// NewCommands creates the command handler set.
func NewCommands(engine *session.Engine, settings store.Settings, credentials store.Credentials, reports store.Reports, log *slog.Logger) *Commands {
	if log == nil {
		log = slog.Default()
	}
	return &Commands{
		engine:      engine,
		settings:    settings,
		credentials: credentials,
		reports:     reports,
		log:         log,
	}
}

// Register registers all slash commands on the router.
func (c *Commands) Register(r *CommandRouter) {
	minInterval := float64(store.MinInterval / time.Second)

	r.RegisterCommand("debate-start", &discordgo.ApplicationCommand{
		Name:        "debate-start",
		Description: "Start recording and analysing your current voice channel",
	}, c.handleStart)

	r.RegisterCommand("debate-stop", &discordgo.ApplicationCommand{
		Name:        "debate-stop",
		Description: "Stop the session and post the final report",
	}, c.handleStop)

	r.RegisterCommand("analyze-now", &discordgo.ApplicationCommand{
		Name:        "analyze-now",
		Description: "Run an analysis cycle immediately",
	}, c.handleAnalyzeNow)

	r.RegisterCommand("debate-status", &discordgo.ApplicationCommand{
		Name:        "debate-status",
		Description: "Show the session state and current settings",
	}, c.handleStatus)

	r.RegisterCommand("debate-reports", &discordgo.ApplicationCommand{
		Name:        "debate-reports",
		Description: "List this guild's most recent analysis reports",
	}, c.handleReports)

	settingsCmd := &discordgo.ApplicationCommand{
		Name:        "debate-settings",
		Description: "Configure analysis for this guild",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "mode",
				Description: "Choose the report style",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "Report style",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "debate (fact-checked)", Value: string(analyzer.ModeDebate)},
						{Name: "summary", Value: string(analyzer.ModeSummary)},
					},
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "interval",
				Description: "Set the seconds between analysis cycles",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: "Cycle interval in seconds",
					Required:    true,
					MinValue:    &minInterval,
				}},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "factcheck",
				Description: "Toggle claim fact-checking in debate mode",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Whether claims are fact-checked",
					Required:    true,
				}},
			},
		},
	}
	r.RegisterCommand("debate-settings/mode", settingsCmd, c.handleSetMode)
	r.RegisterHandler("debate-settings/interval", c.handleSetInterval)
	r.RegisterHandler("debate-settings/factcheck", c.handleSetFactCheck)

	keyCmd := &discordgo.ApplicationCommand{
		Name:        "debate-key",
		Description: "Manage this guild's analysis API key",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Register the API key used for analysis",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "key",
						Description: "The API key (visible only to you)",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "provider",
						Description: "Analysis service the key belongs to",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "gemini", Value: "gemini"},
							{Name: "openai", Value: "openai"},
						},
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Remove the registered API key",
			},
		},
	}
	r.RegisterCommand("debate-key/set", keyCmd, c.handleKeySet)
	r.RegisterHandler("debate-key/clear", c.handleKeyClear)
}

func (c *Commands) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	DeferReply(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	invoker := invokerID(i)
	vs, err := s.State.VoiceState(i.GuildID, invoker)
	if err != nil || vs == nil || vs.ChannelID == "" {
		FollowUp(s, i, "Join a voice channel first, then run `/debate-start`.")
		return
	}

	err = c.engine.Start(ctx, session.StartRequest{
		GuildID:        i.GuildID,
		VoiceChannelID: vs.ChannelID,
		TextChannelID:  i.ChannelID,
		InvokerID:      invoker,
	})
	switch {
	case errors.Is(err, session.ErrAlreadyActive):
		FollowUp(s, i, "A session is already running in this guild. Use `/debate-stop` first.")
	case errors.Is(err, session.ErrNoCredential):
		FollowUp(s, i, "No analysis API key is registered. Set one with `/debate-key set`.")
	case err != nil:
		c.log.Error("start command failed", "guild_id", i.GuildID, "error", err)
		FollowUp(s, i, "Could not start the session: "+publicError(err))
	default:
		FollowUp(s, i, fmt.Sprintf("Recording <#%s>. Reports will appear in <#%s>.", vs.ChannelID, i.ChannelID))
	}
}

func (c *Commands) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	DeferReply(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := c.engine.Stop(ctx, i.GuildID)
	switch {
	case errors.Is(err, session.ErrNotActive):
		FollowUp(s, i, "No session is running in this guild.")
	case err != nil:
		c.log.Error("stop command failed", "guild_id", i.GuildID, "error", err)
		FollowUp(s, i, "Stopping failed: "+publicError(err))
	default:
		FollowUp(s, i, "Session stopped. The final report has been posted.")
	}
}

func (c *Commands) handleAnalyzeNow(s *discordgo.Session, i *discordgo.InteractionCreate) {
	DeferReply(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := c.engine.TriggerNow(ctx, i.GuildID)
	switch {
	case errors.Is(err, session.ErrNotActive):
		FollowUp(s, i, "No session is running in this guild.")
	case errors.Is(err, session.ErrBusy):
		FollowUp(s, i, "An analysis cycle is already running; its report will arrive shortly.")
	case err != nil:
		c.log.Error("analyze-now command failed", "guild_id", i.GuildID, "error", err)
		FollowUp(s, i, "Analysis failed: "+publicError(err))
	default:
		FollowUp(s, i, "Analysis cycle finished.")
	}
}

func (c *Commands) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	DeferReply(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	settings, err := c.settings.Settings(ctx, i.GuildID)
	if err != nil {
		FollowUp(s, i, "Reading the guild settings failed: "+publicError(err))
		return
	}

	info, active := c.engine.SessionInfo(i.GuildID)
	FollowUpEmbed(s, i, statusEmbed(settings, info, active))
}

// statusEmbed renders the guild's settings and, when a session is active,
// its live state into one status embed.
func statusEmbed(settings store.GuildSettings, info session.Info, active bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Voice analysis status",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Mode", Value: string(settings.Mode), Inline: true},
			{Name: "Interval", Value: settings.Interval.String(), Inline: true},
			{Name: "Fact-check", Value: fmt.Sprintf("%t", settings.FactCheck), Inline: true},
		},
	}

	if active {
		embed.Description = fmt.Sprintf("Session **%s** in <#%s> since <t:%d:R>.",
			info.State, info.VoiceChannelID, info.StartedAt.Unix())
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Reports", Value: fmt.Sprintf("%d", info.Reports), Inline: true},
			&discordgo.MessageEmbedField{
				Name:   "Buffered speech",
				Value:  fmt.Sprintf("%s from %d speaker(s)", info.Buffered.Buffered.Round(time.Second), info.Buffered.Speakers),
				Inline: true,
			},
		)
	} else {
		embed.Description = "No active session."
	}
	return embed
}

func (c *Commands) handleReports(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recs, err := c.reports.RecentReports(ctx, i.GuildID, 5)
	if err != nil {
		RespondError(s, i, err)
		return
	}
	if len(recs) == 0 {
		RespondEphemeral(s, i, "No reports archived for this guild yet.")
		return
	}

	var b strings.Builder
	for _, rec := range recs {
		kind := "periodic"
		if rec.Final {
			kind = "final"
		}
		fmt.Fprintf(&b, "• <t:%d:f> cycle %d, %s %s, %d claim(s)\n",
			rec.CreatedAt.Unix(), rec.Cycle, rec.Mode, kind, rec.Claims)
	}
	RespondEphemeral(s, i, b.String())
}

func (c *Commands) handleSetMode(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mode := analyzer.Mode(subcommandOptions(i)["mode"].StringValue())
	if !mode.IsValid() {
		RespondEphemeral(s, i, "Unknown mode.")
		return
	}
	if err := c.settings.SetMode(ctx, i.GuildID, mode); err != nil {
		RespondError(s, i, err)
		return
	}
	RespondEphemeral(s, i, fmt.Sprintf("Analysis mode set to **%s**. Applies from the next cycle.", mode))
}

func (c *Commands) handleSetInterval(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seconds := subcommandOptions(i)["seconds"].IntValue()
	interval := time.Duration(seconds) * time.Second
	if interval < store.MinInterval {
		RespondEphemeral(s, i, fmt.Sprintf("Interval must be at least %s.", store.MinInterval))
		return
	}
	if err := c.settings.SetInterval(ctx, i.GuildID, interval); err != nil {
		RespondError(s, i, err)
		return
	}
	RespondEphemeral(s, i, fmt.Sprintf("Cycle interval set to **%s**. Applies from the next cycle.", interval))
}

func (c *Commands) handleSetFactCheck(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	enabled := subcommandOptions(i)["enabled"].BoolValue()
	if err := c.settings.SetFactCheck(ctx, i.GuildID, enabled); err != nil {
		RespondError(s, i, err)
		return
	}
	if enabled {
		RespondEphemeral(s, i, "Fact-checking enabled for debate reports.")
	} else {
		RespondEphemeral(s, i, "Fact-checking disabled.")
	}
}

func (c *Commands) handleKeySet(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := subcommandOptions(i)
	key := strings.TrimSpace(opts["key"].StringValue())
	if key == "" {
		RespondEphemeral(s, i, "The key must not be empty.")
		return
	}
	provider := ""
	if opt, ok := opts["provider"]; ok {
		provider = opt.StringValue()
	}

	if err := c.credentials.SetKey(ctx, i.GuildID, provider, key); err != nil {
		c.log.Error("key registration failed", "guild_id", i.GuildID, "error", err)
		RespondEphemeral(s, i, "Storing the key failed. Try again later.")
		return
	}
	// Never echo any part of the key back.
	RespondEphemeral(s, i, "API key registered for this guild.")
}

func (c *Commands) handleKeyClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.credentials.DeleteKey(ctx, i.GuildID); err != nil {
		RespondError(s, i, err)
		return
	}
	RespondEphemeral(s, i, "API key removed.")
}

// subcommandOptions maps the options of the invoked subcommand (or the
// top-level command when there is none) by name.
func subcommandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	if len(opts) > 0 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		opts = opts[0].Options
	}
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		out[o.Name] = o
	}
	return out
}

// invokerID returns the calling user's ID for both guild and DM invocations.
func invokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// publicError trims an error chain to something safe for a channel reply.
func publicError(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		msg = msg[idx+2:]
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
