package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/NagataYushi0222/InsightDebateBot/internal/analysis"
)

// threadArchiveMinutes auto-archives report threads after an hour of
// inactivity.
const threadArchiveMinutes = 60

// ReportDelivery posts analysis reports to the session's text channel. The
// first chunk lands in the channel itself; when a report exceeds one message
// the remainder goes into a thread hanging off that message, keeping the
// channel readable during long sessions.
type ReportDelivery struct {
	session *discordgo.Session
	log     *slog.Logger
}

var _ analysis.Delivery = (*ReportDelivery)(nil)

// NewReportDelivery creates a delivery bound to the given session.
func NewReportDelivery(session *discordgo.Session, log *slog.Logger) *ReportDelivery {
	if log == nil {
		log = slog.Default()
	}
	return &ReportDelivery{session: session, log: log}
}

// Deliver implements [analysis.Delivery].
func (d *ReportDelivery) Deliver(ctx context.Context, rep analysis.Report) error {
	chunks := analysis.Chunk(rep.Text)
	if len(chunks) == 0 {
		return nil
	}

	msg, err := d.session.ChannelMessageSend(rep.ChannelID, chunks[0], discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: post report to channel %s: %w", rep.ChannelID, err)
	}
	if len(chunks) == 1 {
		return nil
	}

	thread, err := d.session.MessageThreadStartComplex(rep.ChannelID, msg.ID, &discordgo.ThreadStart{
		Name:                threadName(rep),
		AutoArchiveDuration: threadArchiveMinutes,
	}, discordgo.WithContext(ctx))
	if err != nil {
		// Fall back to posting the remainder inline rather than losing it.
		d.log.Warn("discord: thread creation failed, posting chunks inline", "err", err)
		thread = nil
	}

	target := rep.ChannelID
	if thread != nil {
		target = thread.ID
	}
	for _, c := range chunks[1:] {
		if _, err := d.session.ChannelMessageSend(target, c, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("discord: post report continuation: %w", err)
		}
	}
	return nil
}

// Notify implements [analysis.Delivery].
func (d *ReportDelivery) Notify(ctx context.Context, channelID, text string) error {
	if _, err := d.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: post notice to channel %s: %w", channelID, err)
	}
	return nil
}

func threadName(rep analysis.Report) string {
	if rep.Final {
		return "Final report details"
	}
	return fmt.Sprintf("Report #%d details", rep.Cycle)
}
