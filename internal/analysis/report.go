package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

// maxChunkRunes keeps each delivered message under the platform's 2000
// character hard limit with headroom for formatting added downstream.
const maxChunkRunes = 1900

// Report is one assembled analysis report ready for delivery.
type Report struct {
	GuildID   string
	ChannelID string
	Cycle     int
	Mode      analyzer.Mode
	Final     bool
	Trigger   string

	// Text is the full report body including the header line.
	Text string

	// Claims holds the fact-check annotations extracted from the body.
	Claims []analyzer.Claim

	// Speakers lists the display names of everyone with speech this cycle.
	Speakers []string

	// Audio is the total speech duration analysed.
	Audio time.Duration

	GeneratedAt time.Time
}

// assembleReport builds the delivered report from a service result. The
// final report gets a distinct header so readers can tell the session wrap-up
// from a periodic update at a glance; fact-check markers are rewritten to
// their reader-facing icons.
func assembleReport(cycle int, mode analyzer.Mode, final bool, speakers []string, audioLen time.Duration, res *analyzer.Result) string {
	var b strings.Builder
	if final {
		b.WriteString(fmt.Sprintf("🏁 **Final Report** (cycle %d, %s)\n", cycle, mode))
	} else {
		b.WriteString(fmt.Sprintf("📊 **Analysis Report #%d** (%s)\n", cycle, mode))
	}
	if len(speakers) > 0 {
		b.WriteString(fmt.Sprintf("Speakers: %s · %s of audio\n", strings.Join(speakers, ", "), audioLen.Round(time.Second)))
	}
	b.WriteString("\n")
	b.WriteString(analyzer.RenderVerdicts(res.Text))
	return b.String()
}

// Chunk splits text into pieces of at most maxChunkRunes runes. Splits
// happen at paragraph boundaries when possible, then line boundaries, then
// anywhere. Never returns an empty slice for non-empty input.
func Chunk(text string) []string {
	return chunk(text, maxChunkRunes)
}

func chunk(text string, max int) []string {
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= max {
		return []string{text}
	}

	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if n > 0 {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
	}

	// place appends one piece already known to fit in a chunk by itself,
	// joining it to the current chunk with sep when both fit together.
	place := func(piece string, runes int, sep string) {
		s := len(sep)
		if n == 0 {
			s = 0
		}
		if n+s+runes > max {
			flush()
			s = 0
		}
		if s > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
		n += s + runes
	}

	for _, para := range strings.Split(text, "\n\n") {
		pr := []rune(para)
		if len(pr) <= max {
			if len(pr) > 0 {
				place(para, len(pr), "\n\n")
			}
			continue
		}

		// The paragraph alone exceeds the limit; fall back to its lines.
		// Only a single line longer than the limit is hard-split.
		flush()
		for _, line := range strings.Split(para, "\n") {
			lr := []rune(line)
			for len(lr) > max {
				flush()
				out = append(out, string(lr[:max]))
				lr = lr[max:]
			}
			if len(lr) > 0 {
				place(string(lr), len(lr), "\n")
			}
		}
	}
	flush()
	return out
}
