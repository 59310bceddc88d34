package analyzer

import (
	"fmt"
	"strings"
)

// Claim markers the model is instructed to emit in fact-check reports.
// ParseClaims scans for these when extracting structured verdicts.
const (
	markerVerified     = "[VERIFIED]"
	markerDisputed     = "[DISPUTED]"
	markerUnverifiable = "[UNVERIFIABLE]"
)

const debateInstructions = `You are an impartial debate analyst listening to a live voice discussion.
Each audio clip below is labelled with the name of the speaker it belongs to.

Produce a report that:
1. Identifies the main points of contention and who holds which position.
2. Extracts the concrete factual claims made by each speaker.
3. Fact-checks each claim using web search and prefixes it with exactly one of
   the markers [VERIFIED], [DISPUTED] or [UNVERIFIABLE], followed by the claim
   restated in one sentence with the speaker's name.
4. Closes with a short neutral assessment of how the debate is developing.

Write in the language the participants speak. Do not invent statements that
are not in the audio. If a clip is silent or unintelligible, skip it.`

const debateNoFactCheckInstructions = `You are an impartial debate analyst listening to a live voice discussion.
Each audio clip below is labelled with the name of the speaker it belongs to.

Produce a report that identifies the main points of contention, who holds
which position, and how the debate is developing. Write in the language the
participants speak. Do not invent statements that are not in the audio.`

const summaryInstructions = `You are a meeting assistant listening to a live voice discussion.
Each audio clip below is labelled with the name of the speaker it belongs to.

Summarise what was discussed since the previous report: the topics raised,
the decisions or conclusions reached, and any open questions. Keep it concise
and write in the language the participants speak. Do not invent statements
that are not in the audio.`

// Instructions returns the system instructions for the given request shape.
func Instructions(mode Mode, factCheck bool) string {
	if mode == ModeSummary {
		return summaryInstructions
	}
	if factCheck {
		return debateInstructions
	}
	return debateNoFactCheckInstructions
}

// ContextPreamble frames the prior-report digest for the model. Returns ""
// when there is no digest yet.
func ContextPreamble(digest string) string {
	if digest == "" {
		return ""
	}
	return "Context from the previous report (continue from here, do not repeat it):\n" + digest
}

// SpeakerLabel names an audio clip for the model.
func SpeakerLabel(name string) string {
	return fmt.Sprintf("Audio from speaker %q:", name)
}

// verdictIcons rewrites the model's markers into the forms readers see in a
// delivered report.
var verdictIcons = strings.NewReplacer(
	markerVerified, "✅",
	markerDisputed, "⚠️",
	markerUnverifiable, "❓",
)

// RenderVerdicts replaces the raw fact-check markers in a report body with
// their reader-facing icons. Text without markers is returned unchanged.
func RenderVerdicts(text string) string {
	return verdictIcons.Replace(text)
}

// ParseClaims extracts fact-check verdicts from a report body. Lines without
// a marker are left alone. Providers return the text with the raw markers
// still inline; RenderVerdicts rewrites them for delivery.
func ParseClaims(text string) []Claim {
	var claims []Claim
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		var verdict Verdict
		var marker string
		switch {
		case strings.Contains(line, markerVerified):
			verdict, marker = VerdictVerified, markerVerified
		case strings.Contains(line, markerDisputed):
			verdict, marker = VerdictDisputed, markerDisputed
		case strings.Contains(line, markerUnverifiable):
			verdict, marker = VerdictUnverifiable, markerUnverifiable
		default:
			continue
		}
		claim := strings.TrimSpace(strings.Replace(line, marker, "", 1))
		if claim == "" {
			continue
		}
		claims = append(claims, Claim{Text: claim, Verdict: verdict})
	}
	return claims
}
