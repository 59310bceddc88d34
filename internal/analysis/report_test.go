package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/analyzer"
)

func TestChunkShortTextIsUntouched(t *testing.T) {
	t.Parallel()

	got := chunk("short report", 100)
	if len(got) != 1 || got[0] != "short report" {
		t.Fatalf("chunk = %v", got)
	}
	if chunk("", 100) != nil {
		t.Fatal("empty text should yield no chunks")
	}
}

func TestChunkPrefersParagraphBoundaries(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60) + "\n\n" + strings.Repeat("c", 60)
	got := chunk(text, 130)
	if len(got) != 2 {
		t.Fatalf("got %d chunks: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], strings.Repeat("b", 60)) {
		t.Errorf("first chunk should end at a paragraph boundary: %q", got[0])
	}
	if got[1] != strings.Repeat("c", 60) {
		t.Errorf("second chunk = %q", got[1])
	}
}

func TestChunkSplitsOversizedParagraphAtLines(t *testing.T) {
	t.Parallel()

	// One paragraph of 30 lines, 80 runes each: 2429 runes, too big for a
	// single 1900-rune chunk but splittable without breaking any line.
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = strings.Repeat("w", 80)
	}
	text := strings.Join(lines, "\n")

	got := chunk(text, 1900)
	if len(got) < 2 {
		t.Fatalf("got %d chunks, want a split", len(got))
	}
	for i, c := range got {
		if n := len([]rune(c)); n > 1900 {
			t.Errorf("chunk %d exceeds limit: %d runes", i, n)
		}
		for _, l := range strings.Split(c, "\n") {
			if len([]rune(l)) != 80 {
				t.Errorf("chunk %d contains a partial line of %d runes", i, len([]rune(l)))
			}
		}
	}
	if strings.Join(got, "\n") != text {
		t.Error("line split must preserve all content")
	}
}

func TestChunkHardSplitsOversizedParagraph(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 250)
	got := chunk(text, 100)
	if len(got) != 3 {
		t.Fatalf("got %d chunks", len(got))
	}
	for i, c := range got {
		if len([]rune(c)) > 100 {
			t.Errorf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
	}
	if strings.Join(got, "") != text {
		t.Error("hard split must preserve all content")
	}
}

func TestChunkCountsRunesNotBytes(t *testing.T) {
	t.Parallel()

	// 3-byte runes; 80 of them fit a 100-rune limit in one chunk.
	text := strings.Repeat("あ", 80)
	if got := chunk(text, 100); len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
}

func TestAssembleReportRendersVerdicts(t *testing.T) {
	t.Parallel()

	res := &analyzer.Result{Text: "Claims:\n" +
		"- [VERIFIED] Alice cited the right launch year.\n" +
		"- [DISPUTED] Bob's population figure is off.\n" +
		"- [UNVERIFIABLE] Carol's anecdote.\n"}
	got := assembleReport(2, analyzer.ModeDebate, false, []string{"Alice", "Bob"}, time.Minute, res)

	for _, marker := range []string{"[VERIFIED]", "[DISPUTED]", "[UNVERIFIABLE]"} {
		if strings.Contains(got, marker) {
			t.Errorf("raw marker %s leaked into the report", marker)
		}
	}
	for _, icon := range []string{"✅", "⚠️", "❓"} {
		if !strings.Contains(got, icon) {
			t.Errorf("report missing %s verdict", icon)
		}
	}
	if !strings.Contains(got, "Analysis Report #2") {
		t.Errorf("missing periodic header: %q", got)
	}
}

func TestHistoryDigestBounded(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	if h.Digest() != "" {
		t.Fatal("fresh history should have an empty digest")
	}

	h.Append(strings.Repeat("x", 3000) + "tail")
	d := h.Digest()
	if got := len([]rune(d)); got != digestRunes {
		t.Errorf("digest length = %d, want %d", got, digestRunes)
	}
	if !strings.HasSuffix(d, "tail") {
		t.Error("digest must keep the tail of the report")
	}

	h.Append("second")
	if h.Digest() != "second" {
		t.Errorf("digest = %q", h.Digest())
	}
	if h.Cycles() != 2 {
		t.Errorf("cycles = %d", h.Cycles())
	}
}
