// Package analysis runs one analysis cycle end to end: drain buffered
// audio, call the analysis service with bounded retries, assemble the
// report, deliver it, and archive it.
package analysis

import (
	"sync"
)

// digestRunes bounds the context digest carried between cycles. The model
// only needs the tail of the previous report to keep continuity; a full
// transcript would crowd out the audio.
const digestRunes = 2000

// History tracks the previous report so each cycle can hand the model a
// bounded continuity digest. Safe for concurrent use.
type History struct {
	mu     sync.Mutex
	last   string
	cycles int
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records a delivered report and bumps the cycle count.
func (h *History) Append(report string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = report
	h.cycles++
}

// Digest returns the tail of the previous report, bounded to the digest
// size. Empty before the first report.
func (h *History) Digest() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == "" {
		return ""
	}
	runes := []rune(h.last)
	if len(runes) <= digestRunes {
		return h.last
	}
	return string(runes[len(runes)-digestRunes:])
}

// Cycles returns how many reports have been recorded.
func (h *History) Cycles() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cycles
}
