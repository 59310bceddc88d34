// Package buffer accumulates per-speaker PCM between analysis cycles.
//
// Audio frames stream in continuously while a session records; once per
// cycle the pipeline drains everything buffered so far in a single atomic
// swap. Frames that arrive during a drain land in the next cycle's buffer,
// never in the one being drained.
package buffer

import (
	"sync"
	"time"

	"github.com/NagataYushi0222/InsightDebateBot/pkg/audio"
)

// Segment is one contiguous run of a speaker's PCM, drained for analysis.
type Segment struct {
	// SpeakerID identifies the speaker.
	SpeakerID string

	// PCM is raw interleaved s16le audio in Format.
	PCM []byte

	// Format describes the PCM sample rate and channel count.
	Format audio.Format

	// Duration is the playback length of PCM.
	Duration time.Duration
}

// Stats summarises the buffer between drains.
type Stats struct {
	// Speakers is the number of speakers with buffered audio.
	Speakers int

	// BufferedBytes is the total PCM currently held.
	BufferedBytes int

	// Buffered is the total playback duration currently held.
	Buffered time.Duration

	// Dropped is the playback duration evicted since the last drain
	// because a speaker exceeded the per-speaker ceiling.
	Dropped time.Duration
}

// speakerState is one speaker's accumulation. Closed segments are kept in
// order; the open segment grows until the force-close threshold seals it.
type speakerState struct {
	closed  []Segment
	open    []byte
	openDur time.Duration
	format  audio.Format
}

// Buffer collects per-speaker audio between drains.
//
// A speaker's open segment is force-closed once it reaches the configured
// maximum duration, so a single monologue cannot grow one allocation without
// bound. If a speaker's total buffered audio exceeds the per-speaker
// ceiling, the oldest closed segments are evicted and counted as dropped.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu         sync.Mutex
	speakers   map[string]*speakerState
	maxSegment time.Duration
	maxSpeaker time.Duration
	dropped    time.Duration
}

// New creates a buffer. maxSegment bounds a single contiguous segment;
// maxSpeaker bounds a speaker's total buffered audio between drains. Zero
// values fall back to 10 minutes and 30 minutes respectively.
func New(maxSegment, maxSpeaker time.Duration) *Buffer {
	if maxSegment <= 0 {
		maxSegment = 10 * time.Minute
	}
	if maxSpeaker <= 0 {
		maxSpeaker = 30 * time.Minute
	}
	return &Buffer{
		speakers:   make(map[string]*speakerState),
		maxSegment: maxSegment,
		maxSpeaker: maxSpeaker,
	}
}

// Ingest appends one captured frame to its speaker's open segment.
func (b *Buffer) Ingest(f audio.Frame) {
	if len(f.Data) == 0 || f.SpeakerID == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.speakers[f.SpeakerID]
	if !ok {
		s = &speakerState{format: audio.Format{SampleRate: f.SampleRate, Channels: f.Channels}}
		b.speakers[f.SpeakerID] = s
	}

	s.open = append(s.open, f.Data...)
	s.openDur += f.Duration()

	if s.openDur >= b.maxSegment {
		b.closeOpen(f.SpeakerID, s)
	}
	b.evict(s)
}

// Drain atomically removes and returns everything buffered. Each speaker
// contributes their closed segments in arrival order, so no returned segment
// exceeds the force-close bound; speakers themselves come in no particular
// order. An empty buffer yields nil. The dropped counter resets.
func (b *Buffer) Drain() []Segment {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Segment
	for id, s := range b.speakers {
		if len(s.open) > 0 {
			b.closeOpen(id, s)
		}
		for _, seg := range s.closed {
			if len(seg.PCM) == 0 {
				continue
			}
			out = append(out, seg)
		}
	}

	b.speakers = make(map[string]*speakerState)
	b.dropped = 0
	return out
}

// Stats returns a snapshot of the buffer.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Stats{Dropped: b.dropped}
	for _, s := range b.speakers {
		total := len(s.open)
		dur := s.openDur
		for _, seg := range s.closed {
			total += len(seg.PCM)
			dur += seg.Duration
		}
		if total == 0 {
			continue
		}
		st.Speakers++
		st.BufferedBytes += total
		st.Buffered += dur
	}
	return st
}

// closeOpen seals the speaker's open segment. Must be called with b.mu held.
func (b *Buffer) closeOpen(id string, s *speakerState) {
	s.closed = append(s.closed, Segment{
		SpeakerID: id,
		PCM:       s.open,
		Format:    s.format,
		Duration:  s.openDur,
	})
	s.open = nil
	s.openDur = 0
}

// evict drops the speaker's oldest closed segments while their total exceeds
// the per-speaker ceiling. Must be called with b.mu held.
//
// Survivors are copied to a fresh backing array so evicted segments do not
// pin memory for the rest of the session.
func (b *Buffer) evict(s *speakerState) {
	total := s.openDur
	for _, seg := range s.closed {
		total += seg.Duration
	}

	start := 0
	for total > b.maxSpeaker && start < len(s.closed) {
		total -= s.closed[start].Duration
		b.dropped += s.closed[start].Duration
		start++
	}
	if start > 0 {
		keep := make([]Segment, len(s.closed)-start)
		copy(keep, s.closed[start:])
		s.closed = keep
	}
}
