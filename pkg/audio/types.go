package audio

import "time"

// Discord voice delivers 48 kHz stereo Opus; decoded frames keep that format.
const (
	CaptureSampleRate = 48000
	CaptureChannels   = 2
	bytesPerSample    = 2
)

// Frame is a single decoded chunk of one speaker's audio.
// Frames are the atomic unit of capture transport: the platform adapter
// decodes incoming packets into Frames and the session's ingest loop feeds
// them to the speaker buffer.
type Frame struct {
	// SpeakerID is the platform-specific identifier of the participant who
	// produced this audio (a Discord user ID once the SSRC is resolved).
	SpeakerID string

	// Data is interleaved signed 16-bit little-endian PCM.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was received.
	Timestamp time.Time
}

// Duration returns the playback duration of the frame's PCM payload.
// Returns zero for malformed frames (missing format or odd byte count).
func (f Frame) Duration() time.Duration {
	return PCMDuration(len(f.Data), f.SampleRate, f.Channels)
}

// PCMDuration returns the duration of raw PCM bytes in the given format.
func PCMDuration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := n / (bytesPerSample * channels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
