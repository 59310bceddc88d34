package audio

// Format describes the sample rate and channel count of a PCM byte stream.
type Format struct {
	SampleRate int
	Channels   int
}

// AnalysisFormat is the format analysis payloads are converted to before
// upload: 16 kHz mono keeps a full cycle's audio within inline request
// limits while remaining comfortably above speech-intelligibility rates.
var AnalysisFormat = Format{SampleRate: 16000, Channels: 1}

// Convert converts interleaved s16le PCM from src format to dst format.
// Channel conversion happens first (downmix by averaging / upmix by
// duplication), then sample-rate conversion by linear interpolation.
// If src already matches dst the input slice is returned unchanged.
// Inputs with an odd byte count are truncated to the last whole sample.
func Convert(pcm []byte, src, dst Format) []byte {
	if src == dst {
		return pcm
	}
	samples := bytesToInt16(pcm)

	if src.Channels != dst.Channels {
		samples = convertChannels(samples, src.Channels, dst.Channels)
	}
	if src.SampleRate != dst.SampleRate {
		samples = resample(samples, dst.Channels, src.SampleRate, dst.SampleRate)
	}
	return int16ToBytes(samples)
}

// convertChannels changes the channel count of interleaved samples.
// Stereo→mono averages pairs; mono→stereo duplicates; other combinations
// collapse to mono first and then duplicate.
func convertChannels(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}

	frames := len(samples) / from
	mono := make([]int16, frames)
	for i := range frames {
		var sum int
		for c := range from {
			sum += int(samples[i*from+c])
		}
		mono[i] = int16(sum / from)
	}
	if to == 1 {
		return mono
	}

	out := make([]int16, frames*to)
	for i, s := range mono {
		for c := range to {
			out[i*to+c] = s
		}
	}
	return out
}

// resample converts the sample rate of interleaved samples using linear
// interpolation, preserving channel interleaving.
func resample(samples []int16, channels, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || channels <= 0 {
		return samples
	}

	inFrames := len(samples) / channels
	if inFrames == 0 {
		return nil
	}
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	if outFrames == 0 {
		return nil
	}

	out := make([]int16, outFrames*channels)
	for i := range outFrames {
		// Source position for this output frame.
		pos := float64(i) * float64(from) / float64(to)
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		for c := range channels {
			a := float64(samples[idx*channels+c])
			b := float64(samples[next*channels+c])
			out[i*channels+c] = int16(a + (b-a)*frac)
		}
	}
	return out
}

// bytesToInt16 converts little-endian PCM bytes to int16 samples.
func bytesToInt16(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// int16ToBytes converts int16 samples to little-endian PCM bytes.
func int16ToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}
