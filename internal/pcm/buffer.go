package pcm

import "time"

// Buffer is one utterance: the ordered concatenation of the active frames
// between two boundary events. Once handed downstream it is never mutated.
type Buffer struct {
	PCM        []byte
	SampleRate int
	Frames     int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Len returns the buffer length in bytes.
func (b Buffer) Len() int {
	return len(b.PCM)
}

// Empty reports whether the buffer holds no samples.
func (b Buffer) Empty() bool {
	return len(b.PCM) < BytesPerSample
}

// Samples returns the number of whole samples in the buffer.
func (b Buffer) Samples() int {
	return len(b.PCM) / BytesPerSample
}

func (b Buffer) rate() int {
	if b.SampleRate <= 0 {
		return SampleRate
	}
	return b.SampleRate
}

// DurationMs returns samples / sampleRate * 1000 in integer milliseconds.
func (b Buffer) DurationMs() int64 {
	return DurationMs(len(b.PCM), b.rate())
}

// Duration returns the audio duration of the buffer.
func (b Buffer) Duration() time.Duration {
	return time.Duration(b.Samples()) * time.Second / time.Duration(b.rate())
}

// Energy returns the mean absolute amplitude over the whole buffer.
func (b Buffer) Energy() float64 {
	return MeanAbsAmplitude(b.PCM)
}

// Float32 returns normalized samples for local inference engines.
func (b Buffer) Float32() []float32 {
	return ToFloat32(b.PCM)
}

// WAV returns the buffer wrapped in a PCM WAV container.
func (b Buffer) WAV() []byte {
	return EncodeWAV(b.PCM, b.rate())
}

// DurationMs converts a 16-bit mono byte length into milliseconds.
func DurationMs(byteLen, sampleRate int) int64 {
	if sampleRate <= 0 {
		return 0
	}
	samples := int64(byteLen / BytesPerSample)
	return samples * 1000 / int64(sampleRate)
}

// BytesFor returns the byte length of d at the given sample rate.
func BytesFor(d time.Duration, sampleRate int) int {
	samples := int64(d) * int64(sampleRate) / int64(time.Second)
	return int(samples) * BytesPerSample
}
