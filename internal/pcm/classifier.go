// Package pcm holds the signal-level primitives of the pipeline: frame
// classification, utterance buffers and the WAV container used by
// transcription collaborators.
//
// All audio is 16-bit signed little-endian mono PCM.
package pcm

import "encoding/binary"

const (
	// SampleRate is the pipeline sample rate in Hz.
	SampleRate = 16000

	// BytesPerSample for 16-bit PCM.
	BytesPerSample = 2

	// DefaultEnergyThreshold is the mean absolute amplitude above which a
	// frame counts as speech.
	DefaultEnergyThreshold = 1000.0
)

// Classification is the result of classifying one frame.
type Classification struct {
	Active bool
	Energy float64
}

// Classifier decides speech vs. non-speech for a single frame.
// The zero value uses DefaultEnergyThreshold.
type Classifier struct {
	Threshold float64
}

// NewClassifier creates a classifier with the given threshold.
// A non-positive threshold selects DefaultEnergyThreshold.
func NewClassifier(threshold float64) Classifier {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	return Classifier{Threshold: threshold}
}

// Classify reports whether the frame's mean absolute amplitude exceeds the
// threshold. Frames shorter than one sample are inactive.
func (c Classifier) Classify(frame []byte) Classification {
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	if len(frame) < BytesPerSample {
		return Classification{}
	}
	energy := MeanAbsAmplitude(frame)
	return Classification{Active: energy > threshold, Energy: energy}
}

// MeanAbsAmplitude returns the mean absolute sample value of pcm.
// A trailing odd byte is ignored. Empty input yields 0.
func MeanAbsAmplitude(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < n; i++ {
		s := int64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return float64(sum) / float64(n)
}

// ToFloat32 converts int16 PCM into normalized samples in [-1, 1).
func ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out
}

// FromInt16 encodes samples as little-endian PCM bytes.
func FromInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
