package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WAVHeaderSize is the size of a canonical PCM WAV header.
const WAVHeaderSize = 44

var (
	ErrNotWAV            = errors.New("not a RIFF/WAVE file")
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// Format describes a decoded WAV stream.
type Format struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataLen       uint32
}

// EncodeWAV prepends a 44-byte mono 16-bit PCM header to pcm.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	out := make([]byte, WAVHeaderSize+len(pcm))
	dataLen := uint32(len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataLen)
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], 1) // mono
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*BytesPerSample))
	binary.LittleEndian.PutUint16(out[32:34], BytesPerSample)
	binary.LittleEndian.PutUint16(out[34:36], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataLen)

	copy(out[WAVHeaderSize:], pcm)
	return out
}

// ReadWAVHeader reads chunks from r until the data chunk and returns the
// stream format. On success r is positioned at the first sample.
func ReadWAVHeader(r io.Reader) (Format, error) {
	var f Format

	riff := make([]byte, 12)
	if _, err := io.ReadFull(r, riff); err != nil {
		return f, fmt.Errorf("read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return f, ErrNotWAV
	}

	chunk := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, chunk); err != nil {
			return f, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return f, fmt.Errorf("read fmt chunk: %w", err)
			}
			if size < 16 {
				return f, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedFormat, size)
			}
			f.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			f.Channels = binary.LittleEndian.Uint16(body[2:4])
			f.SampleRate = binary.LittleEndian.Uint32(body[4:8])
			f.BitsPerSample = binary.LittleEndian.Uint16(body[14:16])
		case "data":
			f.DataLen = size
			if f.AudioFormat != 1 || f.BitsPerSample != 16 || f.Channels != 1 {
				return f, fmt.Errorf("%w: format=%d channels=%d bits=%d",
					ErrUnsupportedFormat, f.AudioFormat, f.Channels, f.BitsPerSample)
			}
			return f, nil
		default:
			// Skip LIST, fact and other chunks; odd sizes are padded.
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return f, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}
