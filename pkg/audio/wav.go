package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DefaultVoiceSampleRate is the rate of synthesized VPS voice.
const DefaultVoiceSampleRate = 22050

// ErrInvalidWAV reports a frame that is not a usable PCM16 WAV buffer.
var ErrInvalidWAV = errors.New("audio: invalid wav")

// Format describes interleaved PCM audio.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultVoiceFormat is assumed until a WAV header says otherwise.
var DefaultVoiceFormat = Format{SampleRate: DefaultVoiceSampleRate, Channels: 1, BitsPerSample: 16}

// IsWAV reports whether frame starts with a RIFF/WAVE header.
func IsWAV(frame []byte) bool {
	return len(frame) >= 12 && string(frame[0:4]) == "RIFF" && string(frame[8:12]) == "WAVE"
}

// DecodeWAV returns the PCM data of a WAV buffer and its format. Missing
// fmt fields fall back to fallback. A data chunk declared longer than the
// buffer is cut at the buffer end, which is how streamed WAV arrives.
func DecodeWAV(frame []byte, fallback Format) ([]byte, Format, error) {
	if !IsWAV(frame) {
		return nil, Format{}, fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	}

	format := fallback
	if format.SampleRate <= 0 {
		format.SampleRate = DefaultVoiceSampleRate
	}
	if format.Channels <= 0 {
		format.Channels = 1
	}
	if format.BitsPerSample <= 0 {
		format.BitsPerSample = 16
	}

	offset := 12
	dataOffset := -1
	dataSize := 0
	for offset+8 <= len(frame) {
		chunkID := string(frame[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(frame[offset+4 : offset+8]))
		offset += 8
		if offset+chunkSize > len(frame) {
			chunkSize = len(frame) - offset
		}

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 {
				format.Channels = int(binary.LittleEndian.Uint16(frame[offset+2 : offset+4]))
				format.SampleRate = int(binary.LittleEndian.Uint32(frame[offset+4 : offset+8]))
				format.BitsPerSample = int(binary.LittleEndian.Uint16(frame[offset+14 : offset+16]))
			}
		case "data":
			dataOffset = offset
			dataSize = chunkSize
		}

		offset += chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if dataOffset < 0 {
		return nil, Format{}, fmt.Errorf("%w: data chunk not found", ErrInvalidWAV)
	}
	if format.BitsPerSample != 16 {
		return nil, Format{}, fmt.Errorf("%w: %d bits per sample", ErrInvalidWAV, format.BitsPerSample)
	}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, Format{}, fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidWAV, format.SampleRate, format.Channels)
	}
	return frame[dataOffset : dataOffset+dataSize], format, nil
}

// VoiceDecoder unwraps the voice replies of one turn. The first reply may
// carry a WAV header; later ones are raw PCM in the same format.
type VoiceDecoder struct {
	format  Format
	started bool
}

// NewVoiceDecoder starts a turn in DefaultVoiceFormat.
func NewVoiceDecoder() *VoiceDecoder {
	return &VoiceDecoder{format: DefaultVoiceFormat}
}

// Decode returns the PCM carried by chunk and its format.
func (d *VoiceDecoder) Decode(chunk []byte) ([]byte, Format, error) {
	if !d.started && IsWAV(chunk) {
		pcm, format, err := DecodeWAV(chunk, d.format)
		if err != nil {
			return nil, Format{}, err
		}
		d.format = format
		d.started = true
		return pcm, format, nil
	}
	d.started = true
	return chunk, d.format, nil
}

// Reset prepares the decoder for the next turn.
func (d *VoiceDecoder) Reset() {
	d.format = DefaultVoiceFormat
	d.started = false
}
