package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// TargetSampleRate is the capture rate the VPS recognizer expects.
const TargetSampleRate = 16000

// ErrInvalidFormat reports an unusable sample rate or channel count.
var ErrInvalidFormat = errors.New("audio: invalid format")

// Converter turns interleaved float capture at any rate into 16 kHz mono
// PCM16 little-endian bytes.
type Converter struct {
	inRate    int
	channels  int
	resampler *StreamResampler
}

// NewConverter creates a converter for the given capture format.
func NewConverter(inRate, channels int) (*Converter, error) {
	if inRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrInvalidFormat, inRate, channels)
	}
	c := &Converter{inRate: inRate, channels: channels}
	if inRate != TargetSampleRate {
		r, err := NewStreamResampler(inRate, TargetSampleRate)
		if err != nil {
			return nil, fmt.Errorf("create resampler %d->%d: %w", inRate, TargetSampleRate, err)
		}
		c.resampler = r
	}
	return c, nil
}

// InputRate returns the capture sample rate.
func (c *Converter) InputRate() int { return c.inRate }

// Convert consumes one capture buffer. A trailing partial frame is dropped.
// The result may be empty while the resampler fills up.
func (c *Converter) Convert(samples []float32) ([]byte, error) {
	mono := c.downmix(samples)
	if c.resampler == nil {
		pcm := Float32SliceToPCM16Bytes(mono)
		c.release(mono)
		return pcm, nil
	}
	err := c.resampler.AppendFloat32(mono)
	c.release(mono)
	if err != nil {
		return nil, err
	}
	return c.resampler.PopAll(), nil
}

// Flush returns the samples still held by the resampler.
func (c *Converter) Flush() ([]byte, error) {
	if c.resampler == nil {
		return nil, nil
	}
	if err := c.resampler.Flush(); err != nil {
		return nil, err
	}
	return c.resampler.PopAll(), nil
}

// Close releases the resampler.
func (c *Converter) Close() {
	c.resampler.Close()
	c.resampler = nil
}

func (c *Converter) downmix(samples []float32) []float32 {
	if c.channels == 1 {
		return samples
	}
	frames := len(samples) / c.channels
	mono := AcquireFloat32(frames)
	for i := range frames {
		var sum float32
		for ch := range c.channels {
			sum += samples[i*c.channels+ch]
		}
		mono[i] = sum / float32(c.channels)
	}
	return mono
}

func (c *Converter) release(mono []float32) {
	if c.channels != 1 {
		ReleaseFloat32(mono)
	}
}

// FloatSource yields interleaved float capture buffers; io.EOF ends the
// stream.
type FloatSource interface {
	ReadSamples(ctx context.Context) ([]float32, error)
}

// ConvertingSource reads a FloatSource and yields PCM16 chunks ready to be
// sent as voice.
type ConvertingSource struct {
	src     FloatSource
	conv    *Converter
	drained bool
}

// NewConvertingSource wraps src captured at inRate with channels channels.
func NewConvertingSource(src FloatSource, inRate, channels int) (*ConvertingSource, error) {
	conv, err := NewConverter(inRate, channels)
	if err != nil {
		return nil, err
	}
	return &ConvertingSource{src: src, conv: conv}, nil
}

// ReadChunk returns the next non-empty PCM16 chunk. At the end of the
// source it returns the resampler tail together with io.EOF.
func (s *ConvertingSource) ReadChunk(ctx context.Context) ([]byte, error) {
	if s.drained {
		return nil, io.EOF
	}
	for {
		samples, err := s.src.ReadSamples(ctx)
		if errors.Is(err, io.EOF) {
			s.drained = true
			tail, ferr := s.conv.Flush()
			if ferr != nil {
				return nil, ferr
			}
			return tail, io.EOF
		}
		if err != nil {
			return nil, err
		}
		pcm, err := s.conv.Convert(samples)
		if err != nil {
			return nil, err
		}
		if len(pcm) > 0 {
			return pcm, nil
		}
	}
}

// Close releases the converter.
func (s *ConvertingSource) Close() {
	s.conv.Close()
}
