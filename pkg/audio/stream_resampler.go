package audio

// StreamResampler keeps resampling state across capture buffers.
type StreamResampler struct {
	resampler *soxrStreamResampler
	outBuf    []float32
}

// NewStreamResampler creates a streaming resampler for continuous audio.
func NewStreamResampler(inRate, outRate int) (*StreamResampler, error) {
	r, err := newSoxrStreamResampler(inRate, outRate)
	if err != nil {
		return nil, err
	}
	return &StreamResampler{resampler: r}, nil
}

// Close releases underlying resampler.
func (s *StreamResampler) Close() {
	if s == nil {
		return
	}
	if s.resampler != nil {
		s.resampler.Close()
		s.resampler = nil
	}
	s.outBuf = nil
}

// AppendFloat32 resamples mono float samples in [-1, 1].
func (s *StreamResampler) AppendFloat32(samples []float32) error {
	if s == nil || s.resampler == nil || len(samples) == 0 {
		return nil
	}
	out, err := s.resampler.Process(samples)
	if err != nil {
		return err
	}
	s.outBuf = append(s.outBuf, out...)
	return nil
}

// Flush pushes out the samples still held by the resampler.
func (s *StreamResampler) Flush() error {
	if s == nil || s.resampler == nil {
		return nil
	}
	out, err := s.resampler.Flush()
	if err != nil {
		return err
	}
	s.outBuf = append(s.outBuf, out...)
	return nil
}

// PopAll returns every buffered sample as little-endian PCM16 bytes.
func (s *StreamResampler) PopAll() []byte {
	if s == nil || len(s.outBuf) == 0 {
		return nil
	}
	out := Float32SliceToPCM16Bytes(s.outBuf)
	s.outBuf = s.outBuf[:0]
	return out
}
