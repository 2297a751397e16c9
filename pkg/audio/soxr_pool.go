package audio

import (
	"errors"
	"sync"

	resampler "github.com/godeps/go-audio-soxr"
)

const captureQuality = resampler.QualityHigh

var errResamplerClosed = errors.New("audio: resampler closed")

// soxrKey identifies interchangeable resampler engines.
type soxrKey struct {
	inRate  int
	outRate int
	quality resampler.QualityPreset
}

// soxrPools holds one *sync.Pool per soxrKey. Engines are reset before
// they go back.
var soxrPools sync.Map

func (k soxrKey) pool() *sync.Pool {
	if pool, ok := soxrPools.Load(k); ok {
		return pool.(*sync.Pool)
	}
	actual, _ := soxrPools.LoadOrStore(k, &sync.Pool{})
	return actual.(*sync.Pool)
}

func (k soxrKey) acquire() (*resampler.SimpleResamplerFloat32, error) {
	if r, ok := k.pool().Get().(*resampler.SimpleResamplerFloat32); ok && r != nil {
		return r, nil
	}
	return resampler.NewEngineFloat32(float64(k.inRate), float64(k.outRate), k.quality)
}

func (k soxrKey) release(r *resampler.SimpleResamplerFloat32) {
	r.Reset()
	k.pool().Put(r)
}

// soxrStreamResampler is a pooled soxr engine bound to one stream.
type soxrStreamResampler struct {
	key soxrKey
	r   *resampler.SimpleResamplerFloat32
}

func newSoxrStreamResampler(inRate, outRate int) (*soxrStreamResampler, error) {
	key := soxrKey{inRate: inRate, outRate: outRate, quality: captureQuality}
	r, err := key.acquire()
	if err != nil {
		return nil, err
	}
	return &soxrStreamResampler{key: key, r: r}, nil
}

func (s *soxrStreamResampler) Process(input []float32) ([]float32, error) {
	if s == nil || s.r == nil {
		return nil, errResamplerClosed
	}
	return s.r.Process(input)
}

func (s *soxrStreamResampler) Flush() ([]float32, error) {
	if s == nil || s.r == nil {
		return nil, errResamplerClosed
	}
	return s.r.Flush()
}

// Close returns the engine to its pool. The stream is unusable afterwards.
func (s *soxrStreamResampler) Close() {
	if s == nil || s.r == nil {
		return
	}
	s.key.release(s.r)
	s.r = nil
}
