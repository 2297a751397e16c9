package audio

import "sync"

// slicePool recycles scratch slices. Pointers are pooled so Put does not
// allocate.
type slicePool[T any] struct {
	pool sync.Pool
}

func (p *slicePool[T]) get(size int) []T {
	if size <= 0 {
		return nil
	}
	if v, ok := p.pool.Get().(*[]T); ok && cap(*v) >= size {
		return (*v)[:size]
	}
	return make([]T, size)
}

func (p *slicePool[T]) put(buf []T) {
	if cap(buf) == 0 {
		return
	}
	buf = buf[:0]
	p.pool.Put(&buf)
}

var (
	int16Pool   slicePool[int16]
	float32Pool slicePool[float32]
)

// AcquireInt16 returns an int16 slice with length size.
func AcquireInt16(size int) []int16 { return int16Pool.get(size) }

// ReleaseInt16 puts an int16 slice back to the pool.
func ReleaseInt16(buf []int16) { int16Pool.put(buf) }

// AcquireFloat32 returns a float32 slice with length size.
func AcquireFloat32(size int) []float32 { return float32Pool.get(size) }

// ReleaseFloat32 puts a float32 slice back to the pool.
func ReleaseFloat32(buf []float32) { float32Pool.put(buf) }
