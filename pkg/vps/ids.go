package vps

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
)

// IDSource generates session and transient message ids.
type IDSource interface {
	NextID() int64
}

// IDSourceFunc adapts a function to IDSource.
type IDSourceFunc func() int64

// NextID calls f.
func (f IDSourceFunc) NextID() int64 { return f() }

// RandomIDs draws ids uniformly from [1, MaxInt32). Collisions are possible
// and accepted.
type RandomIDs struct{}

// NextID returns a pseudo-random positive id.
func (RandomIDs) NextID() int64 {
	return int64(rand.Int32N(math.MaxInt32-1)) + 1
}

// SequentialIDs hands out 1, 2, 3 and so on.
type SequentialIDs struct {
	next atomic.Int64
}

// NextID returns the next id.
func (s *SequentialIDs) NextID() int64 {
	return s.next.Add(1)
}
