// Package workqueue runs submitted functions one at a time, in submission
// order, on a dedicated goroutine.
package workqueue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Serial is an unbounded FIFO executor. Submit never blocks.
type Serial struct {
	name   string
	logger *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	closed  bool
	running bool
	done    chan struct{}
}

// NewSerial starts an executor. name only labels log lines.
func NewSerial(name string, logger *zap.Logger) *Serial {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Serial{
		name:   name,
		logger: logger,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// Submit queues fn. It reports false once the executor is closed.
func (s *Serial) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks, fn)
	s.mu.Unlock()
	s.cond.Signal()
	return true
}

// Dispatch queues fn, dropping it when closed.
func (s *Serial) Dispatch(fn func()) {
	if !s.Submit(fn) {
		s.logger.Debug("workqueue closed, task dropped", zap.String("queue", s.name))
	}
}

// Len returns the number of queued tasks not yet started.
func (s *Serial) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Flush blocks until every task submitted before the call has run.
func (s *Serial) Flush(ctx context.Context) error {
	ch := make(chan struct{})
	if !s.Submit(func() { close(ch) }) {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, runs what is already queued and waits for the
// loop to exit or ctx to end. Calling Close from a task deadlocks.
func (s *Serial) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Serial) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.tasks) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()
		s.run(fn)
	}
}

func (s *Serial) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("workqueue task panicked",
				zap.String("queue", s.name),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
