package vps

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/saker-ai/vps-client/internal/workqueue"
)

// Dispatcher runs observer callbacks. Callbacks for one session are handed
// over in arrival order; a Dispatcher must run them in that order.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(fn func()) { fn() }

// InlineDispatcher runs callbacks on the engine worker goroutine. Callbacks
// must not block and must not call Engine.Close.
var InlineDispatcher Dispatcher = inlineDispatcher{}

// SerialDispatcher runs callbacks one at a time on its own goroutine.
type SerialDispatcher struct {
	queue *workqueue.Serial
}

// NewSerialDispatcher starts a private callback goroutine.
func NewSerialDispatcher(name string, logger *zap.Logger) *SerialDispatcher {
	return &SerialDispatcher{queue: workqueue.NewSerial(name, logger)}
}

// Dispatch queues fn.
func (d *SerialDispatcher) Dispatch(fn func()) { d.queue.Dispatch(fn) }

// Flush waits until every callback queued so far has run.
func (d *SerialDispatcher) Flush(ctx context.Context) error { return d.queue.Flush(ctx) }

// Close runs the remaining callbacks and stops the goroutine.
func (d *SerialDispatcher) Close(ctx context.Context) error { return d.queue.Close(ctx) }

var (
	mainOnce       sync.Once
	mainDispatcher *SerialDispatcher
)

// MainDispatcher returns the process-wide callback queue used by sessions
// that were not given a Dispatcher.
func MainDispatcher() *SerialDispatcher {
	mainOnce.Do(func() {
		mainDispatcher = NewSerialDispatcher("vps-main", nil)
	})
	return mainDispatcher
}
