package workqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestSerialRunsInOrder(t *testing.T) {
	q := NewSerial("test", zaptest.NewLogger(t))
	defer q.Close(context.Background())

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("ran=%d, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran as %d, want FIFO order", i, v)
		}
	}
}

func TestSerialSurvivesPanic(t *testing.T) {
	q := NewSerial("test", zaptest.NewLogger(t))
	defer q.Close(context.Background())

	q.Submit(func() { panic("boom") })
	ran := make(chan struct{})
	q.Submit(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task after panic did not run")
	}
}

func TestSerialCloseDrainsAndRejects(t *testing.T) {
	q := NewSerial("test", zaptest.NewLogger(t))
	ran := false
	q.Submit(func() { ran = true })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !ran {
		t.Fatal("queued task did not run before Close returned")
	}
	if q.Submit(func() {}) {
		t.Fatal("Submit after Close=true, want false")
	}
}
