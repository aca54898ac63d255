package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer flushes buffered log records on shutdown.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler decouples log emission from the request path: records go
// into a bounded queue and a background goroutine writes them out. When the
// queue is full the record is dropped rather than blocking the caller.
type AsyncHandler struct {
	inner slog.Handler

	queue   chan slog.Record
	done    chan struct{}
	once    *sync.Once
	dropped *atomic.Int64
}

// NewAsyncHandler wraps inner with a queue of the given capacity. workers
// sets how many goroutines drain it; one is enough for a single process
// writing to stdout.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner:   inner,
		queue:   make(chan slog.Record, capacity),
		done:    make(chan struct{}),
		once:    &sync.Once{},
		dropped: &atomic.Int64{},
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range h.queue {
				_ = h.inner.Handle(context.Background(), rec)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(h.done)
	}()
	return h
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record, dropping it when the queue is full.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	select {
	case h.queue <- rec:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs shares the queue; only the inner handler changes.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(h.inner.WithAttrs(attrs))
}

// WithGroup shares the queue; only the inner handler changes.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return h.derive(h.inner.WithGroup(name))
}

func (h *AsyncHandler) derive(inner slog.Handler) *AsyncHandler {
	return &AsyncHandler{
		inner:   inner,
		queue:   h.queue,
		done:    h.done,
		once:    h.once,
		dropped: h.dropped,
	}
}

// DroppedCount reports how many records the full queue discarded.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and blocks until the queue is drained.
func (h *AsyncHandler) Close() {
	h.once.Do(func() { close(h.queue) })
	<-h.done
}
