package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/snap-go/model"
	"github.com/khaledhikmat/snap-go/service/lgr"
)

// Dispatcher fans each captured frame out to every registered handler.
// Handlers run in their own goroutines, so a slow or failing handler never
// holds up its siblings or the capture loop.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []FrameHandler
	closed   bool

	errorStream chan interface{}
	inflight    sync.WaitGroup

	dispatched atomic.Int64
	failures   atomic.Int64
	panics     atomic.Int64
}

// NewDispatcher reports handler failures as model.CustomError on
// errorStream when it is not nil. Sends never block.
func NewDispatcher(errorStream chan interface{}) *Dispatcher {
	return &Dispatcher{
		errorStream: errorStream,
	}
}

func (d *Dispatcher) Register(handler FrameHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range d.handlers {
		if h.Name() == handler.Name() {
			lgr.Logger.Warn("frame handler already registered", slog.String("name", handler.Name()))
			return
		}
	}

	d.handlers = append(d.handlers, handler)
	lgr.Logger.Info(
		"frame handler registered",
		slog.String("name", handler.Name()),
		slog.Int("handlers", len(d.handlers)),
	)
}

func (d *Dispatcher) Handlers() []FrameHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]FrameHandler(nil), d.handlers...)
}

// Dispatch returns without waiting for handlers. Each handler goroutine
// holds its own reference to frame; the caller keeps (and releases) its own.
// Frames dispatched after Close are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, frame *Frame) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		lgr.Logger.Debug("dispatcher closed, ignoring frame", slog.Uint64("seq", frame.Seq))
		return
	}

	d.dispatched.Add(1)
	for _, h := range d.handlers {
		d.inflight.Add(1)
		go d.run(ctx, h, frame.Retain())
	}
}

// Close stops accepting frames. Handlers already running are not
// interrupted; use Wait for them.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *Dispatcher) run(ctx context.Context, h FrameHandler, frame *Frame) {
	defer d.inflight.Done()
	defer frame.Release()

	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.report(ctx, h, frame, fmt.Errorf("panic: %v", r), "frame handler panicked")
		}
	}()

	if err := h.HandleFrame(ctx, frame); err != nil {
		d.failures.Add(1)
		d.report(ctx, h, frame, err, "frame handler failed")
	}
}

func (d *Dispatcher) report(ctx context.Context, h FrameHandler, frame *Frame, err error, msg string) {
	lgr.Logger.ErrorContext(ctx,
		msg,
		slog.String("handler", h.Name()),
		slog.Uint64("seq", frame.Seq),
		slog.Any("error", err),
	)

	if d.errorStream == nil {
		return
	}

	select {
	case d.errorStream <- model.GenError("frame_dispatcher",
		err,
		map[string]interface{}{"handler": h.Name(), "seq": frame.Seq},
		"%s", msg):
	default:
		lgr.Logger.Warn("errorStream full, dropping error", slog.String("handler", h.Name()))
	}
}

// Wait blocks until in-flight handlers return or timeout elapses. It
// reports whether everything finished. Frames must not be dispatched
// while Wait runs; Close first when the producer may still be active.
func (d *Dispatcher) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (d *Dispatcher) Stats() model.DispatcherStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return model.DispatcherStats{
		Dispatched: d.dispatched.Load(),
		Failures:   d.failures.Load(),
		Panics:     d.panics.Load(),
		Handlers:   len(d.handlers),
	}
}
