package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/khaledhikmat/snap-go/service/lgr"
)

// ShutdownCoordinator is the exactly-once "stop requested" signal that ends
// the capture loop after a successful detect-and-save cycle.
type ShutdownCoordinator struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
	reason  atomic.Value
}

func NewShutdownCoordinator(parent context.Context) *ShutdownCoordinator {
	ctx, cancel := context.WithCancel(parent)
	return &ShutdownCoordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// RequestStop is idempotent. It returns true only for the call that made
// the transition.
func (c *ShutdownCoordinator) RequestStop(reason string) bool {
	if !c.stopped.CompareAndSwap(false, true) {
		return false
	}

	c.reason.Store(reason)
	lgr.Logger.Info(
		"pipeline stop requested",
		slog.String("reason", reason),
	)
	c.cancel()
	return true
}

// IsStopRequested also reports true once the parent context is cancelled,
// so handlers decline new work on SIGINT as well.
func (c *ShutdownCoordinator) IsStopRequested() bool {
	return c.stopped.Load() || c.ctx.Err() != nil
}

func (c *ShutdownCoordinator) Reason() string {
	if r, ok := c.reason.Load().(string); ok {
		return r
	}
	return ""
}

func (c *ShutdownCoordinator) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Context is cancelled when a stop is requested or the parent is cancelled.
func (c *ShutdownCoordinator) Context() context.Context {
	return c.ctx
}
