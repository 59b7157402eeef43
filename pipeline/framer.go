package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/snap-go/model"
	"github.com/khaledhikmat/snap-go/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// CaptureSource owns a capture device and pushes every frame it reads to
// the dispatcher. It is the only component that touches the device.
type CaptureSource struct {
	name            string
	open            Opener
	dispatcher      *Dispatcher
	coordinator     *ShutdownCoordinator
	maxReadFailures int

	// lifecycle serializes Open, Start, Stop and Close. It is held while
	// Stop waits for the loop, so the loop itself only ever takes mu.
	lifecycle sync.Mutex
	reader    FrameReader
	capturing bool
	cancel    context.CancelFunc

	mu        sync.Mutex
	done      chan struct{}
	err       error
	startTime time.Time
	endTime   time.Time

	frames atomic.Int64
	errors atomic.Int64
}

// NewCaptureSource does not touch the device; Open or Start does.
// maxReadFailures consecutive failed reads end the capture loop with a
// DeviceError.
func NewCaptureSource(name string, open Opener, dispatcher *Dispatcher, coordinator *ShutdownCoordinator, maxReadFailures int) *CaptureSource {
	if maxReadFailures <= 0 {
		maxReadFailures = 1
	}
	return &CaptureSource{
		name:            name,
		open:            open,
		dispatcher:      dispatcher,
		coordinator:     coordinator,
		maxReadFailures: maxReadFailures,
	}
}

func (s *CaptureSource) Name() string {
	return s.name
}

// Open opens the device if it is not open yet.
func (s *CaptureSource) Open() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.openLocked()
}

func (s *CaptureSource) openLocked() error {
	if s.reader != nil {
		return nil
	}

	reader, err := s.open()
	if err != nil {
		return &DeviceError{Source: s.name, Err: err}
	}

	s.reader = reader
	lgr.Logger.Info("capture device opened", slog.String("source", s.name))
	return nil
}

// Start opens the device when needed and launches the capture loop. It
// returns immediately; use Wait to block until capture ends. Starting a
// running source is a no-op.
func (s *CaptureSource) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.reapLocked()
	if s.capturing {
		lgr.Logger.Debug("attempted to start capturing while already capturing", slog.String("source", s.name))
		return nil
	}

	if err := s.openLocked(); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.done = done
	s.err = nil
	s.startTime = time.Now()
	s.mu.Unlock()

	s.cancel = cancel
	s.capturing = true

	go s.loop(loopCtx, s.reader, done)

	lgr.Logger.Info("capture started", slog.String("source", s.name))
	return nil
}

// Stop ends the capture loop and waits for it to exit. Stopping a stopped
// source is a no-op. The device stays open until Close.
func (s *CaptureSource) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.capturing {
		lgr.Logger.Debug("attempted to stop capturing but wasn't capturing", slog.String("source", s.name))
		return
	}

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	s.cancel()
	<-done
	s.capturing = false

	lgr.Logger.Info("capture stopped", slog.String("source", s.name))
}

// Wait blocks until the capture loop exits, either because of a stop
// request, cancellation or a device failure. It returns the device error,
// if any. Wait on a source that was never started returns nil.
func (s *CaptureSource) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the source if it is running and releases the device.
func (s *CaptureSource) Close() error {
	s.Stop()

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.reader == nil {
		return nil
	}

	err := s.reader.Close()
	s.reader = nil
	lgr.Logger.Info("capture device released", slog.String("source", s.name))
	return err
}

func (s *CaptureSource) Capturing() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.reapLocked()
	return s.capturing
}

// reapLocked marks the source stopped when the loop has already exited on
// its own, after a device failure, a stop request or cancellation.
// Callers hold lifecycle.
func (s *CaptureSource) reapLocked() {
	if !s.capturing {
		return
	}

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.cancel()
		s.cancel = nil
		s.capturing = false
		lgr.Logger.Debug("capture loop already exited", slog.String("source", s.name))
	default:
	}
}

// Capture frames, route them to the dispatcher and monitor cancellations
func (s *CaptureSource) loop(ctx context.Context, reader FrameReader, done chan struct{}) {
	var loopErr error
	defer func() {
		s.mu.Lock()
		s.err = loopErr
		s.endTime = time.Now()
		s.mu.Unlock()
		close(done)
	}()

	var seq uint64
	failures := 0

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info("capture loop context cancelled", slog.String("source", s.name))
			return
		case <-s.coordinator.Done():
			lgr.Logger.Info("capture loop observed stop request", slog.String("source", s.name))
			return
		default:
		}

		img := gocv.NewMat()
		if ok := reader.Read(&img); !ok || img.Empty() {
			img.Close() // Crucial to close the image to avoid memory leaks
			s.errors.Add(1)
			failures++
			if failures >= s.maxReadFailures {
				loopErr = &DeviceError{Source: s.name, Err: xerrors.Errorf("%d consecutive frame reads failed", failures)}
				lgr.Logger.Error(
					"capture device stopped producing frames",
					slog.String("source", s.name),
					slog.Any("error", loopErr),
				)
				return
			}
			continue
		}
		failures = 0

		seq++
		s.frames.Add(1)

		frame := NewFrame(img, seq)
		s.dispatcher.Dispatch(ctx, frame)
		frame.Release()
	}
}

func (s *CaptureSource) Stats() model.CaptureStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	// endTime predates startTime while the loop is running
	end := s.endTime
	if end.Before(s.startTime) {
		end = time.Now()
	}

	uptime := int64(0)
	if !s.startTime.IsZero() {
		uptime = int64(end.Sub(s.startTime).Seconds())
	}

	frames := s.frames.Load()
	fps := 0
	if uptime > 0 {
		fps = int(frames / uptime)
	}

	return model.CaptureStats{
		Name:   s.name,
		Frames: frames,
		Errors: s.errors.Load(),
		FPS:    fps,
		Uptime: uptime,
	}
}
