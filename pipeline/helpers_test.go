package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khaledhikmat/snap-go/model"
	"github.com/khaledhikmat/snap-go/service/inference"
	"github.com/khaledhikmat/snap-go/service/lgr"
	"gocv.io/x/gocv"
)

// --- Log capture ---

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogs routes lgr.Logger to a buffer at debug level for the test.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := lgr.Logger
	lgr.Logger = lgr.New(lgr.Options{Format: "json", Level: slog.LevelDebug, Out: buf})
	t.Cleanup(func() { lgr.Logger = prev })
	return buf
}

func countLines(logs *syncBuffer, msg string) int {
	return strings.Count(logs.String(), `"msg":"`+msg+`"`)
}

// --- Frames ---

func newTestMat() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
}

func newTestFrame(seq uint64) *Frame {
	return NewFrame(newTestMat(), seq)
}

// --- Detectors ---

type stubDetector struct {
	regions []model.DetectedRegion
	err     error
	panics  atomic.Bool

	// when not nil, Detect signals entered and waits for release
	entered chan struct{}
	release chan struct{}

	calls     atomic.Int32
	annotated atomic.Int32
}

var _ inference.IService = (*stubDetector)(nil)

func (d *stubDetector) Name() string { return "stub" }

func (d *stubDetector) Detect(_ gocv.Mat, _ float32) ([]model.DetectedRegion, error) {
	d.calls.Add(1)
	if d.entered != nil {
		d.entered <- struct{}{}
		<-d.release
	}
	if d.panics.Load() {
		panic("detector exploded")
	}
	return d.regions, d.err
}

func (d *stubDetector) Annotate(frame gocv.Mat, _ []model.DetectedRegion) gocv.Mat {
	d.annotated.Add(1)
	return frame.Clone()
}

func (d *stubDetector) Close() error { return nil }

func faceRegion() []model.DetectedRegion {
	return []model.DetectedRegion{{Rect: image.Rect(5, 5, 20, 20), Confidence: 0.99}}
}

// --- Saver ---

type stubSaver struct {
	mu    sync.Mutex
	err   error
	paths []string
}

func (s *stubSaver) Save(_ gocv.Mat, pathTemplate string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	path := ResolvePath(pathTemplate, time.Date(2024, 7, 28, 0, 55, 51, 857300000, time.UTC))
	s.paths = append(s.paths, path)
	return path, nil
}

func (s *stubSaver) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// --- Handlers ---

type funcHandler struct {
	name string
	fn   func(ctx context.Context, frame *Frame) error
}

func (h *funcHandler) Name() string { return h.name }

func (h *funcHandler) HandleFrame(ctx context.Context, frame *Frame) error {
	return h.fn(ctx, frame)
}

var errBoom = errors.New("boom")

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
