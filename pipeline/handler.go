package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/khaledhikmat/snap-go/model"
	"github.com/khaledhikmat/snap-go/service/inference"
	"github.com/khaledhikmat/snap-go/service/lgr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type HandlerOptions struct {
	// SavePath is a path template, see ResolvePath.
	SavePath string
	// ShouldMarkFaces draws boxes and confidence labels before saving.
	ShouldMarkFaces bool
	// ConfidenceThreshold is opaque and detector specific.
	ConfidenceThreshold float32
}

// PersistenceHandler detects objects on a frame and, on the first
// qualifying detection, saves the (optionally marked) frame and asks the
// pipeline to stop. Frames arriving while a previous one is still being
// processed are dropped.
type PersistenceHandler struct {
	name     string
	detector inference.IService
	saver    Saver
	stopper  Stopper
	opts     HandlerOptions
	gate     DetectionGate

	frames     atomic.Int64
	dropped    atomic.Int64
	skipped    atomic.Int64
	detections atomic.Int64
	saves      atomic.Int64
	errors     atomic.Int64

	mu            sync.Mutex
	lastSavedPath string
}

func NewPersistenceHandler(name string, detector inference.IService, saver Saver, stopper Stopper, opts HandlerOptions) *PersistenceHandler {
	return &PersistenceHandler{
		name:     name,
		detector: detector,
		saver:    saver,
		stopper:  stopper,
		opts:     opts,
	}
}

func (h *PersistenceHandler) Name() string {
	return h.name
}

func (h *PersistenceHandler) HandleFrame(ctx context.Context, frame *Frame) error {
	if h.stopper.IsStopRequested() {
		h.skipped.Add(1)
		return nil
	}

	// Try to enter the gate. If it's already taken, drop this frame.
	if !h.gate.TryEnter() {
		h.dropped.Add(1)
		lgr.Logger.DebugContext(ctx,
			"frame handling is already in progress, skipping frame",
			slog.String("handler", h.name),
			slog.Uint64("seq", frame.Seq),
		)
		return nil
	}
	// Release the gate so that the next frame can be handled.
	defer h.gate.Leave()

	// The previous holder may have saved and stopped since the first check
	if h.stopper.IsStopRequested() {
		h.skipped.Add(1)
		return nil
	}

	h.frames.Add(1)

	ctx, span := tracer.Start(ctx, "PersistenceHandler.HandleFrame", trace.WithAttributes(
		attribute.String("handler", h.name),
		attribute.Int64("frame.seq", int64(frame.Seq)),
	))
	defer span.End()

	err := h.process(ctx, frame)
	if err != nil {
		h.errors.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (h *PersistenceHandler) process(ctx context.Context, frame *Frame) error {
	regions, err := h.detector.Detect(frame.Mat(), h.opts.ConfidenceThreshold)
	if err != nil {
		return &DetectionError{Handler: h.name, Seq: frame.Seq, Err: err}
	}

	if len(regions) == 0 {
		lgr.Logger.DebugContext(ctx,
			"no detection",
			slog.String("handler", h.name),
			slog.Uint64("seq", frame.Seq),
		)
		return nil
	}

	h.detections.Add(1)
	lgr.Logger.InfoContext(ctx,
		"detections found",
		slog.String("handler", h.name),
		slog.String("detector", h.detector.Name()),
		slog.Int("count", len(regions)),
		slog.Float64("bestConfidence", float64(bestConfidence(regions))),
	)

	img := frame.Mat()
	if h.opts.ShouldMarkFaces {
		// Annotate draws on a private copy, the shared frame stays untouched
		marked := h.detector.Annotate(frame.Mat(), regions)
		defer marked.Close()
		img = marked
	}

	path, err := h.saver.Save(img, h.opts.SavePath)
	if err != nil {
		// No stop request: a later qualifying frame gets another chance
		return err
	}

	h.saves.Add(1)
	h.mu.Lock()
	h.lastSavedPath = path
	h.mu.Unlock()

	h.stopper.RequestStop("handler " + h.name + " saved " + path)
	return nil
}

func (h *PersistenceHandler) Stats() model.HandlerStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return model.HandlerStats{
		Name:          h.name,
		Frames:        h.frames.Load(),
		Dropped:       h.dropped.Load(),
		Skipped:       h.skipped.Load(),
		Detections:    h.detections.Load(),
		Saves:         h.saves.Load(),
		Errors:        h.errors.Load(),
		LastSavedPath: h.lastSavedPath,
	}
}

func bestConfidence(regions []model.DetectedRegion) float32 {
	best := float32(0)
	for _, r := range regions {
		if r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}
