package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"gocv.io/x/gocv"
)

var tracer = otel.Tracer("github.com/khaledhikmat/snap-go/pipeline")

// FrameHandler consumes frames from the dispatcher. HandleFrame must treat
// the frame as read-only and must not keep it after returning unless it
// retains or clones it.
type FrameHandler interface {
	Name() string
	HandleFrame(ctx context.Context, frame *Frame) error
}

// Saver persists an image to a path template and reports the path written.
type Saver interface {
	Save(img gocv.Mat, pathTemplate string) (string, error)
}

// Stopper is the slice of the shutdown coordinator handlers depend on.
type Stopper interface {
	RequestStop(reason string) bool
	IsStopRequested() bool
}

// FrameReader is a capture device. *gocv.VideoCapture satisfies it.
type FrameReader interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens a capture device on demand.
type Opener func() (FrameReader, error)
