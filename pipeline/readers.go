package pipeline

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/khaledhikmat/snap-go/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// OpenWebcam opens a local video device and requests the given geometry.
// Drivers may settle on something else; read the properties back to know.
func OpenWebcam(device, width, height, fps int) (*gocv.VideoCapture, error) {
	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, xerrors.Errorf("error opening video device %d: %w", device, err)
	}

	if !webcam.IsOpened() {
		webcam.Close()
		return nil, xerrors.Errorf("no video device found at %d", device)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	webcam.Set(gocv.VideoCaptureFPS, float64(fps))

	lgr.Logger.Debug(
		"video device configured",
		slog.Int("device", device),
		slog.Float64("width", webcam.Get(gocv.VideoCaptureFrameWidth)),
		slog.Float64("height", webcam.Get(gocv.VideoCaptureFrameHeight)),
		slog.Float64("fps", webcam.Get(gocv.VideoCaptureFPS)),
	)
	return webcam, nil
}

func WebcamOpener(device, width, height, fps int) Opener {
	return func() (FrameReader, error) {
		webcam, err := OpenWebcam(device, width, height, fps)
		if err != nil {
			return nil, err
		}
		return webcam, nil
	}
}

// RandomReader produces noise frames at a fixed rate. It stands in for a
// camera when none is attached.
type RandomReader struct {
	width, height int
	interval      time.Duration
	last          time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomReader(width, height, fps int) *RandomReader {
	interval := time.Duration(0)
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &RandomReader{
		width:    width,
		height:   height,
		interval: interval,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func RandomOpener(width, height, fps int) Opener {
	return func() (FrameReader, error) {
		return NewRandomReader(width, height, fps), nil
	}
}

func (r *RandomReader) Read(m *gocv.Mat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if wait := r.interval - time.Since(r.last); wait > 0 {
		time.Sleep(wait)
	}
	r.last = time.Now()

	// Create a height x width image with 3 channels (BGR)
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(
		float64(r.rnd.Intn(256)),
		float64(r.rnd.Intn(256)),
		float64(r.rnd.Intn(256)),
		0,
	), r.height, r.width, gocv.MatTypeCV8UC3)
	defer img.Close()

	img.CopyTo(m)
	return true
}

func (r *RandomReader) Close() error {
	return nil
}
