package inference

import (
	"github.com/khaledhikmat/snap-go/model"
	"gocv.io/x/gocv"
)

// IService is the detector capability consumed by frame handlers.
// Implementations are not safe for concurrent use; each handler owns one.
type IService interface {
	Name() string
	// Detect never mutates frame.
	Detect(frame gocv.Mat, threshold float32) ([]model.DetectedRegion, error)
	// Annotate returns a marked copy. The caller closes it.
	Annotate(frame gocv.Mat, regions []model.DetectedRegion) gocv.Mat
	Close() error
}
