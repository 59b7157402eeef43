package inference

import (
	"image"
	"os"

	"github.com/khaledhikmat/snap-go/model"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

const (
	cascadeName         = "cascade"
	cascadeMinNeighbors = 10
)

type cascadeService struct {
	classifier gocv.CascadeClassifier
}

// NewCascade loads a Haar cascade. The threshold passed to Detect is used as
// the cascade scale factor (for example 1.45), so it must be above 1.
// Cascades report no score; every region carries a confidence of 1.
func NewCascade(path string) (IService, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, xerrors.Errorf("cascade file %s: %w", path, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, xerrors.Errorf("error reading cascade file %s", path)
	}

	return &cascadeService{classifier: classifier}, nil
}

func (svc *cascadeService) Name() string {
	return cascadeName
}

func (svc *cascadeService) Detect(frame gocv.Mat, threshold float32) ([]model.DetectedRegion, error) {
	if frame.Empty() {
		return nil, xerrors.New("cascade detector received an empty frame")
	}
	if threshold <= 1 {
		return nil, xerrors.Errorf("cascade scale factor must be above 1, got %v", threshold)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	rects := svc.classifier.DetectMultiScaleWithParams(gray, float64(threshold), cascadeMinNeighbors, 0, image.Point{}, image.Point{})

	regions := make([]model.DetectedRegion, 0, len(rects))
	for _, rect := range rects {
		regions = append(regions, model.DetectedRegion{Rect: rect, Confidence: 1})
	}
	return regions, nil
}

func (svc *cascadeService) Annotate(frame gocv.Mat, regions []model.DetectedRegion) gocv.Mat {
	return markRegions(frame, regions)
}

func (svc *cascadeService) Close() error {
	return svc.classifier.Close()
}
