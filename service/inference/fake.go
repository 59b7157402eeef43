package inference

import (
	"github.com/khaledhikmat/snap-go/model"
	"gocv.io/x/gocv"
)

type fakeService struct {
	regions []model.DetectedRegion
}

// NewFake reports the given regions on every frame, minus those at or below
// the threshold. Useful with the random capture source.
func NewFake(regions ...model.DetectedRegion) IService {
	return &fakeService{
		regions: regions,
	}
}

func (svc *fakeService) Name() string {
	return "fake"
}

func (svc *fakeService) Detect(_ gocv.Mat, threshold float32) ([]model.DetectedRegion, error) {
	found := []model.DetectedRegion{}
	for _, r := range svc.regions {
		if r.Confidence > threshold {
			found = append(found, r)
		}
	}
	return found, nil
}

func (svc *fakeService) Annotate(frame gocv.Mat, regions []model.DetectedRegion) gocv.Mat {
	return markRegions(frame, regions)
}

func (svc *fakeService) Close() error {
	return nil
}
