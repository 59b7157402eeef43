package inference

import (
	"image"
	"os"

	"github.com/khaledhikmat/snap-go/model"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

const (
	ssdName      = "ssd"
	ssdInputSize = 300
	// each detection row: [imageId, label, confidence, left, top, right, bottom]
	ssdRowSize = 7
)

type ssdService struct {
	net gocv.Net
}

// NewSSD loads the res10 300x300 SSD face model from a Caffe prototxt and
// weights file. The threshold passed to Detect is the minimum confidence.
func NewSSD(prototxt, caffeModel string) (IService, error) {
	for _, path := range []string{prototxt, caffeModel} {
		if _, err := os.Stat(path); err != nil {
			return nil, xerrors.Errorf("ssd model file %s: %w", path, err)
		}
	}

	net := gocv.ReadNetFromCaffe(prototxt, caffeModel)
	if net.Empty() {
		return nil, xerrors.Errorf("error reading ssd network from %s", caffeModel)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, xerrors.Errorf("error setting backend: %w", err)
	}

	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, xerrors.Errorf("error setting target: %w", err)
	}

	return &ssdService{net: net}, nil
}

func (svc *ssdService) Name() string {
	return ssdName
}

func (svc *ssdService) Detect(frame gocv.Mat, threshold float32) ([]model.DetectedRegion, error) {
	if frame.Empty() {
		return nil, xerrors.New("ssd detector received an empty frame")
	}

	blob := gocv.BlobFromImage(frame, 1.0, image.Pt(ssdInputSize, ssdInputSize), gocv.NewScalar(104.0, 177.0, 123.0, 0), false, false)
	defer blob.Close()

	svc.net.SetInput(blob, "")

	results := svc.net.Forward("")
	defer results.Close()

	if results.Empty() {
		return nil, xerrors.New("ssd network produced no output")
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	cols, rows := float32(frame.Cols()), float32(frame.Rows())

	regions := []model.DetectedRegion{}
	for i := 0; i+ssdRowSize <= results.Total(); i += ssdRowSize {
		confidence := results.GetFloatAt(0, i+2)
		if !(confidence > threshold) {
			continue
		}

		rect := image.Rect(
			int(results.GetFloatAt(0, i+3)*cols),
			int(results.GetFloatAt(0, i+4)*rows),
			int(results.GetFloatAt(0, i+5)*cols),
			int(results.GetFloatAt(0, i+6)*rows),
		).Intersect(bounds)
		if rect.Empty() {
			continue
		}

		regions = append(regions, model.DetectedRegion{Rect: rect, Confidence: confidence})
	}

	return regions, nil
}

func (svc *ssdService) Annotate(frame gocv.Mat, regions []model.DetectedRegion) gocv.Mat {
	return markRegions(frame, regions)
}

func (svc *ssdService) Close() error {
	return svc.net.Close()
}
