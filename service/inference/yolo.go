package inference

import (
	"image"
	"os"
	"strings"
	"sync"

	"github.com/khaledhikmat/snap-go/model"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

const (
	yoloInputSize = 640
	// Rows whose objectness is below this are not worth decoding
	yoloObjectThreshold = 0.25
)

type yoloService struct {
	// WARNING: net is not thread-safe!!!
	mu      sync.Mutex
	net     gocv.Net
	labels  []string
	classes map[string]bool
}

// NewYolo loads a YOLOv5 ONNX model and its class labels, one per line.
// Only the given classes are reported; "person" when none are given. The
// threshold passed to Detect is the final confidence (objectness times
// class score).
func NewYolo(modelPath, labelsPath string, classes ...string) (IService, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, xerrors.Errorf("no yolo5 model exists: %w", err)
	}

	data, err := os.ReadFile(labelsPath)
	if err != nil {
		return nil, xerrors.Errorf("error reading yolo5 labels: %w", err)
	}
	labels := strings.Split(strings.TrimSpace(string(data)), "\n")
	for i := range labels {
		labels[i] = strings.TrimSpace(labels[i])
	}

	if len(classes) == 0 {
		classes = []string{"person"}
	}
	allowed := map[string]bool{}
	for _, c := range classes {
		allowed[strings.ToLower(c)] = true
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, xerrors.Errorf("error reading yolo5 model %s", modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, xerrors.Errorf("error setting backend: %w", err)
	}

	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, xerrors.Errorf("error setting target: %w", err)
	}

	return &yoloService{
		net:     net,
		labels:  labels,
		classes: allowed,
	}, nil
}

func (svc *yoloService) Name() string {
	return "yolo5"
}

func (svc *yoloService) Detect(frame gocv.Mat, threshold float32) ([]model.DetectedRegion, error) {
	if frame.Empty() {
		return nil, xerrors.New("empty frame")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(yoloInputSize, yoloInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	svc.net.SetInput(blob, "")

	output := svc.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, xerrors.Errorf("unexpected DNN output dims: %v", dims)
	}

	reshaped := output.Reshape(1, dims[1])
	defer reshaped.Close()
	if reshaped.Empty() || reshaped.Rows() == 0 || reshaped.Cols() < 5 {
		return nil, xerrors.New("reshape failed or invalid dimensions")
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	regions := []model.DetectedRegion{}
	for i := 0; i < reshaped.Rows(); i++ {
		row := reshaped.RowRange(i, i+1)
		data, err := row.DataPtrFloat32()
		if err != nil {
			row.Close()
			continue
		}

		region, ok := decodeYoloRow(data, svc.labels, svc.classes, frame.Cols(), frame.Rows(), threshold)
		row.Close()
		if !ok {
			continue
		}

		region.Rect = region.Rect.Intersect(bounds)
		if !region.Rect.Empty() {
			regions = append(regions, region)
		}
	}

	return regions, nil
}

func (svc *yoloService) Annotate(frame gocv.Mat, regions []model.DetectedRegion) gocv.Mat {
	return markRegions(frame, regions)
}

func (svc *yoloService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.net.Close()
}

// decodeYoloRow turns one output row (cx, cy, w, h, objectness, class
// scores...) into a region when its best allowed class clears threshold.
func decodeYoloRow(data []float32, labels []string, classes map[string]bool, width, height int, threshold float32) (model.DetectedRegion, bool) {
	if len(data) < 5 {
		return model.DetectedRegion{}, false
	}

	objectConfidence := data[4] // objectness
	if objectConfidence < yoloObjectThreshold {
		return model.DetectedRegion{}, false
	}

	classScores := data[5:]
	if len(classScores) != len(labels) {
		return model.DetectedRegion{}, false
	}

	classID := -1
	classConfidence := float32(0.0)
	for j, score := range classScores {
		if !classes[strings.ToLower(labels[j])] {
			continue
		}
		if score > classConfidence {
			classConfidence = score
			classID = j
		}
	}

	finalConf := objectConfidence * classConfidence
	if classID == -1 || finalConf < threshold {
		return model.DetectedRegion{}, false
	}

	cx := data[0] * float32(width)
	cy := data[1] * float32(height)
	w := data[2] * float32(width)
	h := data[3] * float32(height)
	x := int(cx - w/2)
	y := int(cy - h/2)

	return model.DetectedRegion{
		Rect:       image.Rect(x, y, x+int(w), y+int(h)),
		Confidence: finalConf,
	}, true
}
