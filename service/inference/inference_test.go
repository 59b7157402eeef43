package inference

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/khaledhikmat/snap-go/model"
	"gocv.io/x/gocv"
)

func TestFakeDetectFiltersByThreshold(t *testing.T) {
	svc := NewFake(
		model.DetectedRegion{Rect: image.Rect(0, 0, 10, 10), Confidence: 0.97},
		model.DetectedRegion{Rect: image.Rect(20, 20, 40, 40), Confidence: 0.5},
	)
	defer svc.Close()

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	tests := []struct {
		threshold float32
		want      int
	}{
		{threshold: 0.95, want: 1},
		{threshold: 0.4, want: 2},
		{threshold: 0.97, want: 0},
	}
	for _, tt := range tests {
		regions, err := svc.Detect(frame, tt.threshold)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if len(regions) != tt.want {
			t.Errorf("threshold %v: got %d regions, want %d", tt.threshold, len(regions), tt.want)
		}
	}
}

func TestAnnotateLeavesSourceUntouched(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	regions := []model.DetectedRegion{{Rect: image.Rect(40, 40, 100, 100), Confidence: 0.99}}
	marked := NewFake().Annotate(frame, regions)
	defer marked.Close()

	if marked.Rows() != frame.Rows() || marked.Cols() != frame.Cols() {
		t.Fatalf("annotated size %dx%d, want %dx%d", marked.Cols(), marked.Rows(), frame.Cols(), frame.Rows())
	}
	if gocv.CountNonZero(toGray(t, frame)) != 0 {
		t.Error("source frame was modified")
	}
	if gocv.CountNonZero(toGray(t, marked)) == 0 {
		t.Error("annotated frame has no markings")
	}
}

func TestHighlighterColorIsBright(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := highlighterColor()
		high, low := 0, 0
		for _, v := range []uint8{c.R, c.G, c.B} {
			if v >= 150 {
				high++
			}
			if v < 100 {
				low++
			}
		}
		if high != 2 || low != 1 {
			t.Fatalf("color %v is not a highlighter color", c)
		}
	}
}

func TestConstructorsRejectMissingFiles(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	if _, err := NewSSD(missing+".prototxt", missing+".caffemodel"); err == nil {
		t.Error("NewSSD: expected error for missing files")
	}
	if _, err := NewCascade(missing + ".xml"); err == nil {
		t.Error("NewCascade: expected error for missing file")
	}
}

func toGray(t *testing.T, m gocv.Mat) gocv.Mat {
	t.Helper()
	gray := gocv.NewMat()
	t.Cleanup(func() { gray.Close() })
	gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	return gray
}

func TestNewYoloRejectsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	labels := filepath.Join(dir, "coco.names")
	if err := os.WriteFile(labels, []byte("person\ncar\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewYolo(filepath.Join(dir, "missing.onnx"), labels); err == nil {
		t.Error("expected error for a missing model")
	}
}

func TestDecodeYoloRow(t *testing.T) {
	labels := []string{"person", "car"}
	people := map[string]bool{"person": true}

	tests := []struct {
		name     string
		data     []float32
		classes  map[string]bool
		wantOK   bool
		wantRect image.Rectangle
	}{
		{
			name:     "person above threshold",
			data:     []float32{0.5, 0.5, 0.2, 0.4, 0.9, 0.8, 0.1},
			classes:  people,
			wantOK:   true,
			wantRect: image.Rect(40, 15, 60, 35),
		},
		{
			name:    "best class is not allowed",
			data:    []float32{0.5, 0.5, 0.2, 0.4, 0.9, 0.1, 0.9},
			classes: people,
		},
		{
			name:    "low objectness",
			data:    []float32{0.5, 0.5, 0.2, 0.4, 0.1, 0.99, 0.0},
			classes: people,
		},
		{
			name:    "labels do not match scores",
			data:    []float32{0.5, 0.5, 0.2, 0.4, 0.9, 0.8},
			classes: people,
		},
		{
			name:     "other class allowed",
			data:     []float32{0.5, 0.5, 0.2, 0.4, 0.9, 0.1, 0.9},
			classes:  map[string]bool{"car": true},
			wantOK:   true,
			wantRect: image.Rect(40, 15, 60, 35),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region, ok := decodeYoloRow(tt.data, labels, tt.classes, 100, 50, 0.5)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if region.Rect != tt.wantRect {
				t.Errorf("rect = %v, want %v", region.Rect, tt.wantRect)
			}
			if region.Confidence < 0.5 || region.Confidence > 1 {
				t.Errorf("confidence = %v", region.Confidence)
			}
		})
	}
}
