package config

const (
	FacePersistenceName = "facePersistence"

	DetectorSSD     = "ssd"
	DetectorCascade = "cascade"
	DetectorYolo    = "yolo"
	DetectorFake    = "fake"

	CaptureWebcam = "webcam"
	CaptureRandom = "random"
)

// HandlerParameters are the values one frame handler consumes. The
// confidence threshold is opaque: its scale depends on the detector.
type HandlerParameters struct {
	SavePath            string
	ShouldMarkFaces     bool
	ConfidenceThreshold float32
	Detector            string
	ModelPath           string
	// ConfigPath is the network description for ssd and the labels file
	// for yolo.
	ConfigPath          string
	// Classes restricts yolo to these labels.
	Classes             []string
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetDataFolder() string
	GetCaptureSource() string
	GetCaptureDevice() int
	GetCaptureWidth() int
	GetCaptureHeight() int
	GetCaptureFPS() int
	GetCaptureMaxReadFailures() int
	GetHandlers() []string
	GetHandlerParameters(name string) HandlerParameters
}
