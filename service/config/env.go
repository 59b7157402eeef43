package config

import (
	"os"
	"strconv"
	"strings"
)

type envService struct {
}

// NewEnv reads configuration from environment variables, falling back to
// hardcoded defaults. main loads the .env file before calling it.
func NewEnv() IService {
	return &envService{}
}

func (svc *envService) GetModeMaxShutdownTime() int {
	return getEnvAsIntOrDefault("MODE_MAX_SHUTDOWN_TIME", 5)
}

func (svc *envService) GetDataFolder() string {
	return getEnvOrDefault("DATA_FOLDER", "./data")
}

func (svc *envService) GetCaptureSource() string {
	return strings.ToLower(getEnvOrDefault("CAPTURE_SOURCE", CaptureWebcam))
}

func (svc *envService) GetCaptureDevice() int {
	// 0 is typically the integrated webcam
	return getEnvAsIntOrDefault("CAPTURE_DEVICE", 0)
}

func (svc *envService) GetCaptureWidth() int {
	return getEnvAsIntOrDefault("CAPTURE_WIDTH", 1280)
}

func (svc *envService) GetCaptureHeight() int {
	return getEnvAsIntOrDefault("CAPTURE_HEIGHT", 720)
}

func (svc *envService) GetCaptureFPS() int {
	return getEnvAsIntOrDefault("CAPTURE_FPS", 10)
}

func (svc *envService) GetCaptureMaxReadFailures() int {
	return getEnvAsIntOrDefault("CAPTURE_MAX_READ_FAILURES", 50)
}

func (svc *envService) GetHandlers() []string {
	return splitList(getEnvOrDefault("HANDLERS", FacePersistenceName))
}

func (svc *envService) GetHandlerParameters(name string) HandlerParameters {
	prefix := strings.ToUpper(name) + "_"

	detector := strings.ToLower(getEnvOrDefault(prefix+"DETECTOR", DetectorSSD))
	params := HandlerParameters{
		SavePath:            getEnvOrDefault(prefix+"SAVE_PATH", "faces/photo__{Timestamp:yyyyMMdd_HHmmssffff}.jpg"),
		ShouldMarkFaces:     getEnvAsBoolOrDefault(prefix+"SHOULD_MARK_FACES", true),
		ConfidenceThreshold: getEnvAsFloatOrDefault(prefix+"CONFIDENCE_THRESHOLD", defaultThreshold(detector)),
		Detector:            detector,
	}

	switch detector {
	case DetectorSSD:
		params.ConfigPath = getEnvOrDefault(prefix+"CONFIG_PATH", "opencv/data/dnn/deploy.prototxt")
		params.ModelPath = getEnvOrDefault(prefix+"MODEL_PATH", "opencv/data/dnn/res10_300x300_ssd_iter_140000_fp16.caffemodel")
	case DetectorCascade:
		params.ModelPath = getEnvOrDefault(prefix+"MODEL_PATH", "opencv/data/haarcascades/haarcascade_frontalface_default.xml")
	case DetectorYolo:
		params.ConfigPath = getEnvOrDefault(prefix+"CONFIG_PATH", "opencv/data/yolo/coco.names")
		params.ModelPath = getEnvOrDefault(prefix+"MODEL_PATH", "opencv/data/yolo/yolov5s.onnx")
		params.Classes = splitList(getEnvOrDefault(prefix+"CLASSES", "person"))
	}

	return params
}

// The threshold scale differs per detector: SSD reports a probability,
// the cascade detector uses it as its scale factor.
func defaultThreshold(detector string) float32 {
	switch detector {
	case DetectorCascade:
		return 1.45
	case DetectorYolo, DetectorFake:
		return 0.5
	default:
		return 0.95
	}
}

func splitList(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}
