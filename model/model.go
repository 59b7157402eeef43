package model

import (
	"fmt"
	"image"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// DetectedRegion is one detector hit on a frame.
type DetectedRegion struct {
	Rect       image.Rectangle `json:"rect"`
	Confidence float32         `json:"confidence"`
}

type CaptureStats struct {
	RunID     string `json:"runId"`
	Name      string `json:"name"`
	Frames    int64  `json:"frames"`
	Errors    int64  `json:"errors"`
	FPS       int    `json:"fps"`
	Uptime    int64  `json:"uptime"`
	Timestamp int64  `json:"timestamp"`
}

type HandlerStats struct {
	RunID         string `json:"runId"`
	Name          string `json:"name"`
	Frames        int64  `json:"frames"`
	Dropped       int64  `json:"dropped"`
	Skipped       int64  `json:"skipped"`
	Detections    int64  `json:"detections"`
	Saves         int64  `json:"saves"`
	Errors        int64  `json:"errors"`
	LastSavedPath string `json:"lastSavedPath"`
	Timestamp     int64  `json:"timestamp"`
}

type DispatcherStats struct {
	RunID      string `json:"runId"`
	Dispatched int64  `json:"dispatched"`
	Failures   int64  `json:"failures"`
	Panics     int64  `json:"panics"`
	Handlers   int    `json:"handlers"`
	Timestamp  int64  `json:"timestamp"`
}
