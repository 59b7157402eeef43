package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrCreateDirectory = errors.New("create directory")
	ErrWriteImage      = errors.New("write image")
)

// DeviceError means the capture device could not be opened or stopped
// producing frames. It is fatal to the capture source and not retried.
type DeviceError struct {
	Source string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture source %s: %v", e.Source, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// DetectionError is a detector failure on a single frame. The frame is
// dropped and the pipeline carries on.
type DetectionError struct {
	Handler string
	Seq     uint64
	Err     error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("handler %s: detection failed on frame %d: %v", e.Handler, e.Seq, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// PersistError reports a failed save. Kind is ErrCreateDirectory or
// ErrWriteImage and matches with errors.Is.
type PersistError struct {
	Kind error
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v %s: %v", e.Kind, e.Path, e.Err)
}

func (e *PersistError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
