package pipeline

import (
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured image shared read-only by every handler of a
// dispatch cycle. The underlying Mat is closed when the last reference is
// released.
type Frame struct {
	Seq       uint64
	Timestamp time.Time

	mat  gocv.Mat
	refs atomic.Int32
}

// NewFrame takes ownership of mat. The caller holds the first reference.
func NewFrame(mat gocv.Mat, seq uint64) *Frame {
	f := &Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		mat:       mat,
	}
	f.refs.Store(1)
	return f
}

// Mat returns the shared image. Never draw on it; use Clone.
func (f *Frame) Mat() gocv.Mat {
	return f.mat
}

// Clone returns a private copy the caller owns and must close.
func (f *Frame) Clone() gocv.Mat {
	return f.mat.Clone()
}

func (f *Frame) Width() int {
	return f.mat.Cols()
}

func (f *Frame) Height() int {
	return f.mat.Rows()
}

func (f *Frame) Retain() *Frame {
	f.refs.Add(1)
	return f
}

func (f *Frame) Release() {
	switch n := f.refs.Add(-1); {
	case n == 0:
		f.mat.Close() // Crucial to close the image to avoid memory leaks
	case n < 0:
		panic("pipeline: frame released more times than retained")
	}
}
