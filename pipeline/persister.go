package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/khaledhikmat/snap-go/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// Persister writes images to paths resolved from a template. It is safe
// for concurrent use.
type Persister struct {
	now func() time.Time
}

func NewPersister() *Persister {
	return &Persister{now: time.Now}
}

// NewPersisterWithClock is NewPersister with an injectable clock.
func NewPersisterWithClock(now func() time.Time) *Persister {
	return &Persister{now: now}
}

// Save resolves pathTemplate against the current time, creates the parent
// directory when missing and encodes img there. It returns the path
// written. Failures are not retried.
func (p *Persister) Save(img gocv.Mat, pathTemplate string) (string, error) {
	path, truncated := resolvePath(pathTemplate, p.now())
	if truncated {
		lgr.Logger.Warn(
			"save path template has an unmatched placeholder, expansion truncated",
			slog.String("template", pathTemplate),
			slog.String("path", path),
		)
	}

	// Nothing is created for an image that cannot be written
	if img.Empty() {
		return "", &PersistError{Kind: ErrWriteImage, Path: path, Err: xerrors.New("empty image")}
	}

	// MkdirAll is a no-op for existing directories
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &PersistError{Kind: ErrCreateDirectory, Path: dir, Err: err}
		}
	}

	if ok := gocv.IMWrite(path, img); !ok {
		return "", &PersistError{Kind: ErrWriteImage, Path: path, Err: xerrors.New("image encoder failed")}
	}

	lgr.Logger.Info(
		"photo saved",
		slog.String("path", path),
	)
	return path, nil
}
