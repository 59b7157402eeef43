package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

var fixedNow = func() time.Time {
	return time.Date(2024, 7, 28, 0, 55, 51, 857300000, time.UTC)
}

func TestSaveCreatesMissingDirectories(t *testing.T) {
	captureLogs(t)
	root := t.TempDir()
	p := NewPersisterWithClock(fixedNow)

	img := newTestMat()
	defer img.Close()

	tmpl := filepath.Join(root, "a", "b", "faces_{Timestamp:yyyyMMdd}", "photo__{Timestamp:yyyyMMdd_HHmmssffff}.jpg")
	path, err := p.Save(img, tmpl)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := filepath.Join(root, "a", "b", "faces_20240728", "photo__20240728_0055518573.jpg")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("expected a non-empty file at %s: %v", path, err)
	}

	written := gocv.IMRead(path, gocv.IMReadColor)
	defer written.Close()
	if written.Cols() != img.Cols() || written.Rows() != img.Rows() {
		t.Errorf("written image is %dx%d, want %dx%d", written.Cols(), written.Rows(), img.Cols(), img.Rows())
	}
}

func TestSaveTwiceIntoExistingDirectory(t *testing.T) {
	captureLogs(t)
	root := t.TempDir()

	tick := time.Date(2024, 7, 28, 0, 0, 0, 0, time.UTC)
	p := NewPersisterWithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	img := newTestMat()
	defer img.Close()

	tmpl := filepath.Join(root, "faces", "photo__{Timestamp:HHmmss}.png")
	first, err := p.Save(img, tmpl)
	if err != nil {
		t.Fatalf("first Save: %v", err)
	}
	second, err := p.Save(img, tmpl)
	if err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct paths, got %s twice", first)
	}
}

func TestSaveConcurrentlyIntoSiblingDirectories(t *testing.T) {
	captureLogs(t)
	root := t.TempDir()
	p := NewPersisterWithClock(fixedNow)

	img := newTestMat()
	defer img.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i, sub := range []string{"one", "two", "three", "one"} {
		wg.Add(1)
		go func(i int, sub string) {
			defer wg.Done()
			name := fmt.Sprintf("%d_{Timestamp:yyyy}.jpg", i)
			if _, err := p.Save(img, filepath.Join(root, "shared", sub, name)); err != nil {
				errs <- err
			}
		}(i, sub)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Save: %v", err)
	}
}

func TestSaveDirectoryError(t *testing.T) {
	captureLogs(t)
	root := t.TempDir()

	// A regular file where a directory is expected
	blocker := filepath.Join(root, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	img := newTestMat()
	defer img.Close()

	_, err := NewPersisterWithClock(fixedNow).Save(img, filepath.Join(blocker, "sub", "photo.jpg"))
	if !errors.Is(err, ErrCreateDirectory) {
		t.Fatalf("err = %v, want ErrCreateDirectory", err)
	}
	if errors.Is(err, ErrWriteImage) {
		t.Error("directory failure must not match ErrWriteImage")
	}

	var perr *PersistError
	if !errors.As(err, &perr) || perr.Path != filepath.Join(blocker, "sub") {
		t.Errorf("unexpected PersistError: %#v", perr)
	}
}

func TestSaveEmptyImage(t *testing.T) {
	captureLogs(t)
	img := gocv.NewMat()
	defer img.Close()

	dir := filepath.Join(t.TempDir(), "faces")
	_, err := NewPersisterWithClock(fixedNow).Save(img, filepath.Join(dir, "photo.jpg"))
	if !errors.Is(err, ErrWriteImage) {
		t.Fatalf("err = %v, want ErrWriteImage", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("directory %s should not be created for an empty image: %v", dir, err)
	}
}

func TestSaveWarnsOnMalformedTemplate(t *testing.T) {
	logs := captureLogs(t)
	root := t.TempDir()

	img := newTestMat()
	defer img.Close()

	// The unresolved fragment ends up in the file name
	tmpl := filepath.Join(root, "bad_{Timestamp:yyyy.jpg")
	path, err := NewPersisterWithClock(fixedNow).Save(img, tmpl)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != tmpl {
		t.Errorf("path = %q, want the template verbatim", path)
	}
	if !strings.Contains(logs.String(), "unmatched placeholder") {
		t.Error("expected a warning about the malformed template")
	}
}
