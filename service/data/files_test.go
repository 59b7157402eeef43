package data

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/khaledhikmat/snap-go/model"
	"github.com/khaledhikmat/snap-go/service/config"
)

func newTestStore(t *testing.T) (IService, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "nested", "data")
	t.Setenv("DATA_FOLDER", dir)
	return NewFilesDB(config.NewEnv()), dir
}

func readEntities(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", path, err)
	}
	return out
}

func TestNewHandlerStatsAppends(t *testing.T) {
	svc, dir := newTestStore(t)

	for _, name := range []string{"first", "second"} {
		if err := svc.NewHandlerStats(model.HandlerStats{Name: name, Saves: 1}); err != nil {
			t.Fatalf("NewHandlerStats: %v", err)
		}
	}

	entities := readEntities(t, filepath.Join(dir, "handler-stats.json"))
	if len(entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(entities))
	}
	if entities[0]["name"] != "first" || entities[1]["name"] != "second" {
		t.Errorf("unexpected order: %v", entities)
	}
	if entities[1]["timestamp"].(float64) == 0 {
		t.Error("timestamp was not stamped")
	}
}

func TestNewError(t *testing.T) {
	svc, dir := newTestStore(t)

	if err := svc.NewError(model.GenError("dispatcher", errors.New("boom"), map[string]interface{}{"handler": "h1"}, "handler %s failed", "h1")); err != nil {
		t.Fatalf("NewError(custom): %v", err)
	}
	if err := svc.NewError(errors.New("plain")); err != nil {
		t.Fatalf("NewError(plain): %v", err)
	}
	if err := svc.NewError(42); err == nil {
		t.Error("expected an error for a non-error value")
	}

	entities := readEntities(t, filepath.Join(dir, "errors.json"))
	if len(entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(entities))
	}
	if entities[0]["processor"] != "dispatcher" || entities[0]["message"] != "handler h1 failed" || entities[0]["innerError"] != "boom" {
		t.Errorf("unexpected custom error entity: %v", entities[0])
	}
	if entities[1]["processor"] != "N/A" || entities[1]["message"] != "plain" {
		t.Errorf("unexpected plain error entity: %v", entities[1])
	}
}
