package backend

import (
	"errors"
	"testing"

	"github.com/stablegen/stablegen/pipeline"
)

func TestLoadWithoutBackends(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error with no registered backends")
	}
}

func TestRegisterAndLoad(t *testing.T) {
	failing := errors.New("wrong format")
	Register("failing", func(dir string) (pipeline.Models, error) {
		return pipeline.Models{}, failing
	})

	_, err := Load(t.TempDir())
	if !errors.Is(err, failing) {
		t.Errorf("got %v, want wrapped loader error", err)
	}

	var loadedDir string
	Register("working", func(dir string) (pipeline.Models, error) {
		loadedDir = dir
		return pipeline.Models{}, nil
	})

	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatal(err)
	}
	if loadedDir != dir {
		t.Errorf("loader received %q, want %q", loadedDir, dir)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("dup", func(dir string) (pipeline.Models, error) {
		return pipeline.Models{}, nil
	})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("dup", func(dir string) (pipeline.Models, error) {
		return pipeline.Models{}, nil
	})
}
