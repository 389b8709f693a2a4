package system

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/git-pkgs/formula/internal/core"
)

func TestLocateOnPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "bin", "fakepython3")
	if err := os.MkdirAll(filepath.Dir(bin), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", filepath.Dir(bin))

	req, err := core.ParseRequirement("pkg:generic/fakepython3")
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := NewLocator(nil).Locate(context.Background(), req)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if resolved.Interpreter != bin {
		t.Errorf("Interpreter = %q, want %q", resolved.Interpreter, bin)
	}
	if resolved.Prefix != dir {
		t.Errorf("Prefix = %q, want %q", resolved.Prefix, dir)
	}
}

func TestLocateMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	req, err := core.ParseRequirement("pkg:generic/python@3.12")
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewLocator(nil).Locate(context.Background(), req)
	if !errors.Is(err, core.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestLocatorRegistered(t *testing.T) {
	loc, err := core.NewLocator("generic", core.LocatorConfig{})
	if err != nil {
		t.Fatalf("NewLocator failed: %v", err)
	}
	if _, ok := loc.(*Locator); !ok {
		t.Errorf("expected *Locator, got %T", loc)
	}
}
