package homebrew

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/git-pkgs/formula/internal/core"
)

// fakeBrew records install calls and optionally creates the interpreter.
type fakeBrew struct {
	prefix  string
	create  bool
	fail    bool
	calls   [][]string
	binName string
}

func (f *fakeBrew) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.fail {
		return []byte("Error: No available formula"), errors.New("exit status 1")
	}
	if f.create {
		return nil, createExecutable(filepath.Join(f.prefix, "opt", args[1], "bin", f.binName))
	}
	return nil, nil
}

func createExecutable(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755)
}

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := createExecutable(path); err != nil {
		t.Fatal(err)
	}
}

func python312(t *testing.T) core.Requirement {
	t.Helper()
	req, err := core.ParseRequirement("pkg:brew/python@3.12")
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func formulaServer(t *testing.T, known string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/formula/"+known+".json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(formulaResponse{Name: known, Versions: versionsInfo{Stable: "3.12.8"}})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLocateExisting(t *testing.T) {
	prefix := t.TempDir()
	bin := filepath.Join(prefix, "opt", "python@3.12", "bin", "python3.12")
	writeExecutable(t, bin)

	brew := &fakeBrew{}
	loc := NewLocator(core.LocatorConfig{Prefix: prefix, Runner: brew, AutoInstall: true})

	resolved, err := loc.Locate(context.Background(), python312(t))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if resolved.Interpreter != bin {
		t.Errorf("Interpreter = %q, want %q", resolved.Interpreter, bin)
	}
	if resolved.Prefix != filepath.Join(prefix, "opt", "python@3.12") {
		t.Errorf("Prefix = %q", resolved.Prefix)
	}
	if len(brew.calls) != 0 {
		t.Errorf("brew should not run when dependency exists, got %v", brew.calls)
	}
}

func TestLocateMissingWithoutAutoInstall(t *testing.T) {
	brew := &fakeBrew{}
	loc := NewLocator(core.LocatorConfig{Prefix: t.TempDir(), Runner: brew})

	_, err := loc.Locate(context.Background(), python312(t))
	if !errors.Is(err, core.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
	if len(brew.calls) != 0 {
		t.Errorf("brew should not run, got %v", brew.calls)
	}
}

func TestLocateNonExecutable(t *testing.T) {
	prefix := t.TempDir()
	bin := filepath.Join(prefix, "opt", "python@3.12", "bin", "python3.12")
	if err := os.MkdirAll(filepath.Dir(bin), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bin, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	loc := NewLocator(core.LocatorConfig{Prefix: prefix, Runner: &fakeBrew{}})
	if _, err := loc.Locate(context.Background(), python312(t)); !errors.Is(err, core.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestLocateAutoInstall(t *testing.T) {
	prefix := t.TempDir()
	server := formulaServer(t, "python@3.12")
	brew := &fakeBrew{prefix: prefix, create: true, binName: "python3.12"}

	loc := NewLocator(core.LocatorConfig{
		Prefix:      prefix,
		Command:     "/usr/bin/brew",
		RegistryURL: server.URL,
		AutoInstall: true,
		Runner:      brew,
	})

	resolved, err := loc.Locate(context.Background(), python312(t))
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if len(brew.calls) != 1 {
		t.Fatalf("expected one brew call, got %v", brew.calls)
	}
	want := []string{"/usr/bin/brew", "install", "python@3.12"}
	for i, arg := range want {
		if brew.calls[0][i] != arg {
			t.Errorf("brew call = %v, want %v", brew.calls[0], want)
			break
		}
	}
	if filepath.Base(resolved.Interpreter) != "python3.12" {
		t.Errorf("Interpreter = %q", resolved.Interpreter)
	}
}

func TestLocateUnknownFormula(t *testing.T) {
	server := formulaServer(t, "python@3.12")
	brew := &fakeBrew{}

	req, err := core.ParseRequirement("pkg:brew/python@3.99")
	if err != nil {
		t.Fatal(err)
	}

	loc := NewLocator(core.LocatorConfig{
		Prefix:      t.TempDir(),
		RegistryURL: server.URL,
		AutoInstall: true,
		Runner:      brew,
	})

	_, err = loc.Locate(context.Background(), req)
	if !errors.Is(err, core.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected the registry's not-found error to be kept, got %v", err)
	}
	if len(brew.calls) != 0 {
		t.Errorf("brew should not run for unknown formula, got %v", brew.calls)
	}
}

func TestLocateInstallFails(t *testing.T) {
	server := formulaServer(t, "python@3.12")
	brew := &fakeBrew{fail: true}

	loc := NewLocator(core.LocatorConfig{
		Prefix:      t.TempDir(),
		RegistryURL: server.URL,
		AutoInstall: true,
		Runner:      brew,
	})

	_, err := loc.Locate(context.Background(), python312(t))
	if !errors.Is(err, core.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
}

func TestLocateStillMissingAfterInstall(t *testing.T) {
	server := formulaServer(t, "python@3.12")
	brew := &fakeBrew{}

	loc := NewLocator(core.LocatorConfig{
		Prefix:      t.TempDir(),
		RegistryURL: server.URL,
		AutoInstall: true,
		Runner:      brew,
	})

	_, err := loc.Locate(context.Background(), python312(t))
	if !errors.Is(err, core.ErrDependencyUnavailable) {
		t.Fatalf("expected ErrDependencyUnavailable, got %v", err)
	}
	if len(brew.calls) != 1 {
		t.Errorf("expected one brew call, got %v", brew.calls)
	}
}

func TestDefaultPrefixFromEnv(t *testing.T) {
	t.Setenv("HOMEBREW_PREFIX", "/srv/brew")
	if got := DefaultPrefix(); got != "/srv/brew" {
		t.Errorf("DefaultPrefix() = %q", got)
	}

	loc := NewLocator(core.LocatorConfig{})
	if loc.command != "/srv/brew/bin/brew" {
		t.Errorf("command = %q", loc.command)
	}
}

func TestLocatorPrefixIndependentOfInstallPrefix(t *testing.T) {
	t.Setenv("HOMEBREW_PREFIX", "/srv/brew")

	loc := NewLocator(core.LocatorConfig{})
	want := filepath.Join("/srv/brew", "opt", "python@3.12")
	if got := loc.OptDir(python312(t)); got != want {
		t.Errorf("OptDir = %q, want %q", got, want)
	}

	loc = NewLocator(core.LocatorConfig{Prefix: "/custom"})
	if got := loc.OptDir(python312(t)); got != "/custom/opt/python@3.12" {
		t.Errorf("OptDir = %q", got)
	}
}

func TestLocatorRegistered(t *testing.T) {
	loc, err := core.NewLocator("brew", core.LocatorConfig{Prefix: "/opt/homebrew"})
	if err != nil {
		t.Fatalf("NewLocator failed: %v", err)
	}
	if _, ok := loc.(*Locator); !ok {
		t.Errorf("expected *Locator, got %T", loc)
	}
}

func TestLocateRepositoryURLOverride(t *testing.T) {
	prefix := t.TempDir()
	mirror := formulaServer(t, "python@3.12")
	brew := &fakeBrew{prefix: prefix, create: true, binName: "python3.12"}

	req, err := core.ParseRequirement("pkg:brew/python@3.12?repository_url=" + mirror.URL)
	if err != nil {
		t.Fatal(err)
	}

	// The configured registry knows nothing; the qualifier points at one that does.
	loc := NewLocator(core.LocatorConfig{
		Prefix:      prefix,
		Command:     "/usr/bin/brew",
		RegistryURL: formulaServer(t, "other").URL,
		AutoInstall: true,
		Runner:      brew,
	})

	if _, err := loc.Locate(context.Background(), req); err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if len(brew.calls) != 1 {
		t.Errorf("expected one brew call, got %v", brew.calls)
	}
}
