package core

import (
	"context"
	"fmt"
	"testing"
)

type stubLocator struct {
	cfg LocatorConfig
}

func (s *stubLocator) Locate(ctx context.Context, req Requirement) (*Resolved, error) {
	return &Resolved{Requirement: req, Interpreter: "/bin/" + req.Binary}, nil
}

func TestNewLocator(t *testing.T) {
	RegisterLocator("stub", func(cfg LocatorConfig) Locator {
		return &stubLocator{cfg: cfg}
	})

	loc, err := NewLocator("stub", LocatorConfig{Prefix: "/opt/stub"})
	if err != nil {
		t.Fatalf("NewLocator failed: %v", err)
	}

	s := loc.(*stubLocator)
	if s.cfg.Prefix != "/opt/stub" {
		t.Errorf("Prefix = %q", s.cfg.Prefix)
	}
	if s.cfg.Client == nil || s.cfg.Runner == nil || s.cfg.Logger == nil {
		t.Error("expected defaults for client, runner and logger")
	}

	rt, err := loc.Locate(context.Background(), Requirement{Binary: "python3"})
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if rt.Interpreter != "/bin/python3" {
		t.Errorf("Interpreter = %q", rt.Interpreter)
	}

	found := false
	for _, l := range SupportedLocators() {
		if l == "stub" {
			found = true
		}
	}
	if !found {
		t.Errorf("SupportedLocators() = %v, missing stub", SupportedLocators())
	}

	if _, err := NewLocator("nope", LocatorConfig{}); err == nil {
		t.Error("expected error for unknown locator type")
	}
}

func TestNewRegistryUnknown(t *testing.T) {
	if _, err := New("unknown", "", nil); err == nil {
		t.Error("expected error for unknown ecosystem")
	}
}

func TestExecRunner(t *testing.T) {
	out, err := ExecRunner{Env: []string{"FORMULA_TEST=1"}}.Run(context.Background(), "sh", "-c", "echo $FORMULA_TEST")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if string(out) != "1\n" {
		t.Errorf("output = %q", out)
	}

	_, err = ExecRunner{}.Run(context.Background(), "sh", "-c", "exit 3")
	if ExitCode(err) != 3 {
		t.Errorf("ExitCode = %d, want 3", ExitCode(err))
	}
	if got := ExitCode(fmt.Errorf("running launcher: %w", err)); got != 3 {
		t.Errorf("ExitCode of wrapped error = %d, want 3", got)
	}
	if ExitCode(nil) != 0 {
		t.Error("ExitCode(nil) should be 0")
	}

	_, err = ExecRunner{}.Run(context.Background(), "/nonexistent/binary")
	if ExitCode(err) != -1 {
		t.Errorf("ExitCode = %d, want -1", ExitCode(err))
	}
}
