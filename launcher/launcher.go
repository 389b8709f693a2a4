// Package launcher renders and writes the shell script that runs an
// installed artifact with its interpreter.
package launcher

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/syntax"
)

// DefaultShell is the launcher's interpreter line.
const DefaultShell = "/bin/bash"

//go:embed launcher.sh.tmpl
var launcherTemplate string

var tmpl = template.Must(template.New("launcher").Parse(launcherTemplate))

var ErrInvalidSpec = errors.New("invalid launcher spec")

// Spec describes a launcher. Interpreter and Artifact are absolute paths.
type Spec struct {
	Shell       string
	Interpreter string
	Artifact    string
}

// Render returns the launcher script for spec. Paths are shell-quoted only
// when they need it.
func Render(spec Spec) (string, error) {
	if spec.Shell == "" {
		spec.Shell = DefaultShell
	}
	if !filepath.IsAbs(spec.Shell) || strings.ContainsAny(spec.Shell, " \t\n") {
		return "", fmt.Errorf("%w: shell %q must be an absolute path without spaces", ErrInvalidSpec, spec.Shell)
	}
	if spec.Interpreter == "" || spec.Artifact == "" {
		return "", fmt.Errorf("%w: interpreter and artifact are required", ErrInvalidSpec)
	}

	interp, err := syntax.Quote(spec.Interpreter, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("%w: quoting interpreter: %v", ErrInvalidSpec, err)
	}
	artifact, err := syntax.Quote(spec.Artifact, syntax.LangBash)
	if err != nil {
		return "", fmt.Errorf("%w: quoting artifact: %v", ErrInvalidSpec, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, Spec{Shell: spec.Shell, Interpreter: interp, Artifact: artifact}); err != nil {
		return "", fmt.Errorf("rendering launcher: %w", err)
	}

	script := buf.String()
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "launcher"); err != nil {
		return "", fmt.Errorf("%w: rendered script does not parse: %v", ErrInvalidSpec, err)
	}
	return script, nil
}

// Write stores content at path with mode 0755, replacing any existing file.
// The mode is set explicitly so the umask and a previous mode don't matter.
func Write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return fmt.Errorf("writing launcher: %w", err)
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("making launcher executable: %w", err)
	}
	return nil
}
