// Package system resolves pkg:generic dependencies from the executable search path.
package system

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/git-pkgs/formula/internal/core"
)

const ecosystem = "generic"

func init() {
	core.RegisterLocator(ecosystem, func(cfg core.LocatorConfig) core.Locator {
		return NewLocator(cfg.Logger)
	})
}

// Locator looks up the requirement's binary on $PATH. It never installs anything.
type Locator struct {
	lookPath func(file string) (string, error)
	logger   *zap.Logger
}

func NewLocator(logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{lookPath: exec.LookPath, logger: logger}
}

func (l *Locator) Locate(ctx context.Context, req core.Requirement) (*core.Resolved, error) {
	path, err := l.lookPath(req.Binary)
	if err != nil {
		return nil, &core.DependencyError{
			Requirement: req,
			Reason:      fmt.Sprintf("%s not found on PATH", req.Binary),
			Err:         err,
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &core.DependencyError{Requirement: req, Reason: "resolving path", Err: err}
	}

	l.logger.Debug("dependency found", zap.String("interpreter", abs))
	return &core.Resolved{
		Requirement: req,
		Prefix:      filepath.Dir(filepath.Dir(abs)),
		Interpreter: abs,
	}, nil
}
