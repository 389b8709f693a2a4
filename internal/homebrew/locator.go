package homebrew

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/git-pkgs/formula/internal/core"
)

func init() {
	core.RegisterLocator(ecosystem, func(cfg core.LocatorConfig) core.Locator {
		return NewLocator(cfg)
	})
}

// DefaultPrefix returns $HOMEBREW_PREFIX, or the platform's standard prefix.
func DefaultPrefix() string {
	if p := os.Getenv("HOMEBREW_PREFIX"); p != "" {
		return p
	}
	switch {
	case runtime.GOOS == "darwin" && runtime.GOARCH == "arm64":
		return "/opt/homebrew"
	case runtime.GOOS == "linux":
		return "/home/linuxbrew/.linuxbrew"
	default:
		return "/usr/local"
	}
}

// Locator resolves pkg:brew requirements to <prefix>/opt/<formula>/bin/<binary>,
// optionally running "brew install" when the formula is missing.
type Locator struct {
	prefix      string
	command     string
	autoInstall bool
	registry    core.Registry
	client      *core.Client
	runner      core.Runner
	logger      *zap.Logger
}

func NewLocator(cfg core.LocatorConfig) *Locator {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix()
	}
	command := cfg.Command
	if command == "" {
		command = filepath.Join(prefix, "bin", "brew")
	}
	runner := cfg.Runner
	if runner == nil {
		runner = core.ExecRunner{Env: []string{"HOMEBREW_NO_AUTO_UPDATE=1"}}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Locator{
		prefix:      prefix,
		command:     command,
		autoInstall: cfg.AutoInstall,
		registry:    New(cfg.RegistryURL, cfg.Client),
		client:      cfg.Client,
		runner:      runner,
		logger:      logger,
	}
}

// OptDir returns the stable, version-independent directory of a formula.
func (l *Locator) OptDir(req core.Requirement) string {
	return filepath.Join(l.prefix, "opt", req.FormulaName())
}

func (l *Locator) Locate(ctx context.Context, req core.Requirement) (*core.Resolved, error) {
	if resolved, ok := l.find(req); ok {
		return resolved, nil
	}

	if !l.autoInstall {
		return nil, &core.DependencyError{
			Requirement: req,
			Reason:      fmt.Sprintf("%s not found in %s", req.Binary, l.OptDir(req)),
		}
	}

	registry := l.registry
	if req.RepositoryURL != "" {
		registry = New(req.RepositoryURL, l.client)
	}

	formula := req.FormulaName()
	if _, err := registry.FetchPackage(ctx, formula); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, &core.DependencyError{Requirement: req, Reason: "no such formula", Err: err}
		}
		return nil, &core.DependencyError{Requirement: req, Reason: "looking up formula", Err: err}
	}

	l.logger.Info("installing dependency", zap.String("formula", formula), zap.String("brew", l.command))
	out, err := l.runner.Run(ctx, l.command, "install", formula)
	if err != nil {
		reason := "brew install failed"
		if msg := strings.TrimSpace(string(out)); msg != "" {
			reason += ": " + msg
		}
		return nil, &core.DependencyError{Requirement: req, Reason: reason, Err: err}
	}

	if resolved, ok := l.find(req); ok {
		return resolved, nil
	}
	return nil, &core.DependencyError{
		Requirement: req,
		Reason:      fmt.Sprintf("%s still missing after brew install", req.Binary),
	}
}

func (l *Locator) find(req core.Requirement) (*core.Resolved, bool) {
	optDir := l.OptDir(req)
	bin := filepath.Join(optDir, "bin", req.Binary)

	info, err := os.Stat(bin)
	if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		return nil, false
	}

	l.logger.Debug("dependency found", zap.String("interpreter", bin))
	return &core.Resolved{Requirement: req, Prefix: optDir, Interpreter: bin}, true
}
