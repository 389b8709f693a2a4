// Package install runs the four install stages for a package descriptor:
// resolve the dependency, fetch the artifact, install it behind a launcher
// and verify the launcher runs.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/git-pkgs/formula/fetch"
	"github.com/git-pkgs/formula/internal/core"
	"github.com/git-pkgs/formula/internal/receipt"
	"github.com/git-pkgs/formula/internal/stage"
	"github.com/git-pkgs/formula/launcher"
)

// Pipeline installs descriptors into a Layout.
type Pipeline struct {
	layout     core.Layout
	locatorCfg core.LocatorConfig
	locators   map[string]core.Locator
	mu         sync.Mutex

	resolver   *fetch.Resolver
	fetcher    fetch.FetcherInterface
	downloader *fetch.Downloader
	progress   io.Writer

	runner core.Runner
	shell  string
	logger *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLocator uses loc for dependencies of the given purl type.
func WithLocator(ecosystem string, loc core.Locator) Option {
	return func(p *Pipeline) {
		p.locators[ecosystem] = loc
	}
}

// WithLocatorConfig sets the configuration passed to registered locators.
func WithLocatorConfig(cfg core.LocatorConfig) Option {
	return func(p *Pipeline) {
		p.locatorCfg = cfg
	}
}

// WithFetcher sets the transport used for downloads.
func WithFetcher(f fetch.FetcherInterface) Option {
	return func(p *Pipeline) {
		p.fetcher = f
	}
}

// WithProgress renders download progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) {
		p.progress = w
	}
}

// WithRunner sets how the smoke test is executed.
func WithRunner(r core.Runner) Option {
	return func(p *Pipeline) {
		p.runner = r
	}
}

// WithShell sets the launcher's interpreter line.
func WithShell(shell string) Option {
	return func(p *Pipeline) {
		p.shell = shell
	}
}

// WithLogger sets the pipeline's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline writing into layout.
func New(layout core.Layout, opts ...Option) *Pipeline {
	p := &Pipeline{
		layout:   layout,
		locators: make(map[string]core.Locator),
		resolver: fetch.NewResolver(),
		runner:   core.ExecRunner{},
		shell:    launcher.DefaultShell,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.locatorCfg.Logger == nil {
		p.locatorCfg.Logger = p.logger
	}
	if p.fetcher == nil {
		p.fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.WithLogger(p.logger)))
	}
	dlOpts := []fetch.DownloaderOption{fetch.WithDownloadLogger(p.logger)}
	if p.progress != nil {
		dlOpts = append(dlOpts, fetch.WithProgress(p.progress))
	}
	p.downloader = fetch.NewDownloader(p.fetcher, layout.CacheDir, dlOpts...)
	return p
}

// Layout returns the directories the pipeline writes into.
func (p *Pipeline) Layout() core.Layout {
	return p.layout
}

// Run executes every stage in order and stops at the first failure. The
// report holds the results of the stages that completed; the error is a
// *core.StageError. Nothing written by earlier stages is rolled back.
func (p *Pipeline) Run(ctx context.Context, desc *core.Descriptor) (*Report, error) {
	report := &Report{Name: desc.Name}
	log := p.logger.With(zap.String("package", desc.Name))

	log.Info("resolving dependency", zap.String("depends_on", desc.DependsOn))
	dep, err := p.ResolveDependency(ctx, desc)
	if err != nil {
		return report, p.fail(log, core.StageResolve, desc, err)
	}
	report.Dependency = dep

	log.Info("fetching artifact", zap.String("url", desc.URL))
	fetched, err := p.FetchArtifact(ctx, desc)
	if err != nil {
		return report, p.fail(log, core.StageFetch, desc, err)
	}
	report.Fetch = fetched

	log.Info("installing", zap.String("artifact", fetched.Filename))
	installed, err := p.Install(ctx, desc, dep, fetched)
	if err != nil {
		return report, p.fail(log, core.StageInstall, desc, err)
	}
	report.Install = installed

	log.Info("verifying", zap.String("launcher", installed.LauncherPath))
	verified, err := p.Verify(ctx, desc, installed)
	if err != nil {
		return report, p.fail(log, core.StageVerify, desc, err)
	}
	report.Verify = verified

	log.Info("installed", zap.String("launcher", installed.LauncherPath))
	return report, nil
}

func (p *Pipeline) fail(log *zap.Logger, st core.Stage, desc *core.Descriptor, err error) error {
	log.Error("install failed", zap.String("stage", string(st)), zap.Error(err))
	return &core.StageError{Stage: st, Name: desc.Name, Err: err}
}

// ResolveDependency locates the interpreter desc depends on, installing it
// through the package manager when the locator allows. It never touches the
// artifact URL.
func (p *Pipeline) ResolveDependency(ctx context.Context, desc *core.Descriptor) (*DependencyResult, error) {
	req, err := core.ParseRequirement(desc.DependsOn)
	if err != nil {
		return nil, &core.DependencyError{Requirement: core.Requirement{PURL: desc.DependsOn}, Reason: "invalid requirement", Err: err}
	}

	loc, err := p.locator(req.Ecosystem)
	if err != nil {
		return nil, &core.DependencyError{Requirement: req, Reason: "unsupported dependency type", Err: err}
	}

	resolved, err := loc.Locate(ctx, req)
	if err != nil {
		if !errors.Is(err, core.ErrDependencyUnavailable) {
			err = &core.DependencyError{Requirement: req, Reason: "lookup failed", Err: err}
		}
		return nil, err
	}

	p.logger.Debug("dependency resolved",
		zap.String("requirement", req.PURL),
		zap.String("interpreter", resolved.Interpreter))
	return &DependencyResult{Requirement: req, Resolved: resolved}, nil
}

func (p *Pipeline) locator(ecosystem string) (core.Locator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if loc, ok := p.locators[ecosystem]; ok {
		return loc, nil
	}
	loc, err := core.NewLocator(ecosystem, p.locatorCfg)
	if err != nil {
		return nil, err
	}
	p.locators[ecosystem] = loc
	return loc, nil
}

// FetchArtifact downloads the artifact into the cache and verifies its
// SHA-256. A cached copy with the right digest is reused.
func (p *Pipeline) FetchArtifact(ctx context.Context, desc *core.Descriptor) (*FetchResult, error) {
	candidates, err := p.resolver.Resolve(desc)
	if err != nil {
		return nil, core.Network(desc.URL, err)
	}

	dl, err := p.downloader.Download(ctx, candidates)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		Path:     dl.Path,
		Filename: dl.Filename,
		URL:      dl.URL,
		SHA256:   dl.SHA256,
		Size:     dl.Size,
		Cached:   dl.Cached,
	}, nil
}

// Install stages the fetched file, copies the artifact into the package's own
// libexec dir, writes the launcher and records a receipt. A previous install
// of the same package is replaced.
func (p *Pipeline) Install(ctx context.Context, desc *core.Descriptor, dep *DependencyResult, fetched *FetchResult) (*InstallResult, error) {
	stageDir := p.layout.StageDir(desc)
	defer func() { _ = os.RemoveAll(stageDir) }()

	if _, err := stage.Stage(fetched.Path, fetched.Filename, stageDir); err != nil {
		return nil, core.Filesystem("staging artifact", err)
	}

	found, err := stage.Find(stageDir, desc.ArtifactPattern())
	if err != nil {
		return nil, core.Filesystem("locating artifact", err)
	}

	libexec := p.layout.PackageLibexecDir(desc.Name)
	if err := os.RemoveAll(libexec); err != nil {
		return nil, core.Filesystem("clearing libexec dir", err)
	}
	artifactPath := filepath.Join(libexec, filepath.Base(found))
	if err := stage.CopyFile(found, artifactPath, 0o644); err != nil {
		return nil, core.Filesystem("installing artifact", err)
	}

	script, err := launcher.Render(launcher.Spec{
		Shell:       p.shell,
		Interpreter: dep.Resolved.Interpreter,
		Artifact:    artifactPath,
	})
	if err != nil {
		return nil, core.Filesystem("rendering launcher", err)
	}

	launcherPath := p.layout.LauncherPath(desc)
	if err := launcher.Write(launcherPath, script); err != nil {
		return nil, core.Filesystem("writing launcher", err)
	}

	r := receipt.New(desc)
	r.Interpreter = dep.Resolved.Interpreter
	r.Artifact = artifactPath
	r.Launcher = launcherPath
	if err := receipt.Write(p.layout.ReceiptDir, r); err != nil {
		return nil, core.Filesystem("writing receipt", err)
	}

	return &InstallResult{
		ArtifactPath: artifactPath,
		LauncherPath: launcherPath,
		Script:       script,
		Receipt:      r,
	}, nil
}

// Verify runs the launcher with the descriptor's test arguments and
// requires a zero exit status.
func (p *Pipeline) Verify(ctx context.Context, desc *core.Descriptor, installed *InstallResult) (*VerifyResult, error) {
	command := append([]string{installed.LauncherPath}, desc.TestArgs()...)

	out, err := p.runner.Run(ctx, command[0], command[1:]...)
	if err != nil {
		return nil, &core.VerificationError{
			Command:  command,
			ExitCode: core.ExitCode(err),
			Output:   string(out),
			Err:      err,
		}
	}

	p.logger.Debug("smoke test passed", zap.Strings("command", command))
	return &VerifyResult{Command: command, Output: string(out)}, nil
}

// Installed lists the receipts of every installed package.
func (p *Pipeline) Installed() ([]*receipt.Receipt, error) {
	receipts, err := receipt.List(p.layout.ReceiptDir)
	if err != nil {
		return nil, core.Filesystem("listing receipts", err)
	}
	return receipts, nil
}

// Uninstall removes the launcher, artifact and receipt recorded for name.
// It returns core.ErrNotInstalled when there is no receipt.
func (p *Pipeline) Uninstall(ctx context.Context, name string) (*receipt.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.CheckName(name); err != nil {
		return nil, err
	}

	r, err := receipt.Read(p.layout.ReceiptDir, name)
	if err != nil {
		if errors.Is(err, core.ErrNotInstalled) {
			return nil, err
		}
		return nil, core.Filesystem("reading receipt", err)
	}

	for _, path := range []string{r.Launcher, r.Artifact} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, core.Filesystem(fmt.Sprintf("removing %s", path), err)
		}
	}
	if err := os.RemoveAll(p.layout.PackageLibexecDir(name)); err != nil {
		return nil, core.Filesystem("removing libexec dir", err)
	}
	if err := receipt.Remove(p.layout.ReceiptDir, name); err != nil {
		return nil, core.Filesystem("removing receipt", err)
	}

	p.logger.Info("uninstalled", zap.String("package", name))
	return r, nil
}
