// Package formula installs pre-built artifacts described by package
// descriptors. An install resolves the interpreter the artifact depends on,
// downloads the artifact while verifying its SHA-256, copies it into a
// package-private libexec directory, writes a launcher script into a shared
// bin directory and runs a smoke test through that launcher.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/formula"
//		_ "github.com/git-pkgs/formula/all"
//	)
//
//	desc, err := formula.Load("pdfdateextract.toml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	p := formula.NewPipeline(formula.NewLayout("/usr/local"))
//	report, err := p.Run(context.Background(), desc)
//	if errors.Is(err, formula.ErrChecksumMismatch) {
//		log.Fatal("artifact was tampered with")
//	}
//	fmt.Println(report.Install.LauncherPath)
//
// Dependencies are Package URLs. "pkg:brew/python@3.12" resolves to the
// Homebrew formula python@3.12 and its python3.12 binary;
// "pkg:generic/python3" is looked up on PATH.
package formula

import (
	"context"

	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/formula/client"
	"github.com/git-pkgs/formula/descriptor"
	"github.com/git-pkgs/formula/install"
	"github.com/git-pkgs/formula/internal/core"
)

// Re-export types from internal/core
type (
	// Descriptor declares how to obtain, verify and expose an artifact.
	Descriptor = core.Descriptor

	// Layout is the directory structure an install writes into.
	Layout = core.Layout

	// Requirement is a runtime dependency declared as a Package URL.
	Requirement = core.Requirement

	// Resolved is a located dependency.
	Resolved = core.Resolved

	// Locator finds, and optionally installs, a dependency on the host.
	Locator = core.Locator

	// LocatorConfig carries host settings to locators.
	LocatorConfig = core.LocatorConfig

	// Runner executes external commands.
	Runner = core.Runner

	// Registry is the interface implemented by package metadata clients.
	Registry = core.Registry

	// Package represents metadata about a package from a registry.
	Package = core.Package

	// Version represents a specific version of a package.
	Version = core.Version

	// Dependency represents a package dependency.
	Dependency = core.Dependency

	// Scope indicates when a dependency is required.
	Scope = core.Scope
)

// Re-export pipeline types
type (
	// Pipeline runs the install stages.
	Pipeline = install.Pipeline

	// Report collects the results of every stage that ran.
	Report = install.Report

	// PipelineOption configures a Pipeline.
	PipelineOption = install.Option
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for registry APIs.
	Client = client.Client

	// URLBuilder constructs URLs for a registry.
	URLBuilder = client.URLBuilder
)

// Error types
type (
	StageError        = core.StageError
	ChecksumError     = core.ChecksumError
	VerificationError = core.VerificationError
	DependencyError   = core.DependencyError
	HTTPError         = client.HTTPError
	NotFoundError     = client.NotFoundError
)

// Re-export constants
const (
	StageResolve = core.StageResolve
	StageFetch   = core.StageFetch
	StageInstall = core.StageInstall
	StageVerify  = core.StageVerify

	Runtime  = core.Runtime
	Test     = core.Test
	Build    = core.Build
	Optional = core.Optional
)

// Re-export errors
var (
	ErrDependencyUnavailable = core.ErrDependencyUnavailable
	ErrNetwork               = core.ErrNetwork
	ErrChecksumMismatch      = core.ErrChecksumMismatch
	ErrFilesystem            = core.ErrFilesystem
	ErrVerificationFailed    = core.ErrVerificationFailed
	ErrNotInstalled          = core.ErrNotInstalled
	ErrInvalidName           = core.ErrInvalidName
	ErrNotFound              = client.ErrNotFound
)

// Load reads and validates the descriptor at path. The format follows the
// extension: .toml, .yaml, .yml or .json.
func Load(path string) (*Descriptor, error) {
	return descriptor.Load(path)
}

// NewLayout returns the default layout rooted at prefix.
func NewLayout(prefix string) Layout {
	return core.NewLayout(prefix)
}

// NewPipeline creates an install pipeline writing into layout.
func NewPipeline(layout Layout, opts ...PipelineOption) *Pipeline {
	return install.New(layout, opts...)
}

// Install runs every stage for desc with a default pipeline.
func Install(ctx context.Context, layout Layout, desc *Descriptor) (*Report, error) {
	return install.New(layout).Run(ctx, desc)
}

// ParseRequirement parses a dependency Package URL.
func ParseRequirement(s string) (Requirement, error) {
	return core.ParseRequirement(s)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// New creates a registry client for the given ecosystem.
// If baseURL is empty, the default registry URL is used.
// If c is nil, DefaultClient() is used.
func New(ecosystem string, baseURL string, c *Client) (Registry, error) {
	return core.New(ecosystem, baseURL, c)
}

// DefaultClient returns a client with a 30s timeout and 5 retries.
func DefaultClient() *Client {
	return client.DefaultClient()
}

// SupportedEcosystems returns all registered registry types.
// Note: ecosystems must be imported to be registered.
func SupportedEcosystems() []string {
	return core.SupportedEcosystems()
}

// SupportedLocators returns every dependency type that can be resolved.
func SupportedLocators() []string {
	return core.SupportedLocators()
}

// DefaultURL returns the default registry URL for an ecosystem.
func DefaultURL(ecosystem string) string {
	return core.DefaultURL(ecosystem)
}
