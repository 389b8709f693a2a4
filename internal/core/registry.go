package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry is the interface implemented by package metadata clients.
type Registry interface {
	// Ecosystem returns the PURL type for this registry (e.g., "brew").
	Ecosystem() string

	// FetchPackage retrieves package metadata.
	FetchPackage(ctx context.Context, name string) (*Package, error)

	// FetchVersions retrieves all versions of a package.
	FetchVersions(ctx context.Context, name string) ([]Version, error)

	// FetchDependencies retrieves dependencies for a specific version.
	FetchDependencies(ctx context.Context, name, version string) ([]Dependency, error)

	// FetchMaintainers retrieves maintainer information.
	FetchMaintainers(ctx context.Context, name string) ([]Maintainer, error)

	// URLs returns the URL builder for this registry.
	URLs() URLBuilder
}

// Locator finds (and possibly installs) a runtime dependency on the host.
type Locator interface {
	Locate(ctx context.Context, req Requirement) (*Resolved, error)
}

// LocatorConfig carries host settings to locator factories.
type LocatorConfig struct {
	Prefix      string // package manager prefix, e.g. /opt/homebrew
	Command     string // package manager binary used for installs
	RegistryURL string // metadata API, empty for the ecosystem default
	AutoInstall bool
	Client      *Client
	Runner      Runner
	Logger      *zap.Logger
}

// Factory creates a registry instance for a given base URL.
type Factory func(baseURL string, client *Client) Registry

// LocatorFactory creates a locator for a host configuration.
type LocatorFactory func(cfg LocatorConfig) Locator

var (
	factories = make(map[string]Factory)
	defaults  = make(map[string]string)
	locators  = make(map[string]LocatorFactory)
	mu        sync.RWMutex
)

// Register adds a registry factory.
// ecosystem is the PURL type and defaultURL the registry's API root.
func Register(ecosystem string, defaultURL string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[ecosystem] = factory
	defaults[ecosystem] = defaultURL
}

// RegisterLocator adds a locator factory for a PURL type.
func RegisterLocator(ecosystem string, factory LocatorFactory) {
	mu.Lock()
	defer mu.Unlock()
	locators[ecosystem] = factory
}

// New creates a new registry for the given ecosystem.
// If baseURL is empty, the default registry URL is used.
func New(ecosystem string, baseURL string, client *Client) (Registry, error) {
	mu.RLock()
	factory, ok := factories[ecosystem]
	defaultURL := defaults[ecosystem]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown ecosystem: %s", ecosystem)
	}

	if baseURL == "" {
		baseURL = defaultURL
	}

	if client == nil {
		client = DefaultClient()
	}

	return factory(baseURL, client), nil
}

// NewLocator creates the locator registered for ecosystem.
func NewLocator(ecosystem string, cfg LocatorConfig) (Locator, error) {
	mu.RLock()
	factory, ok := locators[ecosystem]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no locator for dependency type: %s", ecosystem)
	}

	if cfg.Client == nil {
		cfg.Client = DefaultClient()
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return factory(cfg), nil
}

// SupportedEcosystems returns all registered registry types, sorted.
func SupportedEcosystems() []string {
	mu.RLock()
	defer mu.RUnlock()

	ecosystems := make([]string, 0, len(factories))
	for eco := range factories {
		ecosystems = append(ecosystems, eco)
	}
	sort.Strings(ecosystems)
	return ecosystems
}

// SupportedLocators returns all PURL types that can be resolved as dependencies, sorted.
func SupportedLocators() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(locators))
	for t := range locators {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultURL returns the default registry URL for an ecosystem.
func DefaultURL(ecosystem string) string {
	mu.RLock()
	defer mu.RUnlock()
	return defaults[ecosystem]
}
