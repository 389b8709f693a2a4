// Package homebrew provides a client for the Homebrew formula API and a
// locator that resolves brew dependencies on the host.
package homebrew

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/formula/internal/core"
)

const (
	DefaultURL = "https://formulae.brew.sh"
	ecosystem  = "brew"
)

func init() {
	core.Register(ecosystem, DefaultURL, func(baseURL string, client *core.Client) core.Registry {
		return New(baseURL, client)
	})
}

type Registry struct {
	baseURL string
	client  *core.Client
	urls    *URLs
}

func New(baseURL string, client *core.Client) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = core.DefaultClient()
	}
	r := &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
	r.urls = &URLs{baseURL: r.baseURL}
	return r
}

func (r *Registry) Ecosystem() string {
	return ecosystem
}

func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type formulaResponse struct {
	Name                 string       `json:"name"`
	FullName             string       `json:"full_name"`
	Tap                  string       `json:"tap"`
	Desc                 string       `json:"desc"`
	License              string       `json:"license"`
	Homepage             string       `json:"homepage"`
	Versions             versionsInfo `json:"versions"`
	URLs                 urlsInfo     `json:"urls"`
	Revision             int          `json:"revision"`
	KegOnly              bool         `json:"keg_only"`
	Deprecated           bool         `json:"deprecated"`
	Disabled             bool         `json:"disabled"`
	VersionedFormulae    []string     `json:"versioned_formulae"`
	Dependencies         []string     `json:"dependencies"`
	BuildDependencies    []string     `json:"build_dependencies"`
	TestDependencies     []string     `json:"test_dependencies"`
	OptionalDependencies []string     `json:"optional_dependencies"`
}

type versionsInfo struct {
	Stable string `json:"stable"`
	Head   string `json:"head"`
	Bottle bool   `json:"bottle"`
}

type urlsInfo struct {
	Stable urlInfo `json:"stable"`
}

type urlInfo struct {
	URL      string `json:"url"`
	Tag      string `json:"tag"`
	Revision string `json:"revision"`
	Checksum string `json:"checksum"`
}

func (r *Registry) fetchFormula(ctx context.Context, name string) (*formulaResponse, error) {
	url := fmt.Sprintf("%s/api/formula/%s.json", r.baseURL, name)

	var resp formulaResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Ecosystem: ecosystem, Name: name}
		}
		return nil, err
	}
	return &resp, nil
}

func (r *Registry) FetchPackage(ctx context.Context, name string) (*core.Package, error) {
	resp, err := r.fetchFormula(ctx, name)
	if err != nil {
		return nil, err
	}

	var repository string
	if strings.HasPrefix(resp.Homepage, "https://github.com/") {
		repository = resp.Homepage
	}

	return &core.Package{
		Name:        resp.Name,
		Description: resp.Desc,
		Homepage:    resp.Homepage,
		Repository:  repository,
		Licenses:    resp.License,
		Namespace:   resp.Tap,
		Metadata: map[string]any{
			"full_name": resp.FullName,
			"tap":       resp.Tap,
			"bottle":    resp.Versions.Bottle,
			"keg_only":  resp.KegOnly,
			"revision":  resp.Revision,
		},
	}, nil
}

// FetchVersions returns the stable version followed by one entry per
// versioned formula (python@3.11 yields "3.11").
func (r *Registry) FetchVersions(ctx context.Context, name string) ([]core.Version, error) {
	resp, err := r.fetchFormula(ctx, name)
	if err != nil {
		return nil, err
	}

	var versions []core.Version
	if resp.Versions.Stable != "" {
		v := core.Version{
			Number:   resp.Versions.Stable,
			Licenses: resp.License,
			Status:   status(resp),
			Metadata: map[string]any{
				"formula": resp.Name,
				"bottle":  resp.Versions.Bottle,
			},
		}
		if resp.URLs.Stable.Checksum != "" {
			v.Integrity = "sha256-" + resp.URLs.Stable.Checksum
		}
		if resp.URLs.Stable.URL != "" {
			v.Metadata["download_url"] = resp.URLs.Stable.URL
		}
		versions = append(versions, v)
	}

	for _, vf := range resp.VersionedFormulae {
		_, number, ok := strings.Cut(vf, "@")
		if !ok {
			continue
		}
		versions = append(versions, core.Version{
			Number:   number,
			Metadata: map[string]any{"formula": vf},
		})
	}

	return versions, nil
}

func (r *Registry) FetchDependencies(ctx context.Context, name, version string) ([]core.Dependency, error) {
	resp, err := r.fetchFormula(ctx, name)
	if err != nil {
		return nil, err
	}

	var deps []core.Dependency
	add := func(names []string, scope core.Scope) {
		for _, n := range names {
			deps = append(deps, core.Dependency{
				Name:     n,
				Scope:    scope,
				Optional: scope == core.Optional,
			})
		}
	}
	add(resp.Dependencies, core.Runtime)
	add(resp.BuildDependencies, core.Build)
	add(resp.TestDependencies, core.Test)
	add(resp.OptionalDependencies, core.Optional)

	return deps, nil
}

// FetchMaintainers always returns an empty list; formulae have no maintainers.
func (r *Registry) FetchMaintainers(ctx context.Context, name string) ([]core.Maintainer, error) {
	return nil, nil
}

func status(resp *formulaResponse) core.VersionStatus {
	switch {
	case resp.Disabled:
		return core.StatusDisabled
	case resp.Deprecated:
		return core.StatusDeprecated
	default:
		return core.StatusNone
	}
}

type URLs struct {
	baseURL string
}

func (u *URLs) Registry(name, version string) string {
	return fmt.Sprintf("%s/formula/%s", u.baseURL, name)
}

func (u *URLs) Download(name, version string) string {
	return ""
}

func (u *URLs) Documentation(name, version string) string {
	return u.Registry(name, version)
}

func (u *URLs) PURL(name, version string) string {
	if version == "" {
		return fmt.Sprintf("pkg:brew/%s", name)
	}
	return fmt.Sprintf("pkg:brew/%s@%s", name, version)
}
