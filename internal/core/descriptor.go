package core

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ErrInvalidName is returned for package names that are not a single
// lower-case path element.
var ErrInvalidName = errors.New("invalid package name")

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._+@-]*$`)

// CheckName reports whether name can name a launcher, receipt and libexec dir.
func CheckName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidName, name, namePattern)
	}
	return nil
}

// DefaultTestArgs are passed to the launcher when a descriptor declares no test.
var DefaultTestArgs = []string{"--version"}

// Descriptor declares how to obtain, verify and expose a pre-built artifact.
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Version     string   `json:"version,omitempty"`
	URL         string   `json:"url"`
	Mirrors     []string `json:"mirrors,omitempty"`
	SHA256      string   `json:"sha256"`
	License     string   `json:"license,omitempty"`
	DependsOn   string   `json:"depends_on"`
	Artifact    string   `json:"artifact,omitempty"` // glob inside the staging dir
	Bin         string   `json:"bin,omitempty"`      // launcher name
	Test        []string `json:"test,omitempty"`
}

// LauncherName returns the file name of the generated launcher.
func (d *Descriptor) LauncherName() string {
	if d.Bin != "" {
		return d.Bin
	}
	return d.Name
}

// ArtifactPattern returns the glob used to locate the artifact after staging.
func (d *Descriptor) ArtifactPattern() string {
	if d.Artifact != "" {
		return d.Artifact
	}
	return FilenameFromURL(d.URL)
}

// TestArgs returns the arguments of the post-install smoke test.
func (d *Descriptor) TestArgs() []string {
	if len(d.Test) > 0 {
		return d.Test
	}
	return DefaultTestArgs
}

// Sources returns the primary URL followed by any mirrors.
func (d *Descriptor) Sources() []string {
	return append([]string{d.URL}, d.Mirrors...)
}

// ResolvedVersion returns the declared version, or the one embedded in the
// URL's file name.
func (d *Descriptor) ResolvedVersion() string {
	if d.Version != "" {
		return d.Version
	}
	return VersionFromURL(d.URL)
}

var urlVersion = regexp.MustCompile(`[-_]v?(\d+(?:\.\d+)+)`)

// VersionFromURL extracts a dotted version from the file name of rawURL,
// e.g. "tool-1.0.28.pyz" yields "1.0.28". Returns "" when none is found.
func VersionFromURL(rawURL string) string {
	m := urlVersion.FindStringSubmatch(FilenameFromURL(rawURL))
	if m == nil {
		return ""
	}
	return m[1]
}

// FilenameFromURL returns the last path segment of rawURL without query or fragment.
func FilenameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	if idx := strings.LastIndex(rawURL, "/"); idx >= 0 {
		return rawURL[idx+1:]
	}
	return rawURL
}
