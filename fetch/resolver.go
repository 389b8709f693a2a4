package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/git-pkgs/formula/internal/core"
)

var (
	ErrNoDownloadURL    = errors.New("no download URL available")
	ErrUnsupportedURL   = errors.New("unsupported URL scheme")
	ErrMalformedDigest  = errors.New("malformed sha256 digest")
	sha256Hex           = regexp.MustCompile(`^[0-9a-f]{64}$`)
	supportedURLSchemes = map[string]bool{"http": true, "https": true, "file": true}
)

// ArtifactInfo contains information about a downloadable artifact.
type ArtifactInfo struct {
	URL       string
	Filename  string
	Integrity string // sha256-<hex>
}

// Digest returns the hex digest from Integrity.
func (a ArtifactInfo) Digest() string {
	return strings.TrimPrefix(a.Integrity, "sha256-")
}

// Resolver determines the ordered download candidates for a descriptor.
type Resolver struct{}

// NewResolver creates a new URL resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the primary URL followed by mirrors. Every candidate
// shares the primary's file name and digest.
func (r *Resolver) Resolve(desc *core.Descriptor) ([]ArtifactInfo, error) {
	if desc.URL == "" {
		return nil, ErrNoDownloadURL
	}

	digest, err := NormalizeDigest(desc.SHA256)
	if err != nil {
		return nil, err
	}

	filename := core.FilenameFromURL(desc.URL)
	seen := make(map[string]bool)
	var infos []ArtifactInfo
	for _, src := range desc.Sources() {
		if seen[src] {
			continue
		}
		seen[src] = true

		if err := CheckURL(src); err != nil {
			return nil, err
		}
		infos = append(infos, ArtifactInfo{
			URL:       src,
			Filename:  filename,
			Integrity: "sha256-" + digest,
		})
	}
	return infos, nil
}

// CheckURL returns an error unless rawURL is an absolute http, https or file URL.
func CheckURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing URL %q: %w", rawURL, err)
	}
	if !supportedURLSchemes[u.Scheme] {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
	if u.Scheme != "file" && u.Host == "" {
		return fmt.Errorf("URL %q has no host", rawURL)
	}
	return nil
}

// NormalizeDigest accepts "<hex>" or "sha256-<hex>" and returns lower-case hex.
func NormalizeDigest(s string) (string, error) {
	digest := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "sha256-")))
	if !sha256Hex.MatchString(digest) {
		return "", fmt.Errorf("%w: %q has %d characters, want 64 hex digits", ErrMalformedDigest, s, len(digest))
	}
	return digest, nil
}
