package core

import (
	"github.com/git-pkgs/formula/client"
)

// Type aliases so ecosystem implementations only import core.
type (
	RateLimiter    = client.RateLimiter
	Client         = client.Client
	Option         = client.Option
	URLBuilder     = client.URLBuilder
	BaseURLs       = client.BaseURLs
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

// Function aliases.
var (
	DefaultClient  = client.DefaultClient
	NewClient      = client.NewClient
	WithTimeout    = client.WithTimeout
	WithMaxRetries = client.WithMaxRetries
	BuildURLs      = client.BuildURLs
)

// ErrNotFound is returned when a package or version is not found upstream.
var ErrNotFound = client.ErrNotFound
