// Package core provides shared types, the error taxonomy and the
// ecosystem registries used by the installer.
package core

import "time"

// Package represents metadata about a package from a registry.
type Package struct {
	Name        string
	Description string
	Homepage    string
	Repository  string
	Licenses    string
	Keywords    []string
	Namespace   string
	Metadata    map[string]any // registry-specific data
}

// Version represents a specific version of a package.
type Version struct {
	Number      string
	PublishedAt time.Time
	Licenses    string
	Integrity   string // sha256-...
	Status      VersionStatus
	Metadata    map[string]any
}

// VersionStatus represents the status of a package version.
type VersionStatus string

const (
	StatusNone       VersionStatus = ""
	StatusDeprecated VersionStatus = "deprecated"
	StatusDisabled   VersionStatus = "disabled"
)

// Dependency represents a package dependency as reported by a registry.
type Dependency struct {
	Name         string
	Requirements string
	Scope        Scope
	Optional     bool
}

// Scope indicates when a dependency is required.
type Scope string

const (
	Runtime  Scope = "runtime"
	Test     Scope = "test"
	Build    Scope = "build"
	Optional Scope = "optional"
)

// Maintainer represents a package maintainer.
type Maintainer struct {
	Login string
	Name  string
	Email string
	URL   string
}

// Resolved is a runtime dependency that has been located on the host.
type Resolved struct {
	Requirement Requirement
	Prefix      string // root of the dependency's installation
	Interpreter string // absolute path to the binary the launcher execs
}
