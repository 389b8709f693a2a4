package core

import (
	"fmt"

	"github.com/git-pkgs/purl"
)

// Requirement is a runtime dependency declared as a Package URL,
// e.g. "pkg:brew/python@3.12".
type Requirement struct {
	PURL      string
	Ecosystem string
	Name      string
	Version   string
	Binary    string // interpreter binary inside the dependency

	// RepositoryURL overrides the ecosystem's metadata API, from the
	// "repository_url" qualifier.
	RepositoryURL string
}

// FormulaName returns the versioned package name, e.g. "python@3.12".
func (r Requirement) FormulaName() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

func (r Requirement) String() string {
	return r.PURL
}

// ParseRequirement parses a dependency PURL. The interpreter binary comes from
// the "binary" qualifier, else name+version ("python3.12"), else name.
func ParseRequirement(s string) (Requirement, error) {
	p, err := purl.Parse(s)
	if err != nil {
		return Requirement{}, fmt.Errorf("parsing dependency %q: %w", s, err)
	}
	if p.Name == "" {
		return Requirement{}, fmt.Errorf("dependency %q has no name", s)
	}

	name := p.Name
	if p.Namespace != "" {
		name = p.Namespace + "/" + p.Name
	}

	qualifiers := p.Qualifiers.Map()
	binary := qualifiers["binary"]
	if binary == "" {
		binary = p.Name + p.Version
	}

	return Requirement{
		PURL:      s,
		Ecosystem: p.Type,
		Name:      name,
		Version:   p.Version,
		Binary:    binary,

		RepositoryURL: qualifiers["repository_url"],
	}, nil
}
