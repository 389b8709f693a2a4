// Package all registers every supported dependency type.
//
// Import this package for its side effects:
//
//	import (
//		"github.com/git-pkgs/formula"
//		_ "github.com/git-pkgs/formula/all"
//	)
//
//	// Now "pkg:brew/..." and "pkg:generic/..." dependencies resolve
//	types := formula.SupportedLocators()
//	// ["brew", "generic"]
package all

import (
	_ "github.com/git-pkgs/formula/internal/homebrew"
	_ "github.com/git-pkgs/formula/internal/system"
)
