package cli

import "github.com/git-pkgs/formula/internal/core"

// Exit codes. Each install failure class gets its own code.
const (
	ExitOK                    = 0
	ExitError                 = 1
	ExitDependencyUnavailable = 2
	ExitNetwork               = 3
	ExitChecksumMismatch      = 4
	ExitFilesystem            = 5
	ExitVerificationFailed    = 6
)

// ExitCode maps err onto the install failure exit codes.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch core.Classify(err) {
	case core.ErrDependencyUnavailable:
		return ExitDependencyUnavailable
	case core.ErrNetwork:
		return ExitNetwork
	case core.ErrChecksumMismatch:
		return ExitChecksumMismatch
	case core.ErrFilesystem:
		return ExitFilesystem
	case core.ErrVerificationFailed:
		return ExitVerificationFailed
	}
	return ExitError
}
