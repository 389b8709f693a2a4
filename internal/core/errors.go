package core

import (
	"errors"
	"fmt"
	"strings"
)

// Install failures. Every error returned by a pipeline stage wraps exactly one
// of these.
var (
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrNetwork               = errors.New("network error")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrFilesystem            = errors.New("filesystem error")
	ErrVerificationFailed    = errors.New("verification failed")
)

// ErrNotInstalled is returned when no install receipt exists for a package.
var ErrNotInstalled = errors.New("not installed")

// Stage names a step of the install pipeline.
type Stage string

const (
	StageResolve Stage = "resolve"
	StageFetch   Stage = "fetch"
	StageInstall Stage = "install"
	StageVerify  Stage = "verify"
)

// StageError reports which stage of an install aborted.
type StageError struct {
	Stage Stage
	Name  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ChecksumError is returned when downloaded bytes don't hash to the declared digest.
type ChecksumError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("sha256 mismatch for %s: expected %s, got %s", e.URL, e.Expected, e.Actual)
}

func (e *ChecksumError) Unwrap() error {
	return ErrChecksumMismatch
}

// VerificationError is returned when the smoke test exits non-zero.
type VerificationError struct {
	Command  []string
	ExitCode int // -1 if the command could not be started
	Output   string
	Err      error
}

func (e *VerificationError) Error() string {
	cmd := strings.Join(e.Command, " ")
	if e.ExitCode < 0 {
		return fmt.Sprintf("running %s: %v", cmd, e.Err)
	}
	return fmt.Sprintf("%s exited with status %d", cmd, e.ExitCode)
}

func (e *VerificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrVerificationFailed}
	}
	return []error{ErrVerificationFailed, e.Err}
}

// DependencyError is returned when a runtime dependency can't be located or installed.
type DependencyError struct {
	Requirement Requirement
	Reason      string
	Err         error
}

func (e *DependencyError) Error() string {
	msg := fmt.Sprintf("dependency %s: %s", e.Requirement.PURL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DependencyError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDependencyUnavailable}
	}
	return []error{ErrDependencyUnavailable, e.Err}
}

// Filesystem wraps an I/O failure so it matches ErrFilesystem.
func Filesystem(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrFilesystem, op, err)
}

// Network wraps a transport failure so it matches ErrNetwork.
func Network(target string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrNetwork, target, err)
}

// Classify returns the install failure sentinel err wraps, or nil.
func Classify(err error) error {
	for _, sentinel := range []error{
		ErrDependencyUnavailable,
		ErrChecksumMismatch,
		ErrNetwork,
		ErrFilesystem,
		ErrVerificationFailed,
		ErrNotInstalled,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
