package install

import (
	"github.com/git-pkgs/formula/internal/core"
	"github.com/git-pkgs/formula/internal/receipt"
)

// DependencyResult is the outcome of resolving a descriptor's dependency.
type DependencyResult struct {
	Requirement core.Requirement
	Resolved    *core.Resolved
}

// FetchResult describes a verified artifact in the download cache.
type FetchResult struct {
	Path     string
	Filename string
	URL      string
	SHA256   string
	Size     int64
	Cached   bool
}

// InstallResult lists the files an install wrote.
type InstallResult struct {
	ArtifactPath string
	LauncherPath string
	Script       string
	Receipt      *receipt.Receipt
}

// VerifyResult records a successful smoke test.
type VerifyResult struct {
	Command []string
	Output  string
}

// Report collects the result of every stage that ran. Stages after a
// failure are nil.
type Report struct {
	Name       string
	Dependency *DependencyResult
	Fetch      *FetchResult
	Install    *InstallResult
	Verify     *VerifyResult
}
