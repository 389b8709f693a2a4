package core

import "path/filepath"

// Layout is the directory structure an install writes into.
type Layout struct {
	Prefix     string
	BinDir     string // shared, holds launchers
	LibexecDir string // one private subdirectory per package
	CacheDir   string
	ReceiptDir string
}

// NewLayout returns the default layout rooted at prefix.
func NewLayout(prefix string) Layout {
	return Layout{
		Prefix:     prefix,
		BinDir:     filepath.Join(prefix, "bin"),
		LibexecDir: filepath.Join(prefix, "libexec"),
		CacheDir:   filepath.Join(prefix, "var", "cache", "formula"),
		ReceiptDir: filepath.Join(prefix, "var", "db", "formula"),
	}
}

// WithCacheDir returns a copy of l using dir for downloads.
func (l Layout) WithCacheDir(dir string) Layout {
	if dir != "" {
		l.CacheDir = dir
	}
	return l
}

// LauncherPath returns where the launcher for d is written.
func (l Layout) LauncherPath(d *Descriptor) string {
	return filepath.Join(l.BinDir, d.LauncherName())
}

// PackageLibexecDir returns the directory holding the artifact of package name.
func (l Layout) PackageLibexecDir(name string) string {
	return filepath.Join(l.LibexecDir, name)
}

// StageDir returns the scratch directory used while installing d.
func (l Layout) StageDir(d *Descriptor) string {
	return filepath.Join(l.CacheDir, "stage", d.Name)
}
