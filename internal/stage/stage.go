// Package stage unpacks downloaded artifacts into a staging directory and
// locates the installable file inside it.
package stage

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// maxEntryBytes bounds a single extracted file.
const maxEntryBytes = 2 << 30

var (
	ErrUnsafePath = errors.New("archive entry escapes staging directory")
	ErrNoMatch    = errors.New("no staged file matches pattern")
)

// Format is an archive layout recognised from a file name.
type Format string

const (
	Raw    Format = "raw"
	Tar    Format = "tar"
	TarGz  Format = "tar.gz"
	TarZst Format = "tar.zst"
	TarXz  Format = "tar.xz"
	Zip    Format = "zip"
)

// DetectFormat picks the archive format from name's extension.
func DetectFormat(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return TarZst
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return TarXz
	case strings.HasSuffix(lower, ".tar"):
		return Tar
	case strings.HasSuffix(lower, ".zip"):
		return Zip
	}
	return Raw
}

// Stage empties dir and fills it from src. Archives are extracted; any other
// file is copied as dir/name.
func Stage(src, name, dir string) (Format, error) {
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clearing staging dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating staging dir: %w", err)
	}

	format := DetectFormat(name)
	var err error
	switch format {
	case Zip:
		err = extractZip(src, dir)
	case Raw:
		err = CopyFile(src, filepath.Join(dir, filepath.Base(name)), 0o644)
	default:
		err = extractTarFile(src, format, dir)
	}
	if err != nil {
		return "", err
	}
	return format, nil
}

func extractTarFile(src string, format Format, dir string) (err error) {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	switch format {
	case TarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case TarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case TarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		r = xr
	}
	return extractTar(r, dir)
}

func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
		default:
			// Links and devices are not needed to run a packaged artifact.
			continue
		}
	}
}

func extractZip(src, dir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, zf := range zr.File {
		target, err := safeJoin(dir, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", zf.Name, err)
			}
			continue
		}
		if !zf.Mode().IsRegular() {
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", zf.Name, err)
		}
		err = writeEntry(target, rc, zf.Mode().Perm())
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", zf.Name, err)
		}
	}
	return nil
}

// safeJoin resolves an archive entry name under dir, rejecting absolute
// names and any that climb out with "..".
func safeJoin(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dir, clean), nil
}

func writeEntry(target string, r io.Reader, perm fs.FileMode) (err error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(out, io.LimitReader(r, maxEntryBytes+1))
	if err != nil {
		return err
	}
	if n > maxEntryBytes {
		return fmt.Errorf("entry exceeds %d bytes", int64(maxEntryBytes))
	}
	return nil
}

// CopyFile copies src to dst, replacing dst if it exists.
func CopyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()
	if err := writeEntry(dst, in, perm); err != nil {
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return nil
}

// Find returns the first regular file under dir, in lexical order of its
// slash-separated relative path, matching pattern. A pattern without a
// slash also matches against base names.
func Find(dir, pattern string) (string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return "", fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}
	byBase := !strings.Contains(pattern, "/")

	var rels []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(rels)

	for _, rel := range rels {
		if g.Match(rel) {
			return filepath.Join(dir, filepath.FromSlash(rel)), nil
		}
	}
	if byBase {
		for _, rel := range rels {
			if g.Match(filepath.Base(rel)) {
				return filepath.Join(dir, filepath.FromSlash(rel)), nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q in %s", ErrNoMatch, pattern, dir)
}
