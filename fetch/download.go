package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/git-pkgs/formula/internal/core"
)

// Download is a verified artifact in the cache.
type Download struct {
	Path     string
	Filename string
	URL      string
	SHA256   string
	Size     int64
	Cached   bool
}

// Downloader streams artifacts into a cache directory, verifying their SHA-256
// before they become visible under their final name.
type Downloader struct {
	fetcher  FetcherInterface
	cacheDir string
	progress io.Writer
	logger   *zap.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithProgress renders a progress bar to w while downloading.
func WithProgress(w io.Writer) DownloaderOption {
	return func(d *Downloader) {
		d.progress = w
	}
}

// WithDownloadLogger sets the downloader's logger.
func WithDownloadLogger(l *zap.Logger) DownloaderOption {
	return func(d *Downloader) {
		d.logger = l
	}
}

// NewDownloader creates a downloader writing into cacheDir.
func NewDownloader(f FetcherInterface, cacheDir string, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		fetcher:  f,
		cacheDir: cacheDir,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CachePath returns where a verified artifact is stored.
func (d *Downloader) CachePath(info ArtifactInfo) string {
	return filepath.Join(d.cacheDir, info.Digest()+"--"+info.Filename)
}

// Download fetches the first candidate that succeeds. Mirrors are only tried
// after a network failure; a checksum mismatch aborts immediately.
func (d *Downloader) Download(ctx context.Context, candidates []ArtifactInfo) (*Download, error) {
	if len(candidates) == 0 {
		return nil, ErrNoDownloadURL
	}

	primary := candidates[0]
	cachePath := d.CachePath(primary)
	if sum, size, err := HashFile(cachePath); err == nil && sum == primary.Digest() {
		d.logger.Info("using cached download", zap.String("path", cachePath))
		return &Download{
			Path:     cachePath,
			Filename: primary.Filename,
			URL:      primary.URL,
			SHA256:   sum,
			Size:     size,
			Cached:   true,
		}, nil
	}

	var lastErr error
	for _, info := range candidates {
		dl, err := d.fetchOne(ctx, info, cachePath)
		if err == nil {
			return dl, nil
		}
		if !errors.Is(err, core.ErrNetwork) {
			return nil, err
		}
		d.logger.Warn("download failed", zap.String("url", info.URL), zap.Error(err))
		lastErr = err
	}
	return nil, lastErr
}

func (d *Downloader) fetchOne(ctx context.Context, info ArtifactInfo, dest string) (*Download, error) {
	d.logger.Info("downloading", zap.String("url", info.URL))

	artifact, err := d.fetcher.Fetch(ctx, info.URL)
	if err != nil {
		return nil, core.Network(info.URL, err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return nil, core.Filesystem("creating cache dir", err)
	}

	tmp, err := os.CreateTemp(d.cacheDir, ".download-*")
	if err != nil {
		return nil, core.Filesystem("creating temp file", err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = os.Remove(tmpPath)
		}
	}()

	hash := sha256.New()
	body := &trackingReader{r: artifact.Body}
	var w io.Writer = io.MultiWriter(tmp, hash)
	if d.progress != nil {
		bar := newProgressBar(d.progress, artifact.Size, info.Filename)
		defer func() { _ = bar.Finish() }()
		w = io.MultiWriter(w, bar)
	}

	n, err := io.Copy(w, body)
	closeErr := tmp.Close()
	if err != nil {
		if body.err != nil {
			return nil, core.Network(info.URL, body.err)
		}
		return nil, core.Filesystem("writing download", err)
	}
	if closeErr != nil {
		return nil, core.Filesystem("writing download", closeErr)
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	if sum != info.Digest() {
		return nil, &core.ChecksumError{URL: info.URL, Expected: info.Digest(), Actual: sum}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, core.Filesystem("moving download into cache", err)
	}
	keep = true

	return &Download{
		Path:     dest,
		Filename: info.Filename,
		URL:      info.URL,
		SHA256:   sum,
		Size:     n,
	}, nil
}

// trackingReader remembers read errors so they can be told apart from write errors.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

func newProgressBar(w io.Writer, size int64, name string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", name)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}

// HashFile returns the hex SHA-256 and size of the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	hash := sha256.New()
	n, err := io.Copy(hash, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), n, nil
}
