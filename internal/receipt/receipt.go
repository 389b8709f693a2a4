// Package receipt records what an install wrote so it can be listed and
// uninstalled later.
package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/git-pkgs/formula/internal/core"
)

// Receipt describes one installed package.
type Receipt struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version,omitempty"`
	URL         string    `json:"url"`
	SHA256      string    `json:"sha256"`
	License     string    `json:"license,omitempty"`
	DependsOn   string    `json:"depends_on"`
	Interpreter string    `json:"interpreter"`
	Artifact    string    `json:"artifact"`
	Launcher    string    `json:"launcher"`
	InstalledAt time.Time `json:"installed_at"`
}

// New fills a receipt with a fresh ID and the current time.
func New(desc *core.Descriptor) *Receipt {
	return &Receipt{
		ID:          uuid.NewString(),
		Name:        desc.Name,
		Version:     desc.ResolvedVersion(),
		URL:         desc.URL,
		SHA256:      desc.SHA256,
		License:     desc.License,
		DependsOn:   desc.DependsOn,
		InstalledAt: time.Now().UTC(),
	}
}

// Path returns the receipt file for name.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// Write stores r in dir, replacing an existing receipt atomically.
func Write(dir string, r *Receipt) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating receipt dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".receipt-*")
	if err != nil {
		return fmt.Errorf("creating receipt: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing receipt: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing receipt: %w", err)
	}
	if err := os.Rename(tmpPath, Path(dir, r.Name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing receipt: %w", err)
	}
	return nil
}

// Read loads the receipt for name. A missing receipt matches core.ErrNotInstalled.
func Read(dir, name string) (*Receipt, error) {
	data, err := os.ReadFile(Path(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, core.ErrNotInstalled)
	}
	if err != nil {
		return nil, fmt.Errorf("reading receipt: %w", err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding receipt %s: %w", name, err)
	}
	return &r, nil
}

// Remove deletes the receipt for name.
func Remove(dir, name string) error {
	err := os.Remove(Path(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, core.ErrNotInstalled)
	}
	return err
}

// List returns every receipt in dir sorted by name. A missing dir is empty.
func List(dir string) ([]*Receipt, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	var receipts []*Receipt
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok || e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		r, err := Read(dir, name)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	sort.Slice(receipts, func(i, j int) bool { return receipts[i].Name < receipts[j].Name })
	return receipts, nil
}
