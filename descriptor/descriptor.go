// Package descriptor loads package descriptors from TOML, YAML or JSON and
// validates them before any install work starts.
package descriptor

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/git-pkgs/spdx"
	"github.com/gobwas/glob"
	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/git-pkgs/formula/fetch"
	"github.com/git-pkgs/formula/internal/core"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "descriptor.schema.json"

var (
	ErrUnknownFormat = errors.New("unknown descriptor format")
	ErrInvalid       = errors.New("invalid descriptor")
)

// Format is a descriptor serialisation.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
	JSON Format = "json"
)

// FieldError reports a semantic problem with one descriptor field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrInvalid, e.Err}
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".json":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Load reads, decodes and validates the descriptor at path.
func Load(path string) (*core.Descriptor, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}
	desc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

// Parse decodes data, checks it against the descriptor schema and runs
// Validate on the result.
func Parse(data []byte, format Format) (*core.Descriptor, error) {
	doc, err := decode(data, format)
	if err != nil {
		return nil, err
	}

	// Normalise through JSON so every format validates and decodes the same way.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, fmt.Errorf("decoding descriptor: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var desc core.Descriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, fmt.Errorf("decoding descriptor: %w", err)
	}
	if err := Validate(&desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func decode(data []byte, format Format) (map[string]any, error) {
	doc := map[string]any{}
	var err error
	switch format {
	case TOML:
		err = toml.Unmarshal(data, &doc)
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	case JSON:
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s descriptor: %w", format, err)
	}
	return doc, nil
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("loading descriptor schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validate checks field semantics the schema cannot express and normalises
// SHA256 and License in place.
func Validate(d *core.Descriptor) error {
	if err := core.CheckName(d.Name); err != nil {
		return &FieldError{Field: "name", Err: err}
	}
	if d.Bin != "" && strings.ContainsAny(d.Bin, `/\`) {
		return &FieldError{Field: "bin", Err: fmt.Errorf("%q must be a plain file name", d.Bin)}
	}

	if err := fetch.CheckURL(d.URL); err != nil {
		return &FieldError{Field: "url", Err: err}
	}
	for i, m := range d.Mirrors {
		if err := fetch.CheckURL(m); err != nil {
			return &FieldError{Field: fmt.Sprintf("mirrors[%d]", i), Err: err}
		}
	}

	digest, err := fetch.NormalizeDigest(d.SHA256)
	if err != nil {
		return &FieldError{Field: "sha256", Err: err}
	}
	d.SHA256 = digest

	if d.License != "" {
		license, err := spdx.Normalize(d.License)
		if err != nil {
			return &FieldError{Field: "license", Err: err}
		}
		d.License = license
	}

	if _, err := core.ParseRequirement(d.DependsOn); err != nil {
		return &FieldError{Field: "depends_on", Err: err}
	}

	if _, err := glob.Compile(d.ArtifactPattern(), '/'); err != nil {
		return &FieldError{Field: "artifact", Err: err}
	}
	return nil
}
