package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Format selects the report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var errUnknownFormat = errors.New("unknown report format")

// FormatFromPath picks the decoder from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", errUnknownFormat, filepath.Ext(path))
	}
}

// Load reads and validates a report file.
func Load(path string) (*Report, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer f.Close()

	rep, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", filepath.Base(path), err)
	}
	return rep, nil
}

// Decode reads a report in the given format.
func Decode(r io.Reader, format Format) (*Report, error) {
	var rep Report
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&rep); err != nil {
			return nil, fmt.Errorf("decoding json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&rep); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownFormat, format)
	}
	if err := rep.Validate(); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Validate checks the build-level fields. Missing per-object fields are
// never errors: such objects are classified as generated.
func (r *Report) Validate() error {
	if r.Summary.GUID != "" {
		if _, err := uuid.Parse(r.Summary.GUID); err != nil {
			return fmt.Errorf("invalid build guid %q: %w", r.Summary.GUID, err)
		}
	}
	for i, f := range r.PackedAssets {
		if strings.TrimSpace(f.ShortPath) == "" {
			return fmt.Errorf("packed file %d has no path", i)
		}
	}
	return nil
}
