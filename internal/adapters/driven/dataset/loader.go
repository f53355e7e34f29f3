// Package dataset reads trainer exports and raw text corpora from disk.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.DatasetLoader = Loader{}

// Loader reads trainer exports. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON.
type Loader struct{}

// Load reads and decodes the export at path.
func (Loader) Load(ctx context.Context, path string) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidDataset, path, err)
		}
	}
	return Decode(data)
}

// Decode parses a JSON trainer export.
func Decode(data []byte) (*domain.Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty export", domain.ErrInvalidDataset)
	}
	var ds domain.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidDataset, err)
	}
	if ds.Projects == nil {
		return nil, fmt.Errorf("%w: no projects", domain.ErrInvalidDataset)
	}
	return &ds, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// yamlToJSON re-encodes a YAML document as JSON so the export's JSON
// decoding rules (list or keyed annotations, flexible ids) apply to both.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(jsonCompatible(doc))
}

// jsonCompatible converts the map[any]any values yaml produces for
// non-string keys, such as annotations keyed by numeric id.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	default:
		return v
	}
}
