// Package classifier builds meta classifiers by name from configuration.
package classifier

import (
	"fmt"
	"sort"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/classifier/negation"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
)

// BuilderFunc creates a MetaClassifier from generic config.
// Config is a map of classifier-specific settings parsed from user config.
type BuilderFunc func(cfg map[string]any) (driven.MetaClassifier, error)

// Registry maps classifier names to their builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a builder. A later registration under the same name wins.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a classifier by name with the given config.
func (r *Registry) Build(name string, cfg map[string]any) (driven.MetaClassifier, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown classifier: %s", name)
	}
	return builder(cfg)
}

// BuildAll builds the named classifiers in order. cfgFor supplies each
// classifier's config and may be nil.
func (r *Registry) BuildAll(names []string, cfgFor func(name string) map[string]any) ([]driven.MetaClassifier, error) {
	out := make([]driven.MetaClassifier, 0, len(names))
	for _, name := range names {
		var cfg map[string]any
		if cfgFor != nil {
			cfg = cfgFor(name)
		}
		c, err := r.Build(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("classifier %s: %w", name, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Has reports whether a classifier with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterDefaults registers the built-in classifiers.
func RegisterDefaults(r *Registry) {
	r.Register("negation", buildNegation)
}

// buildNegation supports:
//   - window (int): words searched before an entity (default 5)
//   - triggers ([]string): replaces the default trigger phrases
func buildNegation(cfg map[string]any) (driven.MetaClassifier, error) {
	var opts []negation.Option
	if w := getIntFromConfig(cfg, "window"); w > 0 {
		opts = append(opts, negation.WithWindow(w))
	}
	if raw, ok := cfg["triggers"]; ok {
		triggers, err := stringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("triggers: %w", err)
		}
		opts = append(opts, negation.WithTriggers(triggers...))
	}
	return negation.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringSlice(v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return s, nil
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", v)
	}
}
