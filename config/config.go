// Package config holds the parser's tunables, decoded from a plain
// map[string]any the way the teacher decodes datastore options, via
// mapstructure rather than hand-rolled field-by-field assertions.
package config

import "github.com/mitchellh/mapstructure"

// Config controls parser-wide limits and defaults.
type Config struct {
	// MaxDepth bounds recursive descent into nested logical/elemMatch
	// documents (spec.md §4.9's kMaxDepth, default 100).
	MaxDepth int `mapstructure:"max_depth"`

	// DedupeAllScalars deduplicates a scalar-form $all argument's
	// entries before building the implicit AND-of-EQ (spec.md §4.10
	// Open Question), using [internal/dedupe].
	DedupeAllScalars bool `mapstructure:"dedupe_all_scalars"`
}

// DefaultConfig returns the parser's out-of-the-box settings.
func DefaultConfig() Config {
	return Config{
		MaxDepth:         100,
		DedupeAllScalars: false,
	}
}

// Load decodes m over DefaultConfig's values, so a caller supplying a
// partial map only overrides what it sets.
func Load(m map[string]any) (Config, error) {
	cfg := DefaultConfig()
	if len(m) == 0 {
		return cfg, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(m); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
