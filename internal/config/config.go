// Package config holds every threshold, cap and weight of cora.
//
// Default returns the values the ritual has always used. Load overlays a
// YAML file on top of the defaults; unknown keys are rejected so typos
// fail loudly.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cora/internal/constancy"
	"github.com/roach88/cora/internal/contingency"
	"github.com/roach88/cora/internal/guardian"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/niches"
)

// Config is the complete configuration.
type Config struct {
	// Ritual configures verification, registry, matching and the gate.
	Ritual guardian.Options `yaml:"ritual"`

	Constancy   constancy.Options   `yaml:"constancy"`
	Niches      niches.Options      `yaml:"niches"`
	Contingency contingency.Options `yaml:"contingency"`

	// Lexicon is a path to a YAML or CUE lexicon. Relative paths resolve
	// against the config file. Empty uses the built-in lexicon.
	Lexicon string `yaml:"lexicon,omitempty"`

	// SharedScope names the store scope shared by niches and contingencies.
	SharedScope string `yaml:"shared_scope"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Ritual:      guardian.DefaultOptions(),
		Constancy:   constancy.DefaultOptions(),
		Niches:      niches.DefaultOptions(),
		Contingency: contingency.DefaultOptions(),
		SharedScope: "comunidad",
	}
}

// Load reads path and overlays it on Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Lexicon != "" && !filepath.IsAbs(cfg.Lexicon) {
		cfg.Lexicon = filepath.Join(filepath.Dir(path), cfg.Lexicon)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges.
func (c Config) Validate() error {
	v := c.Ritual.Verify
	if err := unit("ritual.verify.acceptance_threshold", v.AcceptanceThreshold); err != nil {
		return err
	}
	if err := unit("ritual.gate.threshold", c.Ritual.Gate.Threshold); err != nil {
		return err
	}
	if err := unit("niches.min_compatibility", c.Niches.MinCompatibility); err != nil {
		return err
	}
	if err := unit("contingency.min_resonance", c.Contingency.MinResonance); err != nil {
		return err
	}
	if v.MinDwellSeconds < 0 {
		return fmt.Errorf("ritual.verify.min_dwell_seconds must be non-negative")
	}
	if v.Score.MinLength > v.Score.MaxLength {
		return fmt.Errorf("ritual.verify.score: min_length %d exceeds max_length %d", v.Score.MinLength, v.Score.MaxLength)
	}
	if c.Ritual.Matcher.MinOverlap < 1 {
		return fmt.Errorf("ritual.matcher.min_overlap must be at least 1")
	}
	if c.SharedScope == "" {
		return fmt.Errorf("shared_scope is required")
	}
	return nil
}

// LoadLexicon returns the configured lexicon, or the built-in one.
func (c Config) LoadLexicon() (*lexicon.Lexicon, error) {
	if c.Lexicon == "" {
		return lexicon.Default(), nil
	}
	return lexicon.LoadFile(c.Lexicon)
}

func unit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1], got %v", name, v)
	}
	return nil
}
