// Package config loads hashcollider settings from an optional YAML file.
//
// The file is chosen by the --config flag or the HASHCOLLIDER_CONFIG
// environment variable. There is no automatic discovery. Flags set on the
// command line override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const EnvConfig = "HASHCOLLIDER_CONFIG"

type Config struct {
	// Algorithm forces a hash algorithm instead of identifying it from the
	// digest length.
	Algorithm string `yaml:"algorithm"`

	// Extended searches the full algorithm catalog. Most digest lengths
	// are then shared and Algorithm must be set.
	Extended bool `yaml:"extended"`

	// Separators are joined between permutation elements, in order.
	// A nil list means the defaults; an explicit empty list is rejected.
	Separators []string `yaml:"separators"`

	// Workers is the verification pool size; 0 picks 4x the CPUs.
	Workers int `yaml:"workers"`

	// BatchSize fixes the verification batch size; 0 derives it from the
	// candidate count.
	BatchSize int `yaml:"batch_size"`

	// WorkingFile keeps the candidate stream at this path after the run.
	// Empty uses a temporary file that is removed.
	WorkingFile string `yaml:"working_file"`

	// Compression is none, zstd or lz4.
	Compression string `yaml:"compression"`

	// ProceedOnPartial verifies whatever was written when generation
	// fails on storage, instead of aborting.
	ProceedOnPartial bool `yaml:"proceed_on_partial"`

	// Strict makes an input that no parser accepts fatal.
	Strict bool `yaml:"strict"`

	// Parsers names the parsers to register, in the order they are tried.
	// Empty registers every built-in parser.
	Parsers []string `yaml:"parsers"`

	NoProgress bool `yaml:"no_progress"`
	Verbose    bool `yaml:"verbose"`
}

func Default() *Config {
	return &Config{Compression: "none"}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by path, or by HASHCOLLIDER_CONFIG when
// path is empty. With neither set it returns the defaults.
func LoadFromEnv(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", c.BatchSize)
	}
	if c.Separators != nil && len(c.Separators) == 0 {
		return errors.New("separators must not be empty")
	}
	for _, sep := range c.Separators {
		if strings.ContainsRune(sep, '\n') {
			return fmt.Errorf("separator %q contains a newline", sep)
		}
	}
	return nil
}

// ParseSeparators splits a comma-separated flag value. Empty items are
// kept, so ",+" means the empty separator followed by "+".
func ParseSeparators(s string) []string {
	return strings.Split(s, ",")
}
