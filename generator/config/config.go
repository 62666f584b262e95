// Package config reads sqcrab.toml, the project configuration of the
// generator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/sqcrab/sqcrab"
)

const (
	FileName      = "sqcrab.toml"
	DefaultOutput = "sqcrab_domains"
)

type Config struct {
	Output   string        `toml:"output"`
	Include  []string      `toml:"include"`
	Package  string        `toml:"package"`
	Manifest string        `toml:"manifest"`
	VM       sqcrab.Config `toml:"vm"`
}

func Default() *Config {
	return &Config{
		Output: DefaultOutput,
		VM:     sqcrab.DefaultConfig(),
	}
}

// OutputFile is the name of the generated file.
func (c *Config) OutputFile() string {
	output := c.Output
	if output == "" {
		output = DefaultOutput
	}
	if !strings.HasSuffix(output, ".go") {
		output += ".go"
	}
	return output
}

// Load reads the configuration at file. Keys that are not set keep their
// defaults, unknown keys are an error.
func Load(file string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(file, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", file, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("could not read %s: unknown keys %s", file, strings.Join(keys, ", "))
	}

	if cfg.VM.StackSize <= 0 {
		return nil, fmt.Errorf("could not read %s: vm.stack_size must be positive", file)
	}

	return cfg, nil
}

// LoadDir reads sqcrab.toml from dir, or returns the defaults when there is
// none.
func LoadDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}
