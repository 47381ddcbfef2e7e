package penum

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/viktorlott/enum-shape/dispatch"
)

// ConfigFile is the name FindConfig looks for.
const ConfigFile = "penum.yaml"

var validate = validator.New()

// Config is the project configuration read from penum.yaml.
type Config struct {
	// Traits lists files, relative to the config file, whose trait
	// declarations are registered before anything is expanded.
	Traits []string `yaml:"traits" validate:"dive,required"`

	// Assertions selects where inferred bounds go: the enum's where clause
	// or assertion stubs.
	Assertions string `yaml:"assertions" validate:"omitempty,oneof=where stubs"`

	// Out is the output directory of `penum expand`, relative to the config
	// file. Empty means standard output.
	Out string `yaml:"out"`

	// Suffix replaces the .rs extension of expanded files.
	Suffix string `yaml:"suffix" validate:"omitempty,startswith=."`

	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`

	// Dir is the directory containing the config file.
	Dir string `yaml:"-"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// ServerConfig configures `penum serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the configuration used when no penum.yaml exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Assertions == "" {
		c.Assertions = "where"
	}
	if c.Suffix == "" {
		c.Suffix = ".expanded.rs"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "localhost:7878"
	}
}

// LoadConfig reads and validates a penum.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// ParseConfig parses penum.yaml content. The path is only used in errors.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for penum.yaml starting from dir and walking up to
// the filesystem root. It returns "" and a nil error if there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Stubs reports whether bounds are emitted as assertion stubs.
func (c *Config) Stubs() bool { return c.Assertions == "stubs" }

// OutDir returns Out resolved against the config directory, or "".
func (c *Config) OutDir() string {
	if c.Out == "" || filepath.IsAbs(c.Out) {
		return c.Out
	}
	return filepath.Join(c.Dir, c.Out)
}

// OutputName returns the file name an expansion of path is written to.
func (c *Config) OutputName(path string) string {
	return strings.TrimSuffix(filepath.ToSlash(filepath.Clean(path)), ".rs") + c.Suffix
}

// Registry returns a registry holding the std traits plus every trait
// declared in the configured trait files.
func (c *Config) Registry() (*dispatch.Registry, error) {
	reg := dispatch.NewStdRegistry()
	for _, name := range c.Traits {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.Dir, path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading traits: %w", err)
		}
		if _, err := reg.RegisterSource(path, string(src)); err != nil {
			return nil, fmt.Errorf("registering %s: %w", name, err)
		}
	}
	return reg, nil
}
