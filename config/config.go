// Package config loads the questscript configuration file. The file is
// HuJSON: JSON with comments and trailing commas.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
	"go.uber.org/zap/zapcore"

	"github.com/nathoo/questscript/engine/syntax"
)

// DefaultPath is where the CLI looks for a config file when none is
// given.
const DefaultPath = "questscript.hujson"

// Config describes a config file.
type Config struct {
	Raw []byte // raw bytes, in HuJSON form
	Std []byte // standardized JSON form

	Parsed File
}

// File is the content of a config file. Unset fields take their
// defaults through the getters.
type File struct {
	ScriptsDir *string `json:",omitempty"` // Directory of *.sk scripts. Defaults to "scripts".
	AddonsDir  *string `json:",omitempty"` // Directory of *.lua addons. Defaults to "addons".
	CacheSize  *int    `json:",omitempty"` // Compiled pattern cache entries.
	LogLevel   *string `json:",omitempty"` // "debug", "info", "warn", "error". Defaults to "info".
	Debug      *bool   `json:",omitempty"` // Development logging.
	Seed       *uint64 `json:",omitempty"` // Random seed. Unset or 0 seeds from the clock.

	Limits *LimitsConfig `json:",omitempty"`
}

// LimitsConfig bounds parsing work per line.
type LimitsConfig struct {
	MaxSteps *int `json:",omitempty"` // Step budget of one pattern match.
	MaxDepth *int `json:",omitempty"` // Deepest expression nesting.
}

// Load reads and parses the config file at path. A missing file is not
// an error when path is DefaultPath; every setting then has its default.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("error reading config: %w", err)
	}
	return Parse(raw)
}

// Parse parses config file content.
func Parse(raw []byte) (c Config, err error) {
	c.Raw = raw
	c.Std, err = hujson.Standardize(c.Raw)
	if err != nil {
		return c, fmt.Errorf("error parsing config as HuJSON/JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(c.Std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c.Parsed); err != nil {
		return c, fmt.Errorf("error parsing config: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return c, err
	}
	if n := c.CacheSize(); n < 0 {
		return c, fmt.Errorf("error parsing config: CacheSize must not be negative, got %d", n)
	}
	return c, nil
}

func (c *Config) ScriptsDir() string {
	if c.Parsed.ScriptsDir == nil {
		return "scripts"
	}
	return *c.Parsed.ScriptsDir
}

func (c *Config) AddonsDir() string {
	if c.Parsed.AddonsDir == nil {
		return "addons"
	}
	return *c.Parsed.AddonsDir
}

// CacheSize is 0 when unset, which lets the pattern cache pick its own
// size.
func (c *Config) CacheSize() int {
	if c.Parsed.CacheSize == nil {
		return 0
	}
	return *c.Parsed.CacheSize
}

func (c *Config) Debug() bool {
	return c.Parsed.Debug != nil && *c.Parsed.Debug
}

func (c *Config) Seed() uint64 {
	if c.Parsed.Seed == nil {
		return 0
	}
	return *c.Parsed.Seed
}

// Level returns the configured log level.
func (c *Config) Level() (zapcore.Level, error) {
	if c.Parsed.LogLevel == nil {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(*c.Parsed.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("error parsing config: LogLevel: %w", err)
	}
	return lvl, nil
}

// Limits returns the parser limits. Zero fields use the parser defaults.
func (c *Config) Limits() syntax.Limits {
	var l syntax.Limits
	if c.Parsed.Limits == nil {
		return l
	}
	if c.Parsed.Limits.MaxSteps != nil {
		l.MaxSteps = *c.Parsed.Limits.MaxSteps
	}
	if c.Parsed.Limits.MaxDepth != nil {
		l.MaxDepth = *c.Parsed.Limits.MaxDepth
	}
	return l
}

// SetScriptsDir and the setters below let command line flags override
// the file.
func (c *Config) SetScriptsDir(dir string) { c.Parsed.ScriptsDir = &dir }
func (c *Config) SetAddonsDir(dir string)  { c.Parsed.AddonsDir = &dir }
func (c *Config) SetDebug(v bool)          { c.Parsed.Debug = &v }
func (c *Config) SetSeed(v uint64)         { c.Parsed.Seed = &v }
