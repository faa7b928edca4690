package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/brettbedarf/vfs/internal/util"
	"github.com/brettbedarf/vfs/pathutil"
	"gopkg.in/yaml.v3"
)

// Bytes per MB
const MB = 1024 * 1024

// Log verbosity values accepted by [ConfigOverride.LogLvl] and the CLI
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Path styles accepted by [Config.PathStyle]
const (
	PathStyleHost    = ""
	PathStyleUnix    = "unix"
	PathStyleWindows = "windows"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	// DefaultPruneEmpty keeps emptied nodes in the tree; memory only grows with
	// the set of paths ever stored
	DefaultPruneEmpty = false

	DefaultPathStyle = PathStyleHost

	// DefaultHashMaxSize is the largest file whose content is hashed. Larger
	// files are fingerprinted from their metadata.
	DefaultHashMaxSize = 256 * MB

	// DefaultHTTPTimeout is the remote snapshot request timeout in seconds
	DefaultHTTPTimeout = 30.0

	// DefaultConcurrency is the number of snapshots produced in parallel by a refresh
	DefaultConcurrency = 8
)

// DefaultCaseSensitive reports whether child names are case-sensitive on
// the running platform
func DefaultCaseSensitive() bool {
	switch runtime.GOOS {
	case "windows", "darwin", "ios":
		return false
	default:
		return true
	}
}

// Config contains runtime configuration values for the snapshot cache.
type Config struct {
	LogLvl        util.LogLevel
	CaseSensitive bool    // Whether child names differing only in case are distinct (Default per platform)
	PruneEmpty    bool    // Remove invalidated nodes that have no children (Default false)
	PathStyle     string  // "unix", "windows" or "" for the host style (Default "")
	HashMaxSize   int64   // Largest file in bytes whose content is hashed (Default 256MB)
	HTTPTimeout   float64 // Remote snapshot request timeout in seconds (Default 30)
	Concurrency   int     // Parallel snapshots during a refresh (Default 8)
}

// Style returns the [pathutil.Style] selected by PathStyle
func (c *Config) Style() pathutil.Style {
	switch c.PathStyle {
	case PathStyleUnix:
		return pathutil.UnixStyle
	case PathStyleWindows:
		return pathutil.WindowsStyle
	default:
		return pathutil.HostStyle()
	}
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is a verbosity between 1 (error) and 5 (trace); out of range values are clamped
	LogLvl        *int     `yaml:"log_lvl,omitempty" json:"log_lvl,omitempty"`
	CaseSensitive *bool    `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	PruneEmpty    *bool    `yaml:"prune_empty,omitempty" json:"prune_empty,omitempty"`
	PathStyle     *string  `yaml:"path_style,omitempty" json:"path_style,omitempty"`
	HashMaxSize   *int64   `yaml:"hash_max_size,omitempty" json:"hash_max_size,omitempty"`
	HTTPTimeout   *float64 `yaml:"http_timeout,omitempty" json:"http_timeout,omitempty"`
	Concurrency   *int     `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLvl:        DefaultLogLvl,
		CaseSensitive: DefaultCaseSensitive(),
		PruneEmpty:    DefaultPruneEmpty,
		PathStyle:     DefaultPathStyle,
		HashMaxSize:   DefaultHashMaxSize,
		HTTPTimeout:   DefaultHTTPTimeout,
		Concurrency:   DefaultConcurrency,
	}
}

// NewConfig returns the default config with override applied. A nil override
// yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// VerboseToLogLvl maps a CLI verbosity (1 error .. 5 trace) onto a
// [util.LogLevel], clamping out of range values
func VerboseToLogLvl(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(TraceVerbose, verbose))
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerboseToLogLvl(*override.LogLvl)
	}
	if override.CaseSensitive != nil {
		c.CaseSensitive = *override.CaseSensitive
	}
	if override.PruneEmpty != nil {
		c.PruneEmpty = *override.PruneEmpty
	}
	if override.PathStyle != nil {
		c.PathStyle = *override.PathStyle
	}
	if override.HashMaxSize != nil {
		c.HashMaxSize = *override.HashMaxSize
	}
	if override.HTTPTimeout != nil {
		c.HTTPTimeout = *override.HTTPTimeout
	}
	if override.Concurrency != nil {
		c.Concurrency = *override.Concurrency
	}
}

// Validate reports values that cannot be used
func (c *Config) Validate() error {
	switch c.PathStyle {
	case PathStyleHost, PathStyleUnix, PathStyleWindows:
	default:
		return fmt.Errorf("invalid path style: %q", c.PathStyle)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.HashMaxSize < 0 {
		return fmt.Errorf("hash max size must not be negative, got %d", c.HashMaxSize)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative, got %v", c.HTTPTimeout)
	}
	return nil
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig(override)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
