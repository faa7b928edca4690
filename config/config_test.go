package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/vfs/internal/util"
	"github.com/brettbedarf/vfs/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestNewConfig_WithNilOverride tests that NewConfig creates a config with all default values
// when no override is provided.
func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, createDefaultCfg(), cfg, "must use default values when no config provided")
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := createOverride()
	cfg := NewConfig(override)

	expCfg := &Config{
		LogLvl:        util.TraceLevel,
		CaseSensitive: *override.CaseSensitive,
		PruneEmpty:    *override.PruneEmpty,
		PathStyle:     *override.PathStyle,
		HashMaxSize:   *override.HashMaxSize,
		HTTPTimeout:   *override.HTTPTimeout,
		Concurrency:   *override.Concurrency,
	}
	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields")
}

func TestConfig_Merge_LogLvlConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		verboseValue  int
		expectedLevel util.LogLevel
	}{
		{"verbose_1_error", 1, util.ErrorLevel},
		{"verbose_2_warn", 2, util.WarnLevel},
		{"verbose_3_info", 3, util.InfoLevel},
		{"verbose_4_debug", 4, util.DebugLevel},
		{"verbose_5_trace", 5, util.TraceLevel},
		{"verbose_0_clamped_to_1", 0, util.ErrorLevel},
		{"verbose_100_clamped_to_5", 100, util.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			override := &ConfigOverride{
				LogLvl: &tt.verboseValue,
			}
			cfg := NewConfig(override)

			assert.Equal(t, tt.expectedLevel, cfg.LogLvl,
				"CLI verbose %d should map to util.LogLevel %v", tt.verboseValue, tt.expectedLevel)
		})
	}
}

func TestConfig_Merge_PartialOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		PruneEmpty:  util.Pointer(true),
		Concurrency: util.Pointer(DefaultConcurrency + 1),
	}
	cfg := NewConfig(override)

	expCfg := createDefaultCfg()
	expCfg.PruneEmpty = true
	expCfg.Concurrency = DefaultConcurrency + 1

	assert.Equal(t, expCfg, cfg, "must override all provided fields and leave rest default")
}

func TestConfig_Style(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pathutil.UnixStyle, (&Config{PathStyle: PathStyleUnix}).Style())
	assert.Equal(t, pathutil.WindowsStyle, (&Config{PathStyle: PathStyleWindows}).Style())
	assert.Equal(t, pathutil.HostStyle(), (&Config{}).Style())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad path style", func(c *Config) { c.PathStyle = "vms" }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative hash size", func(c *Config) { c.HashMaxSize = -1 }},
		{"negative timeout", func(c *Config) { c.HTTPTimeout = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigOverrideFile_Valid(t *testing.T) {
	t.Parallel()

	type tc struct {
		ext     string
		marshal func(v any) ([]byte, error)
	}

	cases := []tc{
		{".yaml", yaml.Marshal},
		{".yml", yaml.Marshal},
		{".json", json.Marshal},
	}

	for _, c := range cases {
		name := "valid" + c.ext
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			override := createOverride()
			data, err := c.marshal(override)
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), "override"+c.ext)
			require.NoError(t, os.WriteFile(path, data, 0o600))

			loaded, err := LoadConfigOverrideFile(path)

			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, *override, *loaded)
		})
	}
}

// TestLoadConfigOverrideFile_NonExistentFile tests error handling
// when trying to load a file that doesn't exist.
func TestLoadConfigOverrideFile_NonExistentFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "does_not_exist.yaml")

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err), "expected not exist error, got %v", err)
}

func TestLoadConfigOverrideFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "override.txt")
	require.NoError(t, os.WriteFile(path, []byte("prune_empty: true"), 0o600))

	_, err := LoadConfigOverrideFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config file extension")
}

func TestNewConfigFromFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := NewConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\n"), 0o600))
		_, err := NewConfigFromFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "concurrency")
	})

	t.Run("partial yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("prune_empty: true\npath_style: unix\n"), 0o600))
		cfg, err := NewConfigFromFile(path)
		require.NoError(t, err)
		assert.True(t, cfg.PruneEmpty)
		assert.Equal(t, PathStyleUnix, cfg.PathStyle)
		assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	})
}

func createDefaultCfg() *Config {
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

// createOverride makes a ConfigOverride with all non-default values
func createOverride() *ConfigOverride {
	return &ConfigOverride{
		LogLvl:        util.Pointer(TraceVerbose),
		CaseSensitive: util.Pointer(!DefaultCaseSensitive()),
		PruneEmpty:    util.Pointer(!DefaultPruneEmpty),
		PathStyle:     util.Pointer(PathStyleWindows),
		HashMaxSize:   util.Pointer(int64(DefaultHashMaxSize + 1)),
		HTTPTimeout:   util.Pointer(DefaultHTTPTimeout + 1),
		Concurrency:   util.Pointer(DefaultConcurrency + 1),
	}
}
