package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettbedarf/vfs"
	"github.com/brettbedarf/vfs/config"
	"github.com/brettbedarf/vfs/hierarchy"
	"github.com/brettbedarf/vfs/internal/util"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig("", 0)
		require.NoError(t, err)
		assert.Equal(t, config.NewDefaultConfig(), cfg)
	})

	t.Run("verbose flag", func(t *testing.T) {
		cfg, err := loadConfig("", config.TraceVerbose)
		require.NoError(t, err)
		assert.Equal(t, util.TraceLevel, cfg.LogLvl)
	})

	t.Run("flag beats file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_lvl: 1\nconcurrency: 3\n"), 0o644))

		cfg, err := loadConfig(path, config.DebugVerbose)
		require.NoError(t, err)
		assert.Equal(t, util.DebugLevel, cfg.LogLvl)
		assert.Equal(t, 3, cfg.Concurrency)
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\n"), 0o644))

		cfg, err := loadConfig(path, 0)
		assert.Error(t, err)
		assert.NotNil(t, cfg, "defaults are returned so logging can start")
	})
}

func TestPrintTree(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	cfg.PathStyle = config.PathStyleUnix
	cfg.CaseSensitive = true
	h := hierarchy.New(cfg)

	_, err := h.Store("/src/main.go", vfs.NewSnapshot("/src/main.go", vfs.RegularFile, fuse.Attr{Size: 42}, 0xab))
	require.NoError(t, err)
	_, err = h.Store("/README", vfs.NewSnapshot("/README", vfs.Missing, fuse.Attr{}, 0))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printTree(&out, h, cfg))

	assert.Equal(t, "/\n"+
		"  /README [missing size=0 fp=0000000000000000]\n"+
		"  /src\n"+
		"    /src/main.go [file size=42 fp=00000000000000ab]\n", out.String())
}

func TestPrintTree_Windows(t *testing.T) {
	t.Parallel()

	cfg := config.NewDefaultConfig()
	cfg.PathStyle = config.PathStyleWindows
	h := hierarchy.New(cfg)

	_, err := h.Store(`D:\data`, vfs.NewSnapshot(`D:\data`, vfs.Directory, fuse.Attr{}, 1))
	require.NoError(t, err)
	_, err = h.Store(`C:\Users\me`, vfs.NewSnapshot(`C:\Users\me`, vfs.Directory, fuse.Attr{}, 2))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printTree(&out, h, cfg))

	assert.Equal(t, "C:\n"+
		"  C:\\Users\n"+
		"    C:\\Users\\me [dir size=0 fp=0000000000000002]\n"+
		"D:\n"+
		"  D:\\data [dir size=0 fp=0000000000000001]\n", out.String())
}
