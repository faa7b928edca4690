package snapshotters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/vfs"
	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLocalProvider_NewSnapshotter(t *testing.T) {
	t.Parallel()

	provider := &LocalProvider{HashMaxSize: 10}

	t.Run("provider default", func(t *testing.T) {
		s, err := provider.NewSnapshotter([]byte(`{"type":"local"}`))
		require.NoError(t, err)
		assert.Equal(t, int64(10), s.(*LocalSnapshotter).HashMaxSize)
	})

	t.Run("source override", func(t *testing.T) {
		s, err := provider.NewSnapshotter([]byte(`{"type":"local","hash_max_size":3}`))
		require.NoError(t, err)
		assert.Equal(t, int64(3), s.(*LocalSnapshotter).HashMaxSize)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := provider.NewSnapshotter([]byte(`{"hash_max_size":"x"}`))
		assert.Error(t, err)
	})
}

func TestLocalSnapshotter_RegularFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "hello")

	s := NewLocalSnapshotter(nil, 1024)
	snap, err := s.Snapshot(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, snap.Path)
	assert.Equal(t, vfs.RegularFile, snap.Type)
	assert.Equal(t, uint64(5), snap.Size())
	assert.Equal(t, xxhash.Sum64String("hello"), snap.Fingerprint)
	assert.True(t, snap.Attr.IsRegular())

	again, err := s.Snapshot(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, snap.SameContent(again))
	assert.NotEqual(t, snap.ID, again.ID, "every capture gets its own id")

	// reading for the hash may bump atime
	ignore := cmp.Options{
		cmpopts.IgnoreFields(vfs.Snapshot{}, "ID", "CapturedAt"),
		cmpopts.IgnoreFields(fuse.Attr{}, "Atime", "Atimensec"),
	}
	if diff := cmp.Diff(snap, again, ignore); diff != "" {
		t.Errorf("recapture mismatch (-first +second):\n%s", diff)
	}

	writeFile(t, path, "world")
	changed, err := s.Snapshot(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, snap.SameContent(changed))
}

func TestLocalSnapshotter_LargeFileUsesMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	writeFile(t, path, "0123456789")

	s := NewLocalSnapshotter(nil, 4)
	snap, err := s.Snapshot(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, vfs.RegularFile, snap.Type)
	assert.NotEqual(t, xxhash.Sum64String("0123456789"), snap.Fingerprint)
	assert.Equal(t, metaFingerprint(snap.Attr), snap.Fingerprint)
}

func TestLocalSnapshotter_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b"), "")
	writeFile(t, filepath.Join(dir, "a"), "")

	s := NewLocalSnapshotter(nil, 1024)
	snap, err := s.Snapshot(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, vfs.Directory, snap.Type)
	assert.True(t, snap.Attr.IsDir())

	// content changes inside do not change the listing
	writeFile(t, filepath.Join(dir, "a"), "changed")
	same, err := s.Snapshot(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, snap.Fingerprint, same.Fingerprint)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "c"), 0o755))
	grown, err := s.Snapshot(context.Background(), dir)
	require.NoError(t, err)
	assert.NotEqual(t, snap.Fingerprint, grown.Fingerprint)
}

func TestLocalSnapshotter_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nope")
	s := NewLocalSnapshotter(nil, 1024)

	snap, err := s.Snapshot(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, vfs.Missing, snap.Type)
	assert.Equal(t, path, snap.Path)
}

func TestLocalSnapshotter_Cancelled(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a")
	writeFile(t, path, "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewLocalSnapshotter(nil, 1024)
	_, err := s.Snapshot(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalSnapshotter_MemFs(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/proj/src/main.go", []byte("package main"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/proj/go.mod", []byte("module x"), 0o644))

	provider := &LocalProvider{HashMaxSize: 1024, Fs: fsys}
	s, err := provider.NewSnapshotter(nil)
	require.NoError(t, err)

	file, err := s.Snapshot(context.Background(), "/proj/src/main.go")
	require.NoError(t, err)
	assert.Equal(t, vfs.RegularFile, file.Type)
	assert.Equal(t, xxhash.Sum64String("package main"), file.Fingerprint)
	assert.Equal(t, uint64(len("package main")), file.Size())
	assert.True(t, file.Attr.IsRegular(), "attributes are built from the file info")

	dir, err := s.Snapshot(context.Background(), "/proj")
	require.NoError(t, err)
	assert.Equal(t, vfs.Directory, dir.Type)
	assert.True(t, dir.Attr.IsDir())

	missing, err := s.Snapshot(context.Background(), "/proj/README")
	require.NoError(t, err)
	assert.Equal(t, vfs.Missing, missing.Type)
}
