package snapshotters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/brettbedarf/vfs"
	"github.com/brettbedarf/vfs/internal/util"
	"github.com/cespare/xxhash/v2"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/afero"
)

// LocalSource contains local filesystem source fields
type LocalSource struct {
	// HashMaxSize overrides the provider's limit when set
	HashMaxSize *int64 `json:"hash_max_size,omitempty"`
}

// LocalProvider builds [LocalSnapshotter]s
type LocalProvider struct {
	HashMaxSize int64    // Files larger than this are fingerprinted from metadata
	Fs          afero.Fs // Defaults to the OS filesystem
}

func (p *LocalProvider) NewSnapshotter(raw []byte) (vfs.Snapshotter, error) {
	var src LocalSource
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, fmt.Errorf("invalid local source: %w", err)
		}
	}
	max := p.HashMaxSize
	if src.HashMaxSize != nil {
		max = *src.HashMaxSize
	}
	return NewLocalSnapshotter(p.Fs, max), nil
}

// LocalSnapshotter snapshots files on the local filesystem. Symlinks are
// followed; paths that do not exist produce [vfs.Missing] snapshots.
type LocalSnapshotter struct {
	HashMaxSize int64
	fs          afero.Fs
}

// NewLocalSnapshotter reads through fsys, or the OS filesystem when nil
func NewLocalSnapshotter(fsys afero.Fs, hashMaxSize int64) *LocalSnapshotter {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &LocalSnapshotter{HashMaxSize: hashMaxSize, fs: fsys}
}

func (s *LocalSnapshotter) Snapshot(ctx context.Context, path string) (*vfs.Snapshot, error) {
	logger := util.GetLogger("LocalSnapshotter")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fi, err := s.fs.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Trace().Str("path", path).Msg("Path missing")
		return vfs.NewSnapshot(path, vfs.Missing, fuse.Attr{}, 0), nil
	}
	if err != nil {
		return nil, err
	}

	attr := toAttr(fi)
	switch {
	case fi.IsDir():
		fp, err := s.hashDir(path)
		if err != nil {
			return nil, err
		}
		return vfs.NewSnapshot(path, vfs.Directory, attr, fp), nil
	case fi.Mode().IsRegular():
		fp, err := s.hashFile(ctx, path, fi)
		if err != nil {
			return nil, err
		}
		return vfs.NewSnapshot(path, vfs.RegularFile, attr, fp), nil
	default:
		// devices, sockets and pipes have no stable content
		logger.Debug().Str("path", path).Str("mode", fi.Mode().String()).Msg("Fingerprinting special file from metadata")
		return vfs.NewSnapshot(path, vfs.RegularFile, attr, metaFingerprint(attr)), nil
	}
}

func (s *LocalSnapshotter) hashFile(ctx context.Context, path string, fi fs.FileInfo) (uint64, error) {
	if fi.Size() > s.HashMaxSize {
		return metaFingerprint(toAttr(fi)), nil
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d := xxhash.New()
	if _, err := io.Copy(d, &ctxReader{ctx: ctx, r: f}); err != nil {
		return 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return d.Sum64(), nil
}

// hashDir fingerprints a directory by its entry names and their types
func (s *LocalSnapshotter) hashDir(path string) (uint64, error) {
	// sorted by name
	entries, err := afero.ReadDir(s.fs, path)
	if err != nil {
		return 0, err
	}
	d := xxhash.New()
	for _, e := range entries {
		kind := "f"
		if e.IsDir() {
			kind = "d"
		}
		_, _ = d.WriteString(e.Name())
		_, _ = d.WriteString("\x00" + kind + "\x00")
	}
	return d.Sum64(), nil
}

// metaFingerprint stands in for a content digest when content is not read
func metaFingerprint(attr fuse.Attr) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%d:%d.%d:%o", attr.Size, attr.Mtime, attr.Mtimensec, attr.Mode))
}

// toAttr converts fi using the platform stat data when available
func toAttr(fi fs.FileInfo) fuse.Attr {
	if a := fuse.ToAttr(fi); a != nil {
		return *a
	}
	attr := fuse.Attr{
		Size:  uint64(fi.Size()),
		Mode:  uint32(fi.Mode().Perm()),
		Nlink: 1,
	}
	if fi.IsDir() {
		attr.Mode |= fuse.S_IFDIR
	} else {
		attr.Mode |= fuse.S_IFREG
	}
	mtime := fi.ModTime()
	attr.SetTimes(nil, &mtime, nil)
	return attr
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ vfs.Snapshotter = (*LocalSnapshotter)(nil)
