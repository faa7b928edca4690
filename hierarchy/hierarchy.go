// Package hierarchy implements the concurrent snapshot tree: a trie keyed by
// path segments whose nodes optionally carry an immutable [vfs.Snapshot].
//
// Every mutation goes through a single (parent, name) slot of a lock-striped
// children map, so operations on different names or subtrees never contend.
package hierarchy

import (
	"errors"
	"fmt"

	"github.com/brettbedarf/vfs"
	"github.com/brettbedarf/vfs/config"
	"github.com/brettbedarf/vfs/internal/util"
	"github.com/brettbedarf/vfs/pathutil"
)

var (
	// ErrRootPath is returned when storing or invalidating the root itself
	ErrRootPath = errors.New("root path carries no snapshot")

	ErrNilSnapshot = errors.New("nil snapshot")
)

// SnapshotHierarchy maps absolute paths to snapshots. It is safe for
// concurrent use. Paths must already be normalized by the caller.
type SnapshotHierarchy struct {
	root       *RootNode
	style      pathutil.Style
	pruneEmpty bool
	logger     util.Logger
}

// New creates an empty hierarchy configured by cfg
func New(cfg *config.Config) *SnapshotHierarchy {
	style := cfg.Style()
	return &SnapshotHierarchy{
		root:       NewRootNode(cfg.CaseSensitive, style.Separator()),
		style:      style,
		pruneEmpty: cfg.PruneEmpty,
		logger:     util.GetLogger("Hierarchy"),
	}
}

// Root returns the root node for traversal collaborators
func (h *SnapshotHierarchy) Root() *RootNode {
	return h.root
}

// Query returns the snapshot stored at path. It never creates nodes.
func (h *SnapshotHierarchy) Query(path string) (*vfs.Snapshot, bool) {
	segments, err := pathutil.SplitWith(path, h.style)
	if err != nil {
		return nil, false
	}
	node, ok := h.lookup(segments)
	if !ok {
		return nil, false
	}
	s := node.Snapshot()
	return s, s != nil
}

// Lookup returns the node at path without creating it
func (h *SnapshotHierarchy) Lookup(path string) (Node, error) {
	segments, err := pathutil.SplitWith(path, h.style)
	if err != nil {
		return nil, err
	}
	node, ok := h.lookup(segments)
	if !ok {
		return nil, fmt.Errorf("%w: %s", vfs.ErrNotFound, path)
	}
	return node, nil
}

func (h *SnapshotHierarchy) lookup(segments []string) (Node, bool) {
	var cur Node = h.root
	for _, name := range segments {
		child, ok := cur.Child(name)
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// Store installs snapshot at path, creating missing nodes on the way, and
// returns the snapshot it replaced. Concurrent stores to the same path are
// each atomic; the last one wins.
func (h *SnapshotHierarchy) Store(path string, snapshot *vfs.Snapshot) (*vfs.Snapshot, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("store %s: %w", path, ErrNilSnapshot)
	}
	segments, err := h.splitMutable(path)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", path, err)
	}

	for attempt := 1; ; attempt++ {
		prior, ok := h.store(segments, snapshot)
		if ok {
			h.logger.Trace().Str("path", path).Stringer("snapshot", snapshot).Msg("Stored snapshot")
			return prior, nil
		}
		h.logger.Debug().Str("path", path).Int("attempt", attempt).Msg("Ancestor pruned during store; retrying")
	}
}

// store reports false when a node it installed into was concurrently removed
// from the tree
func (h *SnapshotHierarchy) store(segments []string, snapshot *vfs.Snapshot) (*vfs.Snapshot, bool) {
	var cur Node = h.root
	last := len(segments) - 1
	for _, name := range segments[:last] {
		next := cur.GetOrCreateChild(name, newChild(name))
		if cur.children().pruned.Load() {
			return nil, false
		}
		cur = next
	}

	name := segments[last]
	prior := cur.ReplaceChild(name, newChild(name), func(n *MutableNode) *MutableNode {
		return n.WithSnapshot(snapshot)
	})
	if cur.children().pruned.Load() {
		return nil, false
	}
	if prior == nil {
		return nil, true
	}
	return prior.Snapshot(), true
}

// Invalidate clears the snapshot at path and returns it. Descendants are
// kept. Nothing is created when the path is unknown.
//
// With PruneEmpty the node itself is removed when it has no children.
func (h *SnapshotHierarchy) Invalidate(path string) (*vfs.Snapshot, error) {
	var removed *vfs.Snapshot
	pruned := false
	err := h.replaceExisting(path, func(n *MutableNode) *MutableNode {
		removed = n.Snapshot()
		if h.pruneEmpty && n.tryPrune() {
			pruned = true
			return nil
		}
		if removed == nil {
			return n
		}
		return n.WithSnapshot(nil)
	})
	if err != nil {
		return nil, fmt.Errorf("invalidate %s: %w", path, err)
	}
	h.logger.Trace().Str("path", path).Bool("found", removed != nil).Bool("pruned", pruned).Msg("Invalidated")
	return removed, nil
}

// InvalidateTree removes the node at path together with all descendants and
// returns the snapshot it carried
func (h *SnapshotHierarchy) InvalidateTree(path string) (*vfs.Snapshot, error) {
	var removed *vfs.Snapshot
	err := h.replaceExisting(path, func(n *MutableNode) *MutableNode {
		removed = n.Snapshot()
		n.markDetached()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalidate tree %s: %w", path, err)
	}
	h.logger.Trace().Str("path", path).Bool("found", removed != nil).Msg("Invalidated subtree")
	return removed, nil
}

// replaceExisting applies transform to the node at path if it exists
func (h *SnapshotHierarchy) replaceExisting(path string, transform NodeTransform) error {
	segments, err := h.splitMutable(path)
	if err != nil {
		return err
	}
	last := len(segments) - 1
	parent, ok := h.lookup(segments[:last])
	if !ok {
		return nil
	}
	parent.ReplaceChild(segments[last], nil, transform)
	return nil
}

// Visit walks the subtree at path. Use [RootPath] to walk everything.
func (h *SnapshotHierarchy) Visit(path string, v vfs.Visitor) error {
	node, err := h.Lookup(path)
	if err != nil {
		return err
	}
	return node.Accept(v)
}

// splitMutable splits path and rejects the root, which cannot carry a snapshot
func (h *SnapshotHierarchy) splitMutable(path string) ([]string, error) {
	segments, err := pathutil.SplitWith(path, h.style)
	if err != nil {
		return nil, err
	}
	if len(segments) == 1 && segments[0] == "" {
		return nil, ErrRootPath
	}
	return segments, nil
}

func newChild(name string) NodeFactory {
	return func(parent Node) *MutableNode {
		return NewMutableNode(parent, name, nil)
	}
}
