package vfs

import "context"

// Visitor receives snapshot subtrees during a depth-first walk.
//
// Visit is called for every node with its absolute path and its snapshot,
// which is nil for synthetic nodes that only route to deeper children.
// Returning false skips the node's children.
type Visitor interface {
	Visit(path string, snapshot *Snapshot) bool
}

// PostVisitor is optionally implemented by a [Visitor] that needs to know when
// a subtree has been fully walked. It is not called for skipped subtrees.
type PostVisitor interface {
	PostVisit(path string, snapshot *Snapshot)
}

// VisitorFunc adapts a plain function to a [Visitor]
type VisitorFunc func(path string, snapshot *Snapshot) bool

func (f VisitorFunc) Visit(path string, snapshot *Snapshot) bool {
	return f(path, snapshot)
}

// Snapshotter produces fresh snapshots for real paths. Implementations do the
// I/O (stat, hashing, remote requests) that the hierarchy never does itself.
type Snapshotter interface {
	Snapshot(ctx context.Context, path string) (*Snapshot, error)
}

// SnapshotterFunc adapts a plain function to a [Snapshotter]
type SnapshotterFunc func(ctx context.Context, path string) (*Snapshot, error)

func (f SnapshotterFunc) Snapshot(ctx context.Context, path string) (*Snapshot, error) {
	return f(ctx, path)
}
