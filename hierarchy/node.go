package hierarchy

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/brettbedarf/vfs"
	"github.com/puzpuzpuz/xsync/v4"
)

// NodeFactory builds the node for an absent slot. It receives the parent so
// the child can derive its path without a second lookup.
//
// Factories run while the slot is locked: they must not touch the parent's
// children and must have no side effects beyond building the node.
type NodeFactory func(parent Node) *MutableNode

// NodeTransform derives the node that replaces current in its slot. Returning
// nil removes the slot. The same restrictions as [NodeFactory] apply.
type NodeTransform func(current *MutableNode) *MutableNode

// Node is implemented by the tree's node variants: [*MutableNode],
// [*RootNode] and the root's path proxy.
type Node interface {
	// AbsolutePath returns the node's fully-qualified path
	AbsolutePath() string

	// ChildPath returns the path a child called name would have, without
	// creating it
	ChildPath(name string) string

	// Type returns the type of the node's snapshot, or [vfs.Unknown]
	Type() vfs.FileType

	// Snapshot returns the attached snapshot; nil for synthetic nodes
	Snapshot() *vfs.Snapshot

	// Child returns an existing child without creating it
	Child(name string) (Node, bool)

	// GetOrCreateChild returns the child called name, installing the result
	// of factory if absent. Callers racing on the same absent name all get
	// the same child and factory runs at most once.
	GetOrCreateChild(name string, factory NodeFactory) Node

	// ReplaceChild atomically replaces the child called name with
	// transform(child). An absent child is first created with factory; with
	// a nil factory an absent slot is left alone. Returns the replaced child
	// or nil.
	ReplaceChild(name string, factory NodeFactory, transform NodeTransform) *MutableNode

	// Accept walks the subtree depth-first, children in name order
	Accept(v vfs.Visitor) error

	children() *childTable
}

// treeOptions are shared by every node of a tree
type treeOptions struct {
	foldCase  bool
	separator string
}

// childTable maps child names to nodes. It is shared by all versions of a
// node so installs never get lost when a node's snapshot is replaced.
type childTable struct {
	m      *xsync.Map[string, *MutableNode]
	opts   *treeOptions
	pruned atomic.Bool // set once the owning node has been removed from the tree
}

func newChildTable(opts *treeOptions) *childTable {
	return &childTable{
		m:    xsync.NewMap[string, *MutableNode](),
		opts: opts,
	}
}

func (t *childTable) key(name string) string {
	if t.opts.foldCase {
		return strings.ToLower(name)
	}
	return name
}

func (t *childTable) load(name string) (*MutableNode, bool) {
	return t.m.Load(t.key(name))
}

func (t *childTable) getOrCreate(parent Node, name string, factory NodeFactory) *MutableNode {
	child, _ := t.m.LoadOrCompute(t.key(name), func() (*MutableNode, bool) {
		c := factory(parent)
		return c, c == nil
	})
	return child
}

func (t *childTable) replace(parent Node, name string, factory NodeFactory, transform NodeTransform) (prior *MutableNode) {
	t.m.Compute(t.key(name), func(cur *MutableNode, loaded bool) (*MutableNode, xsync.ComputeOp) {
		if loaded {
			prior = cur
		} else {
			if factory == nil {
				return nil, xsync.CancelOp
			}
			if cur = factory(parent); cur == nil {
				return nil, xsync.CancelOp
			}
		}
		next := transform(cur)
		switch {
		case next != nil:
			return next, xsync.UpdateOp
		case loaded:
			return nil, xsync.DeleteOp
		default:
			return nil, xsync.CancelOp
		}
	})
	return prior
}

// sorted returns a snapshot of the children ordered by name
func (t *childTable) sorted() []*MutableNode {
	nodes := make([]*MutableNode, 0, t.m.Size())
	t.m.Range(func(_ string, child *MutableNode) bool {
		nodes = append(nodes, child)
		return true
	})
	slices.SortFunc(nodes, func(a, b *MutableNode) int {
		return strings.Compare(a.name, b.name)
	})
	return nodes
}

// walk visits path/snapshot and then the children in t
func (t *childTable) walk(path string, snapshot *vfs.Snapshot, v vfs.Visitor) {
	if !v.Visit(path, snapshot) {
		return
	}
	for _, child := range t.sorted() {
		child.table.walk(child.path, child.snapshot, v)
	}
	if pv, ok := v.(vfs.PostVisitor); ok {
		pv.PostVisit(path, snapshot)
	}
}

// MutableNode is an interior node of the tree. A MutableNode value is never
// modified: replacing its snapshot installs a new version in the parent slot
// that shares the children.
type MutableNode struct {
	name     string
	path     string // cached at creation
	snapshot *vfs.Snapshot
	table    *childTable
}

// NewMutableNode creates a detached node for the child called name of parent.
// It inherits the tree options of parent.
func NewMutableNode(parent Node, name string, snapshot *vfs.Snapshot) *MutableNode {
	return &MutableNode{
		name:     name,
		path:     parent.ChildPath(name),
		snapshot: snapshot,
		table:    newChildTable(parent.children().opts),
	}
}

// Name returns the path segment of the node
func (n *MutableNode) Name() string {
	return n.name
}

func (n *MutableNode) AbsolutePath() string {
	return n.path
}

func (n *MutableNode) ChildPath(name string) string {
	return n.path + n.table.opts.separator + name
}

func (n *MutableNode) Type() vfs.FileType {
	if n.snapshot == nil {
		return vfs.Unknown
	}
	return n.snapshot.Type
}

func (n *MutableNode) Snapshot() *vfs.Snapshot {
	return n.snapshot
}

// WithSnapshot returns a new version of the node carrying snapshot
func (n *MutableNode) WithSnapshot(snapshot *vfs.Snapshot) *MutableNode {
	return &MutableNode{
		name:     n.name,
		path:     n.path,
		snapshot: snapshot,
		table:    n.table,
	}
}

// HasChildren reports whether any child is currently installed
func (n *MutableNode) HasChildren() bool {
	return n.table.m.Size() > 0
}

// IsEmpty reports whether the node carries neither a snapshot nor children
func (n *MutableNode) IsEmpty() bool {
	return n.snapshot == nil && !n.HasChildren()
}

func (n *MutableNode) Child(name string) (Node, bool) {
	if child, ok := n.table.load(name); ok {
		return child, true
	}
	return nil, false
}

func (n *MutableNode) GetOrCreateChild(name string, factory NodeFactory) Node {
	if child := n.table.getOrCreate(n, name, factory); child != nil {
		return child
	}
	return nil
}

func (n *MutableNode) ReplaceChild(name string, factory NodeFactory, transform NodeTransform) *MutableNode {
	return n.table.replace(n, name, factory, transform)
}

func (n *MutableNode) Accept(v vfs.Visitor) error {
	n.table.walk(n.path, n.snapshot, v)
	return nil
}

func (n *MutableNode) children() *childTable {
	return n.table
}

// markDetached flags the children as no longer reachable from the root
func (n *MutableNode) markDetached() {
	n.table.pruned.Store(true)
}

// tryPrune marks the node as removed if it has no children. A concurrent
// install either makes the check fail or observes the mark and retries.
func (n *MutableNode) tryPrune() bool {
	n.table.pruned.Store(true)
	if !n.HasChildren() {
		return true
	}
	n.table.pruned.Store(false)
	return false
}

var _ Node = (*MutableNode)(nil)
