package hierarchy

import "github.com/brettbedarf/vfs"

// RootPath is the absolute path of the filesystem root as seen through the
// root's proxy
const RootPath = "/"

// RootNode is the top of the tree. It has no name and no snapshot; its
// children are the top-level entries (drives, or the children of "/" when
// reached through [RootNode.Proxy]).
//
// Paths split into a leading empty segment ("/etc" -> ["", "etc"]). The root
// resolves that segment to a stateless proxy, so no other node needs to know
// about it.
type RootNode struct {
	table *childTable
}

// NewRootNode creates an empty root. separator joins interior paths.
func NewRootNode(caseSensitive bool, separator string) *RootNode {
	return &RootNode{
		table: newChildTable(&treeOptions{
			foldCase:  !caseSensitive,
			separator: separator,
		}),
	}
}

func (r *RootNode) AbsolutePath() string {
	return ""
}

// ChildPath returns name unchanged: top-level entries are absolute on their own
func (r *RootNode) ChildPath(name string) string {
	return name
}

func (r *RootNode) Type() vfs.FileType {
	return vfs.Directory
}

func (r *RootNode) Snapshot() *vfs.Snapshot {
	return nil
}

func (r *RootNode) Child(name string) (Node, bool) {
	if name == "" {
		return r.Proxy(), true
	}
	if child, ok := r.table.load(name); ok {
		return child, true
	}
	return nil, false
}

func (r *RootNode) GetOrCreateChild(name string, factory NodeFactory) Node {
	if name == "" {
		return r.Proxy()
	}
	if child := r.table.getOrCreate(r, name, factory); child != nil {
		return child
	}
	return nil
}

// ReplaceChild with an empty name is a no-op returning nil: the empty segment
// names the root itself, which is never replaced.
func (r *RootNode) ReplaceChild(name string, factory NodeFactory, transform NodeTransform) *MutableNode {
	if name == "" {
		return nil
	}
	return r.table.replace(r, name, factory, transform)
}

// Accept always fails with [vfs.ErrRootNotVisitable]. Walk the whole tree
// through [RootNode.Proxy] instead.
func (r *RootNode) Accept(vfs.Visitor) error {
	return vfs.ErrRootNotVisitable
}

// Entries returns the top-level entries in name order
func (r *RootNode) Entries() []*MutableNode {
	return r.table.sorted()
}

// Proxy returns a view of the root that presents it as the filesystem root
// "/". Proxies hold no state and are built on every call.
func (r *RootNode) Proxy() Node {
	return rootProxy{root: r}
}

func (r *RootNode) children() *childTable {
	return r.table
}

// rootProxy redirects storage and traversal to the root while using root
// relative paths
type rootProxy struct {
	root *RootNode
}

func (p rootProxy) AbsolutePath() string {
	return RootPath
}

func (p rootProxy) ChildPath(name string) string {
	return RootPath + name
}

func (p rootProxy) Type() vfs.FileType {
	return p.root.Type()
}

func (p rootProxy) Snapshot() *vfs.Snapshot {
	return p.root.Snapshot()
}

func (p rootProxy) Child(name string) (Node, bool) {
	if child, ok := p.root.table.load(name); ok {
		return child, true
	}
	return nil, false
}

func (p rootProxy) GetOrCreateChild(name string, factory NodeFactory) Node {
	if child := p.root.table.getOrCreate(p, name, factory); child != nil {
		return child
	}
	return nil
}

func (p rootProxy) ReplaceChild(name string, factory NodeFactory, transform NodeTransform) *MutableNode {
	return p.root.table.replace(p, name, factory, transform)
}

func (p rootProxy) Accept(v vfs.Visitor) error {
	p.root.table.walk(RootPath, p.root.Snapshot(), v)
	return nil
}

func (p rootProxy) children() *childTable {
	return p.root.table
}

var (
	_ Node = (*RootNode)(nil)
	_ Node = rootProxy{}
)
