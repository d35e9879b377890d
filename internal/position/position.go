// Package position converts a live selection into a structural path and back.
// A path is the child index at every depth from the surface root down to the
// selected node. Paths go stale when the structure changes; resolution then
// lands on a different node or fails, and callers treat both as best effort.
package position

import (
	"github.com/bethropolis/tandem/internal/surface"
	"github.com/bethropolis/tandem/internal/types"
)

// indexOf returns the position of child among parent's children, or -1.
func indexOf(parent, child surface.Node) int {
	for i := 0; i < parent.ChildCount(); i++ {
		if parent.Child(i) == child {
			return i
		}
	}
	return -1
}

// PathOf walks from n up to (not including) root and returns the sibling
// indices in root-to-leaf order. ok is false when n is not below root.
func PathOf(root, n surface.Node) (path []int, ok bool) {
	if n == nil || root == nil {
		return nil, false
	}
	for cur := n; cur != root; {
		parent := cur.Parent()
		if parent == nil {
			return nil, false
		}
		idx := indexOf(parent, cur)
		if idx < 0 {
			return nil, false
		}
		path = append(path, idx)
		cur = parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if path == nil {
		path = []int{}
	}
	return path, true
}

// Capture reads the live selection of tree. It returns nil when there is no
// selection or the anchor is not inside the root.
func Capture(tree surface.Tree) *types.Position {
	anchor, offset, ok := tree.Selection()
	if !ok {
		return nil
	}
	path, ok := PathOf(tree.Root(), anchor)
	if !ok {
		return nil
	}
	return &types.Position{Path: path, Offset: offset}
}

// Resolve descends from the root of tree along pos.Path. It returns nil as
// soon as an index is out of range at any depth.
func Resolve(tree surface.Tree, pos types.Position) surface.Node {
	n := tree.Root()
	for _, idx := range pos.Path {
		if n == nil || idx < 0 || idx >= n.ChildCount() {
			return nil
		}
		n = n.Child(idx)
	}
	return n
}
