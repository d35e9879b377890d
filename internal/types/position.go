// internal/types/position.go
package types

import "fmt"

// Position locates a caret inside a structured document.
// Path holds the child index at each depth from the surface root down to the
// target node; Offset is the character (rune) offset within that node.
// A Path is only meaningful while the document structure is unchanged since capture.
type Position struct {
	Path   []int `json:"path"`
	Offset int   `json:"offset"`
}

// Depth is the number of levels between the root and the node the path points at.
func (p Position) Depth() int {
	return len(p.Path)
}

// Clone returns a copy whose Path does not alias p.Path.
func (p Position) Clone() Position {
	path := make([]int, len(p.Path))
	copy(path, p.Path)
	return Position{Path: path, Offset: p.Offset}
}

func (p Position) String() string {
	return fmt.Sprintf("%v@%d", p.Path, p.Offset)
}
