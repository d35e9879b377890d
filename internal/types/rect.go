package types

// Rect is a bounding box in surface cells, relative to the surface origin.
// Row/Col are 0-based; Width and Height are in cells.
type Rect struct {
	Row    int
	Col    int
	Width  int
	Height int
}

// Empty reports whether the rect covers no cells.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
