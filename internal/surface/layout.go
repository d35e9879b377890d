package surface

import (
	"strings"

	"github.com/bethropolis/tandem/internal/types"
	"github.com/rivo/uniseg"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr is the inline formatting in effect for a cell.
type Attr uint8

const (
	AttrBold Attr = 1 << iota
	AttrItalic
	AttrUnderline
)

// Cell is one grapheme cluster placed on a row.
type Cell struct {
	Runes  []rune
	Width  int
	Node   *html.Node // text node the cluster came from
	Offset int        // rune offset of the cluster within Node
	Attrs  Attr
}

// Line is one visual row of the surface.
type Line struct {
	Cells []Cell
}

// String returns the row text.
func (l Line) String() string {
	var sb strings.Builder
	for _, c := range l.Cells {
		sb.WriteString(string(c.Runes))
	}
	return sb.String()
}

// Width is the number of cells the row occupies.
func (l Line) Width() int {
	w := 0
	for _, c := range l.Cells {
		w += c.Width
	}
	return w
}

type point struct {
	row, col int
}

type cellRef struct {
	row, col int
	offset   int
	runes    int
	width    int
}

// Layout is the surface laid out into terminal rows.
type Layout struct {
	Lines []Line

	start   map[*html.Node]point
	end     map[*html.Node]point
	cells   map[*html.Node][]cellRef
	anchors map[int]*html.Node // empty text nodes that own a row
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Table: true, atom.Tr: true, atom.Hr: true,
}

func isBlock(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && blockAtoms[n.DataAtom]
}

func attrFor(n *html.Node) Attr {
	switch n.DataAtom {
	case atom.B, atom.Strong, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return AttrBold
	case atom.I, atom.Em:
		return AttrItalic
	case atom.U:
		return AttrUnderline
	}
	return 0
}

type layoutBuilder struct {
	lay   *Layout
	width int
	row   int
	col   int
}

func buildLayout(root *html.Node, width int) *Layout {
	b := &layoutBuilder{
		lay: &Layout{
			Lines:   []Line{{}},
			start:   make(map[*html.Node]point),
			end:     make(map[*html.Node]point),
			cells:   make(map[*html.Node][]cellRef),
			anchors: make(map[int]*html.Node),
		},
		width: width,
	}
	b.lay.start[root] = point{}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c, 0)
	}
	b.lay.end[root] = point{b.row, b.col}
	return b.lay
}

func (b *layoutBuilder) newline() {
	b.lay.Lines = append(b.lay.Lines, Line{})
	b.row++
	b.col = 0
}

func (b *layoutBuilder) walk(n *html.Node, attrs Attr) {
	switch n.Type {
	case html.TextNode:
		b.lay.start[n] = point{b.row, b.col}
		b.text(n, attrs)
		b.lay.end[n] = point{b.row, b.col}
	case html.ElementNode:
		block := isBlock(n)
		if block && b.col > 0 {
			b.newline()
		}
		b.lay.start[n] = point{b.row, b.col}
		if n.DataAtom == atom.Br {
			b.newline()
			b.lay.end[n] = point{b.row, b.col}
			return
		}
		inner := attrs | attrFor(n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, inner)
		}
		b.lay.end[n] = point{b.row, b.col}
		if block && b.col > 0 {
			b.newline()
		}
	}
}

func (b *layoutBuilder) text(n *html.Node, attrs Attr) {
	if n.Data == "" || ignorable(n) {
		if _, taken := b.lay.anchors[b.row]; !taken {
			b.lay.anchors[b.row] = n
		}
		return
	}
	offset := 0
	gr := uniseg.NewGraphemes(n.Data)
	for gr.Next() {
		runes := gr.Runes()
		w := gr.Width()
		if runes[0] == '\n' || runes[0] == '\t' || runes[0] == '\r' {
			runes = []rune{' '}
			w = 1
		}
		if w == 0 {
			w = 1
		}
		if b.width > 0 && b.col > 0 && b.col+w > b.width {
			b.newline()
		}
		line := &b.lay.Lines[b.row]
		line.Cells = append(line.Cells, Cell{Runes: runes, Width: w, Node: n, Offset: offset, Attrs: attrs})
		b.lay.cells[n] = append(b.lay.cells[n], cellRef{row: b.row, col: b.col, offset: offset, runes: len(gr.Runes()), width: w})
		b.col += w
		offset += len(gr.Runes())
	}
}

// ignorable reports whitespace-only text sitting between blocks, which a
// browser collapses away.
func ignorable(n *html.Node) bool {
	if strings.TrimSpace(n.Data) != "" {
		return false
	}
	return isBlock(n.PrevSibling) || isBlock(n.NextSibling)
}

// Rect returns the one-cell-wide, one-line-tall box at node/offset.
// The second result is false when the node is not part of this layout.
func (l *Layout) Rect(n *html.Node, offset int) (types.Rect, bool) {
	p, ok := l.pointOf(n, offset)
	if !ok {
		return types.Rect{}, false
	}
	return types.Rect{Row: p.row, Col: p.col, Width: 1, Height: 1}, true
}

func (l *Layout) pointOf(n *html.Node, offset int) (point, bool) {
	if n == nil {
		return point{}, false
	}
	if n.Type == html.TextNode {
		refs := l.cells[n]
		if len(refs) == 0 {
			p, ok := l.start[n]
			return p, ok
		}
		for _, r := range refs {
			if offset < r.offset+r.runes {
				return point{r.row, r.col}, true
			}
		}
		last := refs[len(refs)-1]
		return point{last.row, last.col + last.width}, true
	}
	if n.Type == html.ElementNode {
		count := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if count == offset {
				if p, ok := l.start[c]; ok {
					return p, true
				}
				p, ok := l.start[n]
				return p, ok
			}
			count++
		}
		if offset > 0 {
			p, ok := l.end[n]
			return p, ok
		}
		p, ok := l.start[n]
		return p, ok
	}
	return point{}, false
}

// At maps a row/column back to the text node and rune offset shown there.
// Columns past the end of a row land after its last cell.
func (l *Layout) At(row, col int) (*html.Node, int, bool) {
	if row < 0 || row >= len(l.Lines) {
		return nil, 0, false
	}
	cells := l.Lines[row].Cells
	if len(cells) == 0 {
		if n, ok := l.anchors[row]; ok {
			return n, 0, true
		}
		return nil, 0, false
	}
	x := 0
	for _, c := range cells {
		if col < x+c.Width {
			return c.Node, c.Offset, true
		}
		x += c.Width
	}
	last := cells[len(cells)-1]
	return last.Node, last.Offset + len(last.Runes), true
}

// Layout lays the surface out for a viewport width (0 disables wrapping).
// The result is cached until the next mutation or width change.
func (s *Surface) Layout(width int) *Layout {
	if s.layout == nil || s.lastWidth != width {
		s.layout = buildLayout(s.root, width)
		s.lastWidth = width
	}
	return s.layout
}

// Rect returns the geometry of a node/offset relative to the surface origin.
func (s *Surface) Rect(n Node, offset int) (types.Rect, bool) {
	return s.Layout(s.lastWidth).Rect(HTML(n), offset)
}

// CaretRect returns the geometry of the local caret.
func (s *Surface) CaretRect() (types.Rect, bool) {
	if s.anchor == nil {
		return types.Rect{}, false
	}
	return s.Layout(s.lastWidth).Rect(s.anchor, s.offset)
}
