package surface

import (
	"fmt"
	"regexp"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Local editing primitives. Each one that changes the document fires the
// input listeners with OriginLocal; pure caret moves fire nothing.

func nextNode(n, root *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for p := n; p != nil && p != root; p = p.Parent {
		if p.NextSibling != nil {
			return p.NextSibling
		}
	}
	return nil
}

func prevNode(n, root *html.Node) *html.Node {
	if n.PrevSibling != nil {
		p := n.PrevSibling
		for p.LastChild != nil {
			p = p.LastChild
		}
		return p
	}
	if n.Parent == root {
		return nil
	}
	return n.Parent
}

func (s *Surface) nextText(n *html.Node) *html.Node {
	for c := nextNode(n, s.root); c != nil; c = nextNode(c, s.root) {
		if c.Type == html.TextNode && !ignorable(c) {
			return c
		}
	}
	return nil
}

func (s *Surface) prevText(n *html.Node) *html.Node {
	for c := prevNode(n, s.root); c != nil; c = prevNode(c, s.root) {
		if c.Type == html.TextNode && !ignorable(c) {
			return c
		}
	}
	return nil
}

func (s *Surface) firstTextIn(n *html.Node) *html.Node {
	if n.Type == html.TextNode {
		return n
	}
	for c := n.FirstChild; c != nil; c = nextNode(c, n) {
		if c.Type == html.TextNode && !ignorable(c) {
			return c
		}
	}
	return nil
}

func (s *Surface) lastTextIn(n *html.Node) *html.Node {
	var last *html.Node
	for c := n.FirstChild; c != nil; c = nextNode(c, n) {
		if c.Type == html.TextNode && !ignorable(c) {
			last = c
		}
	}
	return last
}

// blockOf returns the nearest block ancestor of n below the root, or nil.
func (s *Surface) blockOf(n *html.Node) *html.Node {
	for p := n.Parent; p != nil && p != s.root; p = p.Parent {
		if isBlock(p) {
			return p
		}
	}
	return nil
}

// ensureCaret guarantees the selection anchor is a text node inside the document.
func (s *Surface) ensureCaret() {
	if s.anchor != nil && s.contains(s.anchor) && s.anchor != s.root {
		if s.anchor.Type == html.TextNode {
			s.offset = clampOffset(s.anchor, s.offset)
			return
		}
		el := s.anchor
		if child := Wrap(el).Child(s.offset); child != nil {
			if t := s.firstTextIn(HTML(child)); t != nil {
				s.anchor, s.offset = t, 0
				return
			}
		}
		if t := s.lastTextIn(el); t != nil {
			s.anchor, s.offset = t, nodeLen(t)
			return
		}
		t := &html.Node{Type: html.TextNode}
		el.AppendChild(t)
		s.anchor, s.offset = t, 0
		return
	}
	if t := s.lastTextIn(s.root); t != nil {
		s.anchor, s.offset = t, nodeLen(t)
		return
	}
	p := &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
	t := &html.Node{Type: html.TextNode}
	p.AppendChild(t)
	s.root.AppendChild(p)
	s.anchor, s.offset = t, 0
}

// InsertText inserts text at the caret and advances the caret past it.
func (s *Surface) InsertText(text string) {
	if text == "" {
		return
	}
	s.ensureCaret()
	runes := []rune(s.anchor.Data)
	ins := []rune(text)
	out := make([]rune, 0, len(runes)+len(ins))
	out = append(out, runes[:s.offset]...)
	out = append(out, ins...)
	out = append(out, runes[s.offset:]...)
	s.anchor.Data = string(out)
	s.offset += len(ins)
	s.notify(OriginLocal)
}

// DeleteBackward removes the character before the caret. At the start of a
// block the block is merged into the previous one. It reports whether
// anything changed.
func (s *Surface) DeleteBackward() bool {
	s.ensureCaret()
	if s.offset > 0 {
		runes := []rune(s.anchor.Data)
		s.anchor.Data = string(append(runes[:s.offset-1:s.offset-1], runes[s.offset:]...))
		s.offset--
		s.notify(OriginLocal)
		return true
	}
	prev := s.prevText(s.anchor)
	if prev == nil {
		return false
	}
	cur := s.blockOf(s.anchor)
	if cur == nil || cur == s.blockOf(prev) {
		runes := []rune(prev.Data)
		if len(runes) == 0 {
			prev.Parent.RemoveChild(prev)
			s.notify(OriginLocal)
			return true
		}
		prev.Data = string(runes[:len(runes)-1])
		s.notify(OriginLocal)
		return true
	}
	target := s.blockOf(prev)
	if target == nil {
		target = prev.Parent
	}
	s.mergeBlock(cur, target)
	s.notify(OriginLocal)
	return true
}

// mergeBlock moves the children of src into dst and removes src.
func (s *Surface) mergeBlock(src, dst *html.Node) {
	if isAncestor(src, dst) {
		// The previous block lives inside src: pull only the caret's inline run up into it.
		for c := s.anchor; c != nil && !isBlock(c); {
			next := c.NextSibling
			c.Parent.RemoveChild(c)
			dst.AppendChild(c)
			c = next
		}
		return
	}
	var before *html.Node
	for p := src; p != nil; p = p.Parent {
		if p.Parent == dst {
			// src is nested inside dst: keep the content where src was.
			before = p
			break
		}
	}
	for c := src.FirstChild; c != nil; {
		next := c.NextSibling
		src.RemoveChild(c)
		dst.InsertBefore(c, before)
		c = next
	}
	src.Parent.RemoveChild(src)
}

func isAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

func splitText(n *html.Node, offset int) *html.Node {
	runes := []rune(n.Data)
	right := &html.Node{Type: html.TextNode, Data: string(runes[offset:])}
	n.Data = string(runes[:offset])
	n.Parent.InsertBefore(right, n.NextSibling)
	return right
}

// SplitBlock breaks the current block at the caret, like pressing Enter.
// Text outside any block gets a line break element instead.
func (s *Surface) SplitBlock() {
	s.ensureCaret()
	block := s.blockOf(s.anchor)
	right := splitText(s.anchor, s.offset)
	if block == nil {
		br := &html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br}
		right.Parent.InsertBefore(br, right)
		s.anchor, s.offset = right, 0
		s.notify(OriginLocal)
		return
	}
	cur := right
	for p := right.Parent; p != nil; p = p.Parent {
		clone := &html.Node{
			Type:     p.Type,
			Data:     p.Data,
			DataAtom: p.DataAtom,
			Attr:     append([]html.Attribute(nil), p.Attr...),
		}
		for c := cur; c != nil; {
			next := c.NextSibling
			p.RemoveChild(c)
			clone.AppendChild(c)
			c = next
		}
		p.Parent.InsertBefore(clone, p.NextSibling)
		cur = clone
		if p == block {
			break
		}
	}
	s.anchor, s.offset = right, 0
	s.notify(OriginLocal)
}

// MoveLeft moves the caret one character back in document order.
func (s *Surface) MoveLeft() {
	s.ensureCaret()
	if s.offset > 0 {
		s.offset--
		return
	}
	prev := s.prevText(s.anchor)
	if prev == nil {
		return
	}
	off := nodeLen(prev)
	if s.blockOf(prev) == s.blockOf(s.anchor) && off > 0 {
		// Same visual line: the end of prev is where we already are.
		off--
	}
	s.anchor, s.offset = prev, off
}

// MoveRight moves the caret one character forward in document order.
func (s *Surface) MoveRight() {
	s.ensureCaret()
	if s.offset < nodeLen(s.anchor) {
		s.offset++
		return
	}
	next := s.nextText(s.anchor)
	if next == nil {
		return
	}
	off := 0
	if s.blockOf(next) == s.blockOf(s.anchor) && nodeLen(next) > 0 {
		off = 1
	}
	s.anchor, s.offset = next, off
}

func (s *Surface) moveRows(delta int) {
	s.ensureCaret()
	lay := s.Layout(s.lastWidth)
	r, ok := lay.Rect(s.anchor, s.offset)
	if !ok {
		return
	}
	if n, off, ok := lay.At(r.Row+delta, r.Col); ok {
		s.anchor, s.offset = n, off
	}
}

// MoveUp moves the caret to the same column on the previous row.
func (s *Surface) MoveUp() { s.moveRows(-1) }

// MoveDown moves the caret to the same column on the next row.
func (s *Surface) MoveDown() { s.moveRows(1) }

// MoveHome moves the caret to the start of its row.
func (s *Surface) MoveHome() {
	s.ensureCaret()
	lay := s.Layout(s.lastWidth)
	if r, ok := lay.Rect(s.anchor, s.offset); ok {
		if n, off, ok := lay.At(r.Row, 0); ok {
			s.anchor, s.offset = n, off
		}
	}
}

// MoveEnd moves the caret past the last character of its row.
func (s *Surface) MoveEnd() {
	s.ensureCaret()
	lay := s.Layout(s.lastWidth)
	if r, ok := lay.Rect(s.anchor, s.offset); ok && r.Row < len(lay.Lines) {
		if n, off, ok := lay.At(r.Row, lay.Lines[r.Row].Width()); ok {
			s.anchor, s.offset = n, off
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\''
}

// Wrap toggles an inline formatting element (b, i, u, ...) around the word at
// the caret. It reports whether the document changed.
func (s *Surface) Wrap(tag string) (bool, error) {
	a := atom.Lookup([]byte(tag))
	if a == 0 {
		return false, fmt.Errorf("unknown tag %q", tag)
	}
	s.ensureCaret()
	t := s.anchor

	if p := t.Parent; p != nil && p != s.root && p.DataAtom == a && p.FirstChild == t && p.LastChild == t {
		p.RemoveChild(t)
		p.Parent.InsertBefore(t, p)
		p.Parent.RemoveChild(p)
		s.notify(OriginLocal)
		return true, nil
	}

	runes := []rune(t.Data)
	start, end := s.offset, s.offset
	for start > 0 && isWordRune(runes[start-1]) {
		start--
	}
	for end < len(runes) && isWordRune(runes[end]) {
		end++
	}
	if start == end {
		return false, nil
	}

	caret := s.offset - start
	if end < len(runes) {
		splitText(t, end)
	}
	mid := t
	if start > 0 {
		mid = splitText(t, start)
	}
	el := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	mid.Parent.InsertBefore(el, mid)
	mid.Parent.RemoveChild(mid)
	el.AppendChild(mid)
	s.anchor, s.offset = mid, caret
	s.notify(OriginLocal)
	return true, nil
}

// ReplaceAll runs a regular-expression replacement over the serialized
// document and reloads it. It returns the number of matches.
func (s *Surface) ReplaceAll(pattern, replacement string) (int, error) {
	if pattern == "" {
		return 0, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("compile pattern: %w", err)
	}
	content := s.Content()
	matches := re.FindAllStringIndex(content, -1)
	if len(matches) == 0 {
		return 0, nil
	}
	if err := s.SetContent(re.ReplaceAllString(content, replacement), OriginLocal); err != nil {
		return 0, err
	}
	return len(matches), nil
}
