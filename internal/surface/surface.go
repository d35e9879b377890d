// Package surface holds the editable document area: a markup fragment parsed
// into a node tree, the local selection, and the listeners that observe every
// mutation together with its origin.
package surface

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node is a structural document node with indexable children.
type Node interface {
	Parent() Node
	ChildCount() int
	Child(i int) Node
}

// Tree is the minimal view of a document the position codec works against.
type Tree interface {
	Root() Node
	// Selection returns the anchor node and offset of the live selection.
	Selection() (Node, int, bool)
}

// Origin says who caused a mutation.
type Origin int

const (
	OriginLocal  Origin = iota // typed or commanded by the local user
	OriginRemote               // applied from a collaborator's edit event
	OriginLoad                 // initial document fetch or draft restore
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginLoad:
		return "load"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// Change is delivered to input listeners after every mutation.
type Change struct {
	Origin Origin
}

// InputListener observes mutations. It runs synchronously inside the mutating call.
type InputListener func(Change)

// htmlNode adapts *html.Node to Node. It is a comparable value type so two
// wrappers of the same node are == to each other.
type htmlNode struct {
	n *html.Node
}

func (h htmlNode) Parent() Node {
	if h.n == nil || h.n.Parent == nil {
		return nil
	}
	return htmlNode{n: h.n.Parent}
}

func (h htmlNode) ChildCount() int {
	if h.n == nil {
		return 0
	}
	count := 0
	for c := h.n.FirstChild; c != nil; c = c.NextSibling {
		count++
	}
	return count
}

func (h htmlNode) Child(i int) Node {
	if h.n == nil || i < 0 {
		return nil
	}
	c := h.n.FirstChild
	for ; c != nil && i > 0; i-- {
		c = c.NextSibling
	}
	if c == nil {
		return nil
	}
	return htmlNode{n: c}
}

// HTML unwraps a Node produced by a Surface. It returns nil for foreign nodes.
func HTML(n Node) *html.Node {
	if h, ok := n.(htmlNode); ok {
		return h.n
	}
	return nil
}

// Wrap exposes an *html.Node of this surface as a Node.
func Wrap(n *html.Node) Node {
	if n == nil {
		return nil
	}
	return htmlNode{n: n}
}

// Surface is the live editable content area. It is not safe for concurrent
// use; the session event loop owns it.
type Surface struct {
	root      *html.Node
	anchor    *html.Node
	offset    int
	listeners []InputListener
	lastWidth int
	layout    *Layout
}

// New creates an empty surface.
func New() *Surface {
	return &Surface{
		root: &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div},
	}
}

// Root returns the surface root. The root itself is never part of a path.
func (s *Surface) Root() Node {
	return htmlNode{n: s.root}
}

// OnInput registers a mutation listener.
func (s *Surface) OnInput(l InputListener) {
	s.listeners = append(s.listeners, l)
}

func (s *Surface) notify(origin Origin) {
	s.layout = nil
	for _, l := range s.listeners {
		l(Change{Origin: origin})
	}
}

// Content serializes the children of the root.
func (s *Surface) Content() string {
	var sb strings.Builder
	for c := s.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			// Render only fails on writer errors; strings.Builder never returns one.
			panic(fmt.Sprintf("surface: render: %v", err))
		}
	}
	return sb.String()
}

// parse converts markup into a detached list of nodes using the surface root as context.
func parse(content string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(content), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	return nodes, nil
}

// Normalize returns content the way Content would serialize it after SetContent.
func Normalize(content string) (string, error) {
	s := New()
	if err := s.replace(content); err != nil {
		return "", err
	}
	return s.Content(), nil
}

// PlainText renders markup the way Text would show it after SetContent.
func PlainText(content string) (string, error) {
	s := New()
	if err := s.replace(content); err != nil {
		return "", err
	}
	return s.Text(), nil
}

func (s *Surface) replace(content string) error {
	nodes, err := parse(content)
	if err != nil {
		return err
	}
	for c := s.root.FirstChild; c != nil; {
		next := c.NextSibling
		s.root.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		s.root.AppendChild(n)
	}
	return nil
}

// SetContent replaces the whole document and fires input listeners with origin.
// The selection is dropped because its node no longer exists.
func (s *Surface) SetContent(content string, origin Origin) error {
	if err := s.replace(content); err != nil {
		return err
	}
	s.anchor, s.offset = nil, 0
	s.notify(origin)
	return nil
}

// Selection implements Tree.
func (s *Surface) Selection() (Node, int, bool) {
	if s.anchor == nil || !s.contains(s.anchor) {
		return nil, 0, false
	}
	return htmlNode{n: s.anchor}, s.offset, true
}

// Select moves the selection to node/offset. Passing a nil node clears it.
func (s *Surface) Select(n Node, offset int) {
	hn := HTML(n)
	if hn == nil || !s.contains(hn) || hn == s.root {
		s.anchor, s.offset = nil, 0
		return
	}
	s.anchor = hn
	s.offset = clampOffset(hn, offset)
}

// ClearSelection drops the local selection.
func (s *Surface) ClearSelection() {
	s.anchor, s.offset = nil, 0
}

func (s *Surface) contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == s.root {
			return true
		}
	}
	return false
}

func clampOffset(n *html.Node, offset int) int {
	if offset < 0 {
		return 0
	}
	limit := nodeLen(n)
	if offset > limit {
		return limit
	}
	return offset
}

// nodeLen is the offset range of a node: runes for text, children for elements.
func nodeLen(n *html.Node) int {
	if n.Type == html.TextNode {
		return len([]rune(n.Data))
	}
	return htmlNode{n: n}.ChildCount()
}

// Text renders the document as plain text, one line per block.
func (s *Surface) Text() string {
	lay := buildLayout(s.root, 0)
	lines := make([]string, 0, len(lay.Lines))
	for _, l := range lay.Lines {
		lines = append(lines, l.String())
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
