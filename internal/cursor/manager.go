// Package cursor keeps one marker per remote collaborator and moves it to the
// caret position carried by that collaborator's edits.
package cursor

import (
	"sort"

	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/position"
	"github.com/bethropolis/tandem/internal/surface"
	"github.com/bethropolis/tandem/internal/types"
)

// Surface is what the manager needs to resolve and measure positions.
type Surface interface {
	surface.Tree
	Rect(n surface.Node, offset int) (types.Rect, bool)
}

// Marker is the overlay drawn for one collaborator.
type Marker struct {
	User  string
	Color Color
	Rect  types.Rect // one cell wide, one line tall
}

// Manager handles marker creation and placement. It is not safe for
// concurrent use; the session event loop owns it.
type Manager struct {
	surface Surface
	markers map[string]*Marker
}

// NewManager creates a marker manager for a surface.
func NewManager(s Surface) *Manager {
	return &Manager{
		surface: s,
		markers: make(map[string]*Marker),
	}
}

// Place moves the marker for user to pos. When pos does not resolve against
// the current document the previous marker geometry is kept, and a user seen
// for the first time gets no marker yet. It reports whether the marker moved.
func (m *Manager) Place(user string, pos types.Position) bool {
	node := position.Resolve(m.surface, pos)
	if node == nil {
		logger.DebugTagf("cursor", "path %v for %s does not resolve", pos.Path, user)
		return false
	}
	rect, ok := m.surface.Rect(node, pos.Offset)
	if !ok {
		return false
	}

	marker, exists := m.markers[user]
	if !exists {
		marker = &Marker{User: user, Color: ColorFor(user)}
		m.markers[user] = marker
		logger.DebugTagf("cursor", "new marker for %s (hue %d)", user, marker.Color.Hue)
	}
	marker.Rect = types.Rect{Row: rect.Row, Col: rect.Col, Width: 1, Height: 1}
	return true
}

// Marker returns a copy of the marker for user.
func (m *Manager) Marker(user string) (Marker, bool) {
	marker, ok := m.markers[user]
	if !ok {
		return Marker{}, false
	}
	return *marker, true
}

// Markers returns all markers sorted by user.
func (m *Manager) Markers() []Marker {
	out := make([]Marker, 0, len(m.markers))
	for _, marker := range m.markers {
		out = append(out, *marker)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}
