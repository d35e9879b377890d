// Package echo keeps remote snapshots from being re-broadcast as local edits.
//
// The suppressed flag belongs to one Suppressor (one per session) and is only
// true for the duration of the synchronous surface mutation in ApplyRemote.
// Any input the surface reports during that window is dropped.
package echo

import (
	"fmt"

	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/position"
	"github.com/bethropolis/tandem/internal/surface"
	"github.com/bethropolis/tandem/internal/types"
)

// SendFunc forwards a captured local edit to the channel.
type SendFunc func(types.EditEvent)

// Suppressor sits between the surface and the channel sender.
type Suppressor struct {
	surface     *surface.Surface
	user        string
	send        SendFunc
	suppressed  bool
	transitions int
}

// New creates a suppressor for user and subscribes it to surface input.
func New(s *surface.Surface, user string, send SendFunc) *Suppressor {
	x := &Suppressor{surface: s, user: user, send: send}
	s.OnInput(x.OnLocalInput)
	return x
}

// Suppressed reports whether a remote snapshot is being applied right now.
func (x *Suppressor) Suppressed() bool {
	return x.suppressed
}

// Transitions counts how many times suppressed mode has been entered.
func (x *Suppressor) Transitions() int {
	return x.transitions
}

// ApplyRemote replaces the surface content with a remote snapshot. Content
// equal to what the surface already shows (after normalization) is skipped
// without entering suppressed mode. It reports whether the surface changed.
func (x *Suppressor) ApplyRemote(content string) (bool, error) {
	current := x.surface.Content()
	if content == current {
		return false, nil
	}
	normalized, err := surface.Normalize(content)
	if err != nil {
		return false, fmt.Errorf("normalize remote content: %w", err)
	}
	if normalized == current {
		return false, nil
	}

	caret := position.Capture(x.surface)

	x.suppressed = true
	x.transitions++
	err = x.surface.SetContent(content, surface.OriginRemote)
	x.suppressed = false
	if err != nil {
		return false, fmt.Errorf("apply remote content: %w", err)
	}
	x.restoreCaret(caret)
	return true, nil
}

// restoreCaret puts the local caret back at the same path after a snapshot
// replaced the tree. The caret stays cleared when the path no longer exists.
func (x *Suppressor) restoreCaret(caret *types.Position) {
	if caret == nil {
		return
	}
	if n := position.Resolve(x.surface, *caret); n != nil {
		x.surface.Select(n, caret.Offset)
	}
}

// OnLocalInput captures content and caret after a local mutation and forwards
// them. Changes made while suppressed, or not made by the local user, are ignored.
func (x *Suppressor) OnLocalInput(c surface.Change) {
	if x.suppressed {
		logger.DebugTagf("echo", "dropping %s input while suppressed", c.Origin)
		return
	}
	if c.Origin != surface.OriginLocal {
		return
	}
	ev := types.EditEvent{
		Content:        x.surface.Content(),
		User:           x.user,
		CursorPosition: position.Capture(x.surface),
	}
	if x.send != nil {
		x.send(ev)
	}
}
