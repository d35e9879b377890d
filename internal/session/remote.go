package session

import (
	"github.com/bethropolis/tandem/internal/channel"
	"github.com/bethropolis/tandem/internal/event"
	"github.com/bethropolis/tandem/internal/logger"
)

// HandleMessage processes one inbound channel message. Messages are handled
// strictly in the order they are posted to the loop.
func (s *Session) HandleMessage(m channel.Message) {
	if s.closed {
		return
	}
	switch m.Action {
	case channel.ActionEdit:
		s.remoteEdit(m)
	case channel.ActionTyping:
		if m.User != "" && m.User != s.cfg.User {
			s.typing.Show(m.User)
		}
	case channel.ActionUserConnected:
		logger.InfoTagf("session", "%s joined", m.User)
		s.events.Dispatch(event.TypePeerJoined, event.PeerData{User: m.User})
		s.notify(false, "%s joined", m.User)
	case channel.ActionUserDisconnected:
		logger.InfoTagf("session", "%s left", m.User)
		s.events.Dispatch(event.TypePeerLeft, event.PeerData{User: m.User})
		s.notify(false, "%s left", m.User)
	case channel.ActionError:
		logger.WarnTagf("session", "relay reported: %s", m.Message)
		s.notify(true, "Relay error: %s", m.Message)
	default:
		logger.DebugTagf("session", "ignoring %q message", m.Action)
	}
}

func (s *Session) remoteEdit(m channel.Message) {
	if m.User == s.cfg.User {
		// Our own snapshot coming back could be older than what we have typed since.
		logger.DebugTagf("session", "ignoring own edit echo")
		return
	}
	ev := m.Edit()
	changed, err := s.echo.ApplyRemote(ev.Content)
	if err != nil {
		logger.ErrorTagf("session", "applying edit from %s: %v", ev.User, err)
		return
	}
	if changed && !s.loaded {
		s.markLoaded(false)
	}
	s.events.Dispatch(event.TypeRemoteEdit, event.RemoteEditData{User: ev.User, Changed: changed})

	if ev.User == "" {
		return
	}
	if ev.CursorPosition != nil && s.cursors.Place(ev.User, *ev.CursorPosition) {
		if marker, ok := s.cursors.Marker(ev.User); ok {
			s.events.Dispatch(event.TypeCursorPlaced, event.CursorPlacedData{User: ev.User, Rect: marker.Rect})
		}
	}
	s.typing.Show(ev.User)
}

// ConnectionChanged reports channel state to the user. The channel keeps
// reconnecting on its own; the first failure after a connection is shown as
// blocking, later retries only as status messages.
func (s *Session) ConnectionChanged(state channel.State, err error) {
	s.events.Dispatch(event.TypeConnectionChanged, event.ConnectionChangedData{State: state.String(), Err: err})
	switch state {
	case channel.StateConnected:
		logger.InfoTagf("session", "channel connected")
		s.alerted = false
		s.notify(false, "Connected")
	case channel.StateDisconnected:
		if err != nil {
			logger.WarnTagf("session", "channel closed: %v", err)
			if s.alerted {
				s.notify(false, "Still reconnecting: %v", err)
				return
			}
			s.alerted = true
			s.notify(true, "Connection failed: %v. Reconnecting; try reloading if this persists.", err)
			return
		}
		logger.InfoTagf("session", "channel closed")
	}
}
