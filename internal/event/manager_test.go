package event

import "testing"

func TestDispatchOrderAndConsume(t *testing.T) {
	m := NewManager()
	var got []string
	m.Subscribe(TypeNotify, func(e Event) bool {
		got = append(got, "first:"+e.Data.(NotifyData).Message)
		return false
	})
	m.Subscribe(TypeNotify, func(e Event) bool {
		got = append(got, "second")
		return true
	})
	m.Subscribe(TypeNotify, func(e Event) bool {
		got = append(got, "third")
		return false
	})

	m.Dispatch(TypeNotify, NotifyData{Message: "hi"})

	if len(got) != 2 || got[0] != "first:hi" || got[1] != "second" {
		t.Errorf("handlers ran as %v", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	m := NewManager()
	calls := 0
	sub := m.Subscribe(TypeRemoteEdit, func(Event) bool { calls++; return false })
	m.Dispatch(TypeRemoteEdit, RemoteEditData{User: "bob"})
	m.Unsubscribe(sub)
	m.Dispatch(TypeRemoteEdit, RemoteEditData{User: "bob"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSelfUnsubscribeDuringDispatch(t *testing.T) {
	m := NewManager()
	calls := 0
	var sub Subscription
	sub = m.Subscribe(TypeAppReady, func(Event) bool {
		calls++
		m.Unsubscribe(sub)
		return false
	})
	m.Dispatch(TypeAppReady, AppReadyData{})
	m.Dispatch(TypeAppReady, AppReadyData{})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestTypeString(t *testing.T) {
	if TypeTypingChanged.String() != "typing-changed" || Type(99).String() != "type(99)" {
		t.Error("unexpected type names")
	}
}
