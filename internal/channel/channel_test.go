package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bethropolis/tandem/internal/types"
)

func TestDecodeAcceptsBothCursorKeys(t *testing.T) {
	camel, err := Decode([]byte(`{"action":"edit","content":"<p>x</p>","user":"bob","cursorPosition":{"path":[0,0],"offset":3}}`))
	if err != nil {
		t.Fatal(err)
	}
	snake, err := Decode([]byte(`{"action":"edit","content":"<p>x</p>","user":"bob","cursor_position":{"path":[0,0],"offset":3}}`))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(camel, snake) {
		t.Errorf("camel %+v != snake %+v", camel, snake)
	}
	if camel.CursorPosition == nil || camel.CursorPosition.Offset != 3 {
		t.Errorf("cursor = %v", camel.CursorPosition)
	}
}

func TestDecodeMissingContentIsEmpty(t *testing.T) {
	m, err := Decode([]byte(`{"action":"edit","user":"bob"}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Content != "" || m.CursorPosition != nil {
		t.Errorf("message = %+v", m)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, in := range []string{`not json`, `{"content":"x"}`} {
		if _, err := Decode([]byte(in)); err == nil {
			t.Errorf("Decode(%q) should fail", in)
		}
	}
}

func TestEncodeEdit(t *testing.T) {
	ev := types.EditEvent{Content: "<p>a</p>", User: "alice", CursorPosition: &types.Position{Path: []int{0, 0}, Offset: 1}}
	data, err := Encode(EditMessage(ev))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"action":"edit","content":"<p>a</p>","user":"alice","cursorPosition":{"path":[0,0],"offset":1}}`
	if string(data) != want {
		t.Errorf("Encode = %s\nwant     %s", data, want)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Edit(), ev) {
		t.Errorf("Edit() = %+v", back.Edit())
	}
}

func TestWebsocketURL(t *testing.T) {
	cases := []struct{ base, want string }{
		{"http://localhost:8000", "ws://localhost:8000/ws/documents/42/?user=alice"},
		{"https://example.com/app/", "wss://example.com/app/ws/documents/42/?user=alice"},
	}
	for _, c := range cases {
		got, err := WebsocketURL(c.base, "42", "alice")
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("WebsocketURL(%q) = %q, want %q", c.base, got, c.want)
		}
	}
	if _, err := WebsocketURL("ftp://x", "1", ""); err == nil {
		t.Error("ftp scheme should be rejected")
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// echoServer sends every frame back. When dropFirst is set the first
// connection is closed right after the upgrade.
func echoServer(t *testing.T, dropFirst bool) (*httptest.Server, *int32) {
	t.Helper()
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := atomic.AddInt32(&conns, 1)
		if dropFirst && n == 1 {
			return
		}
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientRoundTrip(t *testing.T) {
	srv, _ := echoServer(t, false)
	got := make(chan Message, 1)
	c := NewClient(Config{URL: wsURL(srv)}, func(m Message) { got <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.Send(Message{Action: ActionEdit, Content: "<p>hi</p>", User: "alice"})
	select {
	case m := <-got:
		if m.Content != "<p>hi</p>" || m.User != "alice" {
			t.Errorf("echoed = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClientReconnects(t *testing.T) {
	srv, conns := echoServer(t, true)
	got := make(chan Message, 1)
	c := NewClient(Config{URL: wsURL(srv), InitialBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond}, func(m Message) { got <- m })

	states := make(chan State, 64)
	c.OnState(func(s State, _ error) { states <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	connects, disconnects := 0, 0
	deadline := time.After(5 * time.Second)
	for connects < 2 {
		select {
		case s := <-states:
			switch s {
			case StateConnected:
				connects++
			case StateDisconnected:
				disconnects++
			}
		case <-deadline:
			t.Fatalf("connects = %d, want 2", connects)
		}
	}
	if disconnects == 0 {
		t.Error("expected a disconnect between the two connections")
	}

	c.Send(Message{Action: ActionEdit, Content: "after reconnect", User: "alice"})
	select {
	case m := <-got:
		if m.Content != "after reconnect" {
			t.Errorf("echoed = %+v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message never delivered after reconnect")
	}
	if n := atomic.LoadInt32(conns); n < 2 {
		t.Errorf("connections = %d, want at least 2", n)
	}
}

func TestSendDropsWhenQueueFull(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1", QueueSize: 1}, func(Message) {})
	if !c.Send(Message{Action: ActionEdit}) {
		t.Fatal("first send should queue")
	}
	if c.Send(Message{Action: ActionEdit}) {
		t.Error("second send should be dropped")
	}
}

func TestFailedWriteGoesOutBeforeNewerSnapshots(t *testing.T) {
	frames := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			m, err := Decode(data)
			if err != nil {
				continue
			}
			frames <- m.Content
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{URL: wsURL(srv)}, func(Message) {})
	c.Send(Message{Action: ActionEdit, Content: "B"})
	c.Send(Message{Action: ActionEdit, Content: "C"})
	// A was taken before B and C but its write failed.
	c.requeue(Message{Action: ActionEdit, Content: "A"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	var got []string
	for len(got) < 3 {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("frames = %v, want 3", got)
		}
	}
	if want := []string{"A", "B", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("frames = %v, want %v", got, want)
	}
	if _, ok := c.takePending(); ok {
		t.Error("pending message should be cleared once written")
	}
}
