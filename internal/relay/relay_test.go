package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bethropolis/tandem/internal/channel"
	"github.com/bethropolis/tandem/internal/docapi"
	"github.com/bethropolis/tandem/internal/relay/broker"
	"github.com/bethropolis/tandem/internal/relay/store"
	"github.com/bethropolis/tandem/internal/types"
)

type testRelay struct {
	srv   *Server
	http  *httptest.Server
	store store.Store
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := st.Init(t.Context()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	b := broker.NewLocal()
	srv := NewServer(st, b)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
		_ = b.Close()
		_ = st.Close()
	})
	return &testRelay{srv: srv, http: hs, store: st}
}

func (tr *testRelay) newDocument(t *testing.T, content string) string {
	t.Helper()
	doc, err := tr.store.CreateDocument(t.Context(), "test")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if content != "" {
		if _, err := tr.store.SaveDocument(t.Context(), doc.ID, content, "seed"); err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
	}
	return strconv.FormatInt(doc.ID, 10)
}

func (tr *testRelay) client(t *testing.T, user string) *docapi.Client {
	t.Helper()
	c, err := docapi.New(tr.http.URL, nil)
	if err != nil {
		t.Fatalf("docapi.New: %v", err)
	}
	c.SetUser(user)
	return c
}

func TestDocumentLifecycle(t *testing.T) {
	tr := newTestRelay(t)
	ctx := t.Context()
	c := tr.client(t, "alice")

	id, err := c.Create(ctx, "Notes")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc, err := c.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.ID != id || doc.Content != "" || doc.Title != "Notes" {
		t.Errorf("fetched %+v", doc)
	}

	if err := c.Save(ctx, id, "<p>v1</p>"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Save(ctx, id, "<p>v2</p>"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	versions, err := c.Versions(ctx, id)
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 || versions[0].Editor != "alice" {
		t.Fatalf("versions = %+v", versions)
	}

	old, err := c.Version(ctx, id, versions[1].ID)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if old.Content != "<p>v1</p>" {
		t.Errorf("version content = %q", old.Content)
	}

	content, err := c.Revert(ctx, id, versions[1].ID)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if content != "<p>v1</p>" {
		t.Errorf("reverted content = %q", content)
	}
	if doc, _ = c.Fetch(ctx, id); doc.Content != "<p>v1</p>" {
		t.Errorf("content after revert = %q", doc.Content)
	}

	if err := c.Delete(ctx, c.DeleteURL(id)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Fetch(ctx, id); !errors.Is(err, docapi.ErrNotFound) {
		t.Errorf("Fetch after delete = %v, want ErrNotFound", err)
	}
}

func TestListDocuments(t *testing.T) {
	tr := newTestRelay(t)
	ctx := t.Context()
	c := tr.client(t, "alice")

	empty, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty relay listed %+v", empty)
	}

	id, err := c.Create(ctx, "Notes")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := c.Save(ctx, id, "<p>x</p>"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	docs, err := c.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != id || docs[0].Title != "Notes" || docs[0].LastEditor != "alice" {
		t.Errorf("docs = %+v", docs)
	}
	if docs[0].UpdatedAt.IsZero() {
		t.Error("updated_at missing")
	}
}

func TestSaveStatusCodes(t *testing.T) {
	tr := newTestRelay(t)
	id := tr.newDocument(t, "<p>x</p>")
	saveURL := tr.http.URL + "/documents/" + id + "/save/"

	post := func(url, body, token string, cookie bool) int {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
		if cookie {
			req.AddCookie(&http.Cookie{Name: docapi.CSRFCookie, Value: "tok"})
		}
		if token != "" {
			req.Header.Set(docapi.CSRFHeader, token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST %s: %v", url, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	cases := []struct {
		name   string
		url    string
		body   string
		token  string
		cookie bool
		want   int
	}{
		{"no cookie", saveURL, `{"content":"a"}`, "tok", false, http.StatusForbidden},
		{"wrong token", saveURL, `{"content":"a"}`, "nope", true, http.StatusForbidden},
		{"bad json", saveURL, `{`, "tok", true, http.StatusBadRequest},
		{"missing content", saveURL, `{}`, "tok", true, http.StatusBadRequest},
		{"unknown document", tr.http.URL + "/documents/999/save/", `{"content":"a"}`, "tok", true, http.StatusNotFound},
		{"ok", saveURL, `{"content":"a"}`, "tok", true, http.StatusOK},
	}
	for _, c := range cases {
		if got := post(c.url, c.body, c.token, c.cookie); got != c.want {
			t.Errorf("%s: status = %d, want %d", c.name, got, c.want)
		}
	}

	resp, err := http.Get(saveURL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET save = %d, want 405", resp.StatusCode)
	}
}

func TestFetchSetsCSRFCookie(t *testing.T) {
	tr := newTestRelay(t)
	id := tr.newDocument(t, "")
	resp, err := http.Get(tr.http.URL + "/documents/" + id + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	found := false
	for _, ck := range resp.Cookies() {
		if ck.Name == docapi.CSRFCookie && ck.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected csrftoken cookie")
	}
}

func TestHealth(t *testing.T) {
	tr := newTestRelay(t)
	resp, err := http.Get(tr.http.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}
}

func dial(t *testing.T, tr *testRelay, docID, user string) *websocket.Conn {
	t.Helper()
	u, err := channel.WebsocketURL(tr.http.URL, docID, user)
	if err != nil {
		t.Fatal(err)
	}
	before := tr.srv.Hub().Count(docID)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", u, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	waitFor(t, func() bool { return tr.srv.Hub().Count(docID) > before })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func read(t *testing.T, conn *websocket.Conn) channel.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, err := channel.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func TestChannelBroadcastExcludesSender(t *testing.T) {
	tr := newTestRelay(t)
	id := tr.newDocument(t, "<p>hi</p>")

	bob := dial(t, tr, id, "bob")
	alice := dial(t, tr, id, "alice")

	if m := read(t, bob); m.Action != channel.ActionUserConnected || m.User != "alice" {
		t.Fatalf("bob got %+v, want alice connected", m)
	}

	// The relay stamps the connection's user over whatever the frame claims.
	edit := channel.EditMessage(types.EditEvent{
		Content:        "<p>bye</p>",
		User:           "mallory",
		CursorPosition: &types.Position{Path: []int{0, 0}, Offset: 3},
	})
	if err := alice.WriteJSON(edit); err != nil {
		t.Fatal(err)
	}
	m := read(t, bob)
	if m.Action != channel.ActionEdit || m.User != "alice" || m.Content != "<p>bye</p>" {
		t.Fatalf("bob got %+v", m)
	}
	if m.CursorPosition == nil || m.CursorPosition.Offset != 3 {
		t.Errorf("cursor = %v", m.CursorPosition)
	}

	_ = alice.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := alice.ReadMessage(); err == nil {
		t.Errorf("sender received its own frame: %s", data)
	}
}

func TestChannelMalformedFrame(t *testing.T) {
	tr := newTestRelay(t)
	id := tr.newDocument(t, "")
	alice := dial(t, tr, id, "alice")

	if err := alice.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if m := read(t, alice); m.Action != channel.ActionError || m.Message == "" {
		t.Errorf("got %+v, want error reply", m)
	}
}

func TestChannelDisconnectAnnounced(t *testing.T) {
	tr := newTestRelay(t)
	id := tr.newDocument(t, "")
	bob := dial(t, tr, id, "bob")
	alice := dial(t, tr, id, "alice")
	read(t, bob) // alice connected

	_ = alice.Close()
	if m := read(t, bob); m.Action != channel.ActionUserDisconnected || m.User != "alice" {
		t.Errorf("bob got %+v, want alice disconnected", m)
	}
}

func TestChannelUnknownDocument(t *testing.T) {
	tr := newTestRelay(t)
	u, _ := channel.WebsocketURL(tr.http.URL, "999", "alice")
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatal("dial should fail for a missing document")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %v", resp)
	}
}

func TestChannelClientReceivesEdits(t *testing.T) {
	tr := newTestRelay(t)
	id := tr.newDocument(t, "")

	u, _ := channel.WebsocketURL(tr.http.URL, id, "bob")
	got := make(chan channel.Message, 4)
	bob := channel.NewClient(channel.Config{URL: u}, func(m channel.Message) { got <- m })
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		_ = bob.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	waitFor(t, func() bool { return tr.srv.Hub().Count(id) == 1 })

	alice := dial(t, tr, id, "alice")
	if err := alice.WriteJSON(channel.Message{Action: channel.ActionTyping}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-got:
			if m.Action == channel.ActionTyping {
				if m.User != "alice" {
					t.Errorf("typing user = %q", m.User)
				}
				return
			}
		case <-deadline:
			t.Fatal("no typing frame")
		}
	}
}
