package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bethropolis/tandem/internal/docapi"
	"github.com/bethropolis/tandem/internal/logger"
	"github.com/bethropolis/tandem/internal/relay/broker"
	"github.com/bethropolis/tandem/internal/relay/store"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	maxBodySize = 16 << 20
)

// Server serves the document API and the live channel.
type Server struct {
	store  store.Store
	hub    *Hub
	router *mux.Router
}

func NewServer(st store.Store, b broker.Broker) *Server {
	s := &Server{store: st, hub: NewHub(b)}
	s.router = mux.NewRouter()
	s.RegisterRoutes(s.router)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub exposes the live channel hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close drops live connections. The store and broker belong to the caller.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth)
	r.HandleFunc("/documents/", s.handleDocuments)

	docs := r.PathPrefix("/documents/{id:[0-9]+}").Subrouter()
	docs.Use(csrfMiddleware)
	docs.HandleFunc("/", s.handleDocument)
	docs.HandleFunc("/save/", s.handleSave)
	docs.HandleFunc("/delete/", s.handleDelete)
	docs.HandleFunc("/versions/", s.handleVersions)
	docs.HandleFunc("/versions/{vid:[0-9]+}/", s.handleVersion)
	docs.HandleFunc("/versions/{vid:[0-9]+}/revert/", s.handleRevert)

	r.HandleFunc("/ws/documents/{id:[0-9]+}/", s.handleChannel)
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type documentResponse struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type summaryResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	LastEditor string    `json:"last_editor"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type versionResponse struct {
	ID        string    `json:"id"`
	Editor    string    `json:"editor"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content,omitempty"`
}

func toVersionResponse(v store.Version) versionResponse {
	return versionResponse{
		ID:        strconv.FormatInt(v.ID, 10),
		Editor:    v.Editor,
		Timestamp: v.Timestamp,
		Content:   v.Content,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WarnTagf("relay", "write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, statusResponse{Status: statusError, Message: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed. Please use "+allowed+".")
}

// writeStoreError maps store failures onto HTTP answers.
func writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found.")
		return
	}
	logger.ErrorTagf("relay", "%s: %v", what, err)
	writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
}

func pathID(r *http.Request, key string) int64 {
	// The route pattern only admits digits; overflow parses to 0, which never exists.
	id, _ := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	return id
}

func editorOf(r *http.Request) string {
	if u := r.Header.Get(docapi.UserHeader); u != "" {
		return u
	}
	return anonymousUser
}

// csrfMiddleware issues the token cookie when missing and requires the header
// to echo it on every mutating request.
func csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(docapi.CSRFCookie)
		if err != nil || cookie.Value == "" {
			cookie = &http.Cookie{
				Name:     docapi.CSRFCookie,
				Value:    uuid.NewString(),
				Path:     "/",
				SameSite: http.SameSiteLaxMode,
			}
			http.SetCookie(w, cookie)
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				writeError(w, http.StatusForbidden, "CSRF cookie not set.")
				return
			}
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if r.Header.Get(docapi.CSRFHeader) != cookie.Value {
				writeError(w, http.StatusForbidden, "CSRF token missing or incorrect.")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.hub.Count(""),
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		writeStoreError(w, err, "Documents")
		return
	}
	out := make([]summaryResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, summaryResponse{
			ID:         strconv.FormatInt(d.ID, 10),
			Title:      d.Title,
			LastEditor: d.LastEditor,
			UpdatedAt:  d.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON.")
			return
		}
	}
	doc, err := s.store.CreateDocument(r.Context(), req.Title)
	if err != nil {
		writeStoreError(w, err, "Document")
		return
	}
	logger.InfoTagf("relay", "created document %d %q", doc.ID, doc.Title)
	writeJSON(w, http.StatusCreated, map[string]string{
		"status": statusSuccess,
		"id":     strconv.FormatInt(doc.ID, 10),
	})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	doc, err := s.store.GetDocument(r.Context(), pathID(r, "id"))
	if err != nil {
		writeStoreError(w, err, "Document")
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{ID: doc.ID, Title: doc.Title, Content: doc.Content})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req struct {
		Content *string `json:"content"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON.")
		return
	}
	if req.Content == nil {
		writeError(w, http.StatusBadRequest, "Missing content.")
		return
	}
	id := pathID(r, "id")
	v, err := s.store.SaveDocument(r.Context(), id, *req.Content, editorOf(r))
	if err != nil {
		writeStoreError(w, err, "Document")
		return
	}
	logger.DebugTagf("relay", "saved document %d as version %d by %s", id, v.ID, v.Editor)
	writeJSON(w, http.StatusOK, statusResponse{Status: statusSuccess, Message: "Document saved successfully."})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	id := pathID(r, "id")
	if err := s.store.DeleteDocument(r.Context(), id); err != nil {
		writeStoreError(w, err, "Document")
		return
	}
	logger.InfoTagf("relay", "deleted document %d", id)
	writeJSON(w, http.StatusOK, statusResponse{Status: statusSuccess, Message: "Document deleted successfully."})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	versions, err := s.store.ListVersions(r.Context(), pathID(r, "id"))
	if err != nil {
		writeStoreError(w, err, "Document")
		return
	}
	out := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, toVersionResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": out})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	v, err := s.store.GetVersion(r.Context(), pathID(r, "id"), pathID(r, "vid"))
	if err != nil {
		writeStoreError(w, err, "Version")
		return
	}
	writeJSON(w, http.StatusOK, toVersionResponse(v))
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	id, vid := pathID(r, "id"), pathID(r, "vid")
	doc, err := s.store.RevertDocument(r.Context(), id, vid, editorOf(r))
	if err != nil {
		writeStoreError(w, err, "Version")
		return
	}
	logger.InfoTagf("relay", "reverted document %d to version %d", id, vid)
	writeJSON(w, http.StatusOK, map[string]string{"status": statusSuccess, "content": doc.Content})
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if _, err := s.store.GetDocument(r.Context(), id); err != nil {
		writeStoreError(w, err, "Document")
		return
	}
	s.hub.Serve(w, r, strconv.FormatInt(id, 10))
}
