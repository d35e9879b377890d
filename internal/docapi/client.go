// Package docapi talks to the document HTTP API: fetch, save, delete and the
// version history endpoints.
package docapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	// CSRFCookie is the cookie the server stores its anti-forgery token in.
	CSRFCookie = "csrftoken"
	// CSRFHeader carries the token back on mutating requests.
	CSRFHeader = "X-CSRFToken"
	// UserHeader names the editor recorded in the version history.
	UserHeader = "X-Tandem-User"

	statusSuccess = "success"
)

// ErrNotFound is matched by errors.Is for 404 responses.
var ErrNotFound = errors.New("document not found")

// APIError is a non-success answer from the server.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s)", e.StatusCode, e.Status)
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Document is the body of a fetch.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// UnmarshalJSON accepts the id as either a JSON string or a number.
func (d *Document) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID      json.RawMessage `json:"id"`
		Title   string          `json:"title"`
		Content string          `json:"content"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Title, d.Content = aux.Title, aux.Content
	d.ID = ""
	if len(aux.ID) > 0 && string(aux.ID) != "null" {
		if aux.ID[0] == '"' {
			if err := json.Unmarshal(aux.ID, &d.ID); err != nil {
				return err
			}
		} else {
			d.ID = string(aux.ID)
		}
	}
	return nil
}

// Version is one entry of a document's history.
type Version struct {
	ID        string    `json:"id"`
	Editor    string    `json:"editor"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content,omitempty"`
}

// Summary is one entry of the document list.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	LastEditor string    `json:"last_editor"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Client is a document API client bound to one server.
type Client struct {
	base *url.URL
	http *http.Client
	user string
}

// New creates a client for the server at base. A nil httpClient gets a
// default client with a cookie jar, which Save needs for the CSRF token.
func New(base string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	return &Client{base: u, http: httpClient}, nil
}

// SetUser sets the name sent with every request. Call before first use.
func (c *Client) SetUser(user string) {
	c.user = user
}

// BaseURL returns the server address the client was created with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) url(parts ...string) string {
	u := *c.base
	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(u.Path, "/"))
	for _, p := range parts {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(p))
	}
	sb.WriteByte('/')
	u.Path = sb.String()
	return u.String()
}

// DocumentURL is the resource address of a document.
func (c *Client) DocumentURL(docID string) string {
	return c.url("documents", docID)
}

// DeleteURL is the delete action address of a document.
func (c *Client) DeleteURL(docID string) string {
	return c.url("documents", docID, "delete")
}

// csrfToken reads the token cookie for the server from the jar.
func (c *Client) csrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == CSRFCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(UserHeader, c.user)
	}
	if method != http.MethodGet {
		if token := c.csrfToken(); token != "" {
			req.Header.Set(CSRFHeader, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
		var sr statusResponse
		if json.Unmarshal(data, &sr) == nil {
			apiErr.Message = sr.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(sr statusResponse, code int) error {
	if sr.Status != statusSuccess {
		return &APIError{StatusCode: code, Status: sr.Status, Message: sr.Message}
	}
	return nil
}

// Fetch loads a document. A body without content yields an empty document.
func (c *Client) Fetch(ctx context.Context, docID string) (Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, c.DocumentURL(docID), nil, &doc); err != nil {
		return Document{}, fmt.Errorf("fetch document %s: %w", docID, err)
	}
	if doc.ID == "" {
		doc.ID = docID
	}
	return doc, nil
}

// Save stores content as the new document state.
func (c *Client) Save(ctx context.Context, docID, content string) error {
	var sr statusResponse
	if err := c.do(ctx, http.MethodPost, c.url("documents", docID, "save"), map[string]string{"content": content}, &sr); err != nil {
		return fmt.Errorf("save document %s: %w", docID, err)
	}
	if err := checkStatus(sr, http.StatusOK); err != nil {
		return fmt.Errorf("save document %s: %w", docID, err)
	}
	return nil
}

// Delete posts to a delete action URL and requires a success status.
func (c *Client) Delete(ctx context.Context, deleteURL string) error {
	var sr statusResponse
	if err := c.do(ctx, http.MethodPost, deleteURL, nil, &sr); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := checkStatus(sr, http.StatusOK); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Create makes a new empty document and returns its id.
func (c *Client) Create(ctx context.Context, title string) (string, error) {
	var out struct {
		statusResponse
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.url("documents"), map[string]string{"title": title}, &out); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	if err := checkStatus(out.statusResponse, http.StatusOK); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return out.ID, nil
}

// List returns the documents on the server, most recently updated first.
func (c *Client) List(ctx context.Context) ([]Summary, error) {
	var out struct {
		Documents []Summary `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, c.url("documents"), nil, &out); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out.Documents, nil
}

// Versions lists the saved versions of a document, newest first.
func (c *Client) Versions(ctx context.Context, docID string) ([]Version, error) {
	var out struct {
		Versions []Version `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, c.url("documents", docID, "versions"), nil, &out); err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", docID, err)
	}
	return out.Versions, nil
}

// Version loads one saved version including its content.
func (c *Client) Version(ctx context.Context, docID, versionID string) (Version, error) {
	var v Version
	if err := c.do(ctx, http.MethodGet, c.url("documents", docID, "versions", versionID), nil, &v); err != nil {
		return Version{}, fmt.Errorf("get version %s of %s: %w", versionID, docID, err)
	}
	return v, nil
}

// Revert makes a saved version the current content and returns that content.
func (c *Client) Revert(ctx context.Context, docID, versionID string) (string, error) {
	var out struct {
		statusResponse
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodPost, c.url("documents", docID, "versions", versionID, "revert"), nil, &out); err != nil {
		return "", fmt.Errorf("revert %s to %s: %w", docID, versionID, err)
	}
	if err := checkStatus(out.statusResponse, http.StatusOK); err != nil {
		return "", fmt.Errorf("revert %s to %s: %w", docID, versionID, err)
	}
	return out.Content, nil
}
