// Package store persists documents and their version history for the relay.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document or version does not exist.
var ErrNotFound = errors.New("not found")

// Document is the current state of a shared document.
type Document struct {
	ID         int64
	Title      string
	Content    string
	LastEditor string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Version is one saved snapshot of a document.
type Version struct {
	ID         int64
	DocumentID int64
	Editor     string
	Content    string
	Timestamp  time.Time
}

// Store defines the persistence contract of the relay.
type Store interface {
	// Init prepares schema/connection state needed before serving requests.
	Init(ctx context.Context) error

	// Close releases resources held by the storage backend.
	Close() error

	CreateDocument(ctx context.Context, title string) (Document, error)
	GetDocument(ctx context.Context, id int64) (Document, error)

	// ListDocuments returns every document, most recently updated first,
	// without content.
	ListDocuments(ctx context.Context) ([]Document, error)

	// SaveDocument replaces the content and records a new version in one transaction.
	SaveDocument(ctx context.Context, id int64, content, editor string) (Version, error)

	// DeleteDocument removes a document together with its versions.
	DeleteDocument(ctx context.Context, id int64) error

	// ListVersions returns a document's versions newest first, without content.
	ListVersions(ctx context.Context, id int64) ([]Version, error)
	GetVersion(ctx context.Context, id, versionID int64) (Version, error)

	// RevertDocument makes a version's content current and records that as a
	// new version, returning the updated document.
	RevertDocument(ctx context.Context, id, versionID int64, editor string) (Document, error)
}
