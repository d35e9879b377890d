package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	last_editor TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	editor TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_document ON versions(document_id, id);
`

// SQLiteStore is a SQLite-backed implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps PRAGMA foreign_keys in effect for every statement.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, title string) (Document, error) {
	if title == "" {
		title = "Untitled Document"
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (title, content, created_at, updated_at)
		VALUES (?, '', ?, ?)
	`, title, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Document{}, fmt.Errorf("document id: %w", err)
	}
	return s.GetDocument(ctx, id)
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (Document, error) {
	return getDocument(ctx, s.db, id)
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, last_editor, created_at, updated_at
		FROM documents
		ORDER BY updated_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		var created, updated int64
		if err := rows.Scan(&d.ID, &d.Title, &d.LastEditor, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.CreatedAt, d.UpdatedAt = fromMillis(created), fromMillis(updated)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDocument(ctx context.Context, q queryer, id int64) (Document, error) {
	var d Document
	var created, updated int64
	err := q.QueryRowContext(ctx, `
		SELECT id, title, content, last_editor, created_at, updated_at
		FROM documents WHERE id = ?
	`, id).Scan(&d.ID, &d.Title, &d.Content, &d.LastEditor, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document %d: %w", id, err)
	}
	d.CreatedAt, d.UpdatedAt = fromMillis(created), fromMillis(updated)
	return d, nil
}

// saveTx updates the document and appends a version inside tx.
func saveTx(ctx context.Context, tx *sql.Tx, id int64, content, editor string) (Version, error) {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET content = ?, last_editor = ?, updated_at = ? WHERE id = ?
	`, content, editor, now.UnixMilli(), id)
	if err != nil {
		return Version{}, fmt.Errorf("update document: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Version{}, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return Version{}, ErrNotFound
	}
	res, err = tx.ExecContext(ctx, `
		INSERT INTO versions (document_id, content, editor, created_at) VALUES (?, ?, ?, ?)
	`, id, content, editor, now.UnixMilli())
	if err != nil {
		return Version{}, fmt.Errorf("insert version: %w", err)
	}
	vid, err := res.LastInsertId()
	if err != nil {
		return Version{}, fmt.Errorf("version id: %w", err)
	}
	return Version{ID: vid, DocumentID: id, Editor: editor, Content: content, Timestamp: fromMillis(now.UnixMilli())}, nil
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, id int64, content, editor string) (Version, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Version{}, fmt.Errorf("begin tx: %w", err)
	}
	v, err := saveTx(ctx, tx, id, content, editor)
	if err != nil {
		_ = tx.Rollback()
		return Version{}, err
	}
	if err := tx.Commit(); err != nil {
		return Version{}, fmt.Errorf("commit save: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context, id int64) ([]Version, error) {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, editor, created_at
		FROM versions
		WHERE document_id = ?
		ORDER BY id DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	versions := make([]Version, 0)
	for rows.Next() {
		var v Version
		var created int64
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.Editor, &created); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		v.Timestamp = fromMillis(created)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func (s *SQLiteStore) GetVersion(ctx context.Context, id, versionID int64) (Version, error) {
	return getVersion(ctx, s.db, id, versionID)
}

func getVersion(ctx context.Context, q queryer, id, versionID int64) (Version, error) {
	var v Version
	var created int64
	err := q.QueryRowContext(ctx, `
		SELECT id, document_id, editor, content, created_at
		FROM versions WHERE id = ? AND document_id = ?
	`, versionID, id).Scan(&v.ID, &v.DocumentID, &v.Editor, &v.Content, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, ErrNotFound
	}
	if err != nil {
		return Version{}, fmt.Errorf("query version %d: %w", versionID, err)
	}
	v.Timestamp = fromMillis(created)
	return v, nil
}

func (s *SQLiteStore) RevertDocument(ctx context.Context, id, versionID int64, editor string) (Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, fmt.Errorf("begin tx: %w", err)
	}
	v, err := getVersion(ctx, tx, id, versionID)
	if err != nil {
		_ = tx.Rollback()
		return Document{}, err
	}
	if _, err := saveTx(ctx, tx, id, v.Content, editor); err != nil {
		_ = tx.Rollback()
		return Document{}, err
	}
	d, err := getDocument(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return Document{}, fmt.Errorf("commit revert: %w", err)
	}
	return d, nil
}
