package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	last_editor TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
	id BIGSERIAL PRIMARY KEY,
	document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	editor TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_document ON versions(document_id, id);
`

// PostgresStore is a Postgres-backed implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Init(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) CreateDocument(ctx context.Context, title string) (Document, error) {
	if title == "" {
		title = "Untitled Document"
	}
	now := time.Now().UTC()
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (title, content, created_at, updated_at)
		VALUES ($1, '', $2, $2) RETURNING id
	`, title, now).Scan(&id)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return s.GetDocument(ctx, id)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (Document, error) {
	return pgGetDocument(ctx, s.pool, id)
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
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
		if err := rows.Scan(&d.ID, &d.Title, &d.LastEditor, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.CreatedAt, d.UpdatedAt = d.CreatedAt.UTC(), d.UpdatedAt.UTC()
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func pgGetDocument(ctx context.Context, q pgQueryer, id int64) (Document, error) {
	var d Document
	err := q.QueryRow(ctx, `
		SELECT id, title, content, last_editor, created_at, updated_at
		FROM documents WHERE id = $1
	`, id).Scan(&d.ID, &d.Title, &d.Content, &d.LastEditor, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document %d: %w", id, err)
	}
	d.CreatedAt, d.UpdatedAt = d.CreatedAt.UTC(), d.UpdatedAt.UTC()
	return d, nil
}

func pgSaveTx(ctx context.Context, tx pgx.Tx, id int64, content, editor string) (Version, error) {
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE documents SET content = $1, last_editor = $2, updated_at = $3 WHERE id = $4
	`, content, editor, now, id)
	if err != nil {
		return Version{}, fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Version{}, ErrNotFound
	}
	v := Version{DocumentID: id, Editor: editor, Content: content, Timestamp: now}
	err = tx.QueryRow(ctx, `
		INSERT INTO versions (document_id, content, editor, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, id, content, editor, now).Scan(&v.ID)
	if err != nil {
		return Version{}, fmt.Errorf("insert version: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) SaveDocument(ctx context.Context, id int64, content, editor string) (Version, error) {
	var v Version
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		v, err = pgSaveTx(ctx, tx, id, content, editor)
		return err
	})
	if err != nil {
		return Version{}, err
	}
	return v, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, id int64) ([]Version, error) {
	if _, err := s.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, editor, created_at
		FROM versions
		WHERE document_id = $1
		ORDER BY id DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	versions := make([]Version, 0)
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.Editor, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		v.Timestamp = v.Timestamp.UTC()
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, id, versionID int64) (Version, error) {
	return pgGetVersion(ctx, s.pool, id, versionID)
}

func pgGetVersion(ctx context.Context, q pgQueryer, id, versionID int64) (Version, error) {
	var v Version
	err := q.QueryRow(ctx, `
		SELECT id, document_id, editor, content, created_at
		FROM versions WHERE id = $1 AND document_id = $2
	`, versionID, id).Scan(&v.ID, &v.DocumentID, &v.Editor, &v.Content, &v.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return Version{}, ErrNotFound
	}
	if err != nil {
		return Version{}, fmt.Errorf("query version %d: %w", versionID, err)
	}
	v.Timestamp = v.Timestamp.UTC()
	return v, nil
}

func (s *PostgresStore) RevertDocument(ctx context.Context, id, versionID int64, editor string) (Document, error) {
	var d Document
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		v, err := pgGetVersion(ctx, tx, id, versionID)
		if err != nil {
			return err
		}
		if _, err := pgSaveTx(ctx, tx, id, v.Content, editor); err != nil {
			return err
		}
		d, err = pgGetDocument(ctx, tx, id)
		return err
	})
	if err != nil {
		return Document{}, err
	}
	return d, nil
}
