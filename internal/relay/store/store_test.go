package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Init(t.Context()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestPostgres(t *testing.T) Store {
	t.Helper()
	dsn := os.Getenv("TANDEM_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("TANDEM_TEST_POSTGRES not set")
	}
	s, err := OpenPostgres(t.Context(), dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	if err := s.Init(t.Context()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newTestSQLite(t))
}

func TestPostgresStore(t *testing.T) {
	exerciseStore(t, newTestPostgres(t))
}

func exerciseStore(t *testing.T, s Store) {
	ctx := t.Context()

	doc, err := s.CreateDocument(ctx, "")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if doc.ID == 0 || doc.Title != "Untitled Document" || doc.Content != "" {
		t.Fatalf("created = %+v", doc)
	}

	if _, err := s.SaveDocument(ctx, doc.ID, "<p>one</p>", "alice"); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	second, err := s.SaveDocument(ctx, doc.ID, "<p>two</p>", "bob")
	if err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Content != "<p>two</p>" || got.LastEditor != "bob" {
		t.Errorf("document = %+v", got)
	}

	versions, err := s.ListVersions(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	if versions[0].ID != second.ID || versions[0].Editor != "bob" || versions[1].Editor != "alice" {
		t.Errorf("versions not newest first: %+v", versions)
	}
	if versions[0].Content != "" {
		t.Error("listing should not carry content")
	}

	first, err := s.GetVersion(ctx, doc.ID, versions[1].ID)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if first.Content != "<p>one</p>" {
		t.Errorf("version content = %q", first.Content)
	}

	reverted, err := s.RevertDocument(ctx, doc.ID, first.ID, "carol")
	if err != nil {
		t.Fatalf("RevertDocument: %v", err)
	}
	if reverted.Content != "<p>one</p>" || reverted.LastEditor != "carol" {
		t.Errorf("reverted = %+v", reverted)
	}
	versions, err = s.ListVersions(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 || versions[0].Editor != "carol" {
		t.Errorf("revert should record a version: %+v", versions)
	}

	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := s.GetDocument(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDocument after delete = %v, want ErrNotFound", err)
	}
	if _, err := s.GetVersion(ctx, doc.ID, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("versions should cascade, got %v", err)
	}
}

func TestListDocumentsNewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	ctx := t.Context()

	if docs, err := s.ListDocuments(ctx); err != nil || len(docs) != 0 {
		t.Fatalf("empty store: %v, %v", docs, err)
	}
	first, err := s.CreateDocument(ctx, "Notes")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateDocument(ctx, "Plan")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.SaveDocument(ctx, first.ID, "<p>body</p>", "alice"); err != nil {
		t.Fatal(err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != first.ID || docs[1].ID != second.ID {
		t.Fatalf("docs = %+v", docs)
	}
	if docs[0].Title != "Notes" || docs[0].LastEditor != "alice" || docs[0].Content != "" {
		t.Errorf("first = %+v", docs[0])
	}
}

func TestMissingDocument(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if _, err := s.SaveDocument(ctx, 999, "x", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SaveDocument = %v", err)
	}
	if err := s.DeleteDocument(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteDocument = %v", err)
	}
	if _, err := s.ListVersions(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListVersions = %v", err)
	}
	if _, err := s.RevertDocument(ctx, 999, 1, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RevertDocument = %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := OpenPostgres(context.Background(), ""); err == nil {
		t.Error("expected error for empty dsn")
	}
}
