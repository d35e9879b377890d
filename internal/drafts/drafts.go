// Package drafts keeps a local copy of every document the client edits, so a
// session can start from the last known content when the server is unreachable.
package drafts

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("drafts")

// ErrNoDraft is returned when no draft exists for a document.
var ErrNoDraft = errors.New("no local draft")

// Draft is one stored document snapshot.
type Draft struct {
	DocID   string    `json:"doc_id"`
	Server  string    `json:"server"`
	Content string    `json:"content"`
	SavedAt time.Time `json:"saved_at"`
	Synced  bool      `json:"synced"` // true once the server acknowledged this content
}

// Store is a bbolt-backed draft store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the draft database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("draft database path is required")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open draft db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init draft db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(server, docID string) []byte {
	return []byte(server + "\x00" + docID)
}

// Put stores d, replacing any earlier draft of the same document.
func (s *Store) Put(d Draft) error {
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key(d.Server, d.DocID), data)
	})
	if err != nil {
		return fmt.Errorf("put draft %s: %w", d.DocID, err)
	}
	return nil
}

// Get loads the draft of docID on server.
func (s *Store) Get(server, docID string) (Draft, error) {
	var d Draft
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketName).Get(key(server, docID))
		if data == nil {
			return ErrNoDraft
		}
		return json.Unmarshal(data, &d)
	})
	if err != nil {
		return Draft{}, fmt.Errorf("get draft %s: %w", docID, err)
	}
	return d, nil
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (s *Store) Delete(server, docID string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key(server, docID))
	})
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", docID, err)
	}
	return nil
}

// List returns every stored draft.
func (s *Store) List() ([]Draft, error) {
	var out []Draft
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			var d Draft
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return out, nil
}
