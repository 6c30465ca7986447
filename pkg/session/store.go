package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/markus-lassfolk/wifisurvey/pkg/logx"
)

var sessionsBucket = []byte("sessions")

// Store archives named session documents in a bbolt database
type Store struct {
	db     *bolt.DB
	logger *logx.Logger
}

// OpenStore opens (or creates) the session database
func OpenStore(path string, logger *logx.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session db directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session db %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions bucket: %w", err)
	}

	logger.Info("Session store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives a document under a name, replacing any previous session
// with the same name
func (s *Store) Save(name string, doc *Document) error {
	if name == "" {
		return fmt.Errorf("session name must not be empty")
	}

	data, err := doc.Encode()
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save session %q: %w", name, err)
	}

	s.logger.Info("Session saved",
		"name", name,
		"records", len(doc.Records),
		"bytes", len(data))
	return nil
}

// Load retrieves a named session document
func (s *Store) Load(name string) (*Document, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionsBucket).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("session %q not found", name)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// List returns all archived session names in key order
func (s *Store) List() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return names, nil
}

// Delete removes a named session; deleting a missing session is not an
// error
func (s *Store) Delete(name string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %q: %w", name, err)
	}
	return nil
}
