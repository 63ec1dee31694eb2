package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const boltBucket = "entries"

var (
	trueByte  = []byte{1}
	falseByte = []byte{0}
)

// BoltStore implements Store on a single-bucket bbolt database
type BoltStore struct {
	db     *bolt.DB
	path   string
	logger *logrus.Logger
}

// OpenBolt opens or creates a bbolt-backed store at path
func OpenBolt(path string, logger *logrus.Logger) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	// The timeout bounds the flock wait when another process holds the
	// file; treat that the same as an unreadable store.
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w: %v", path, ErrCorrupt, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt store %s: %w: %v", path, ErrCorrupt, err)
	}

	return &BoltStore{db: db, path: path, logger: logger}, nil
}

// Get returns the stored value for key, with found=false on absence
func (s *BoltStore) Get(key string) (bool, bool, error) {
	var value, found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		value = len(data) == 1 && data[0] == 1
		return nil
	})
	if err != nil {
		return false, false, fmt.Errorf("read bolt store: %w", err)
	}
	return value, found, nil
}

// Put records key=value in its own write transaction
func (s *BoltStore) Put(key string, value bool) error {
	data := falseByte
	if value {
		data = trueByte
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("write bolt store: %w", err)
	}
	return nil
}

// Flush fsyncs the database file
func (s *BoltStore) Flush() error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("sync bolt store: %w", err)
	}
	return nil
}

// Close flushes and releases the file handle
func (s *BoltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close bolt store: %w", err)
	}
	return nil
}
