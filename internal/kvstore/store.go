package kvstore

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrCorrupt marks a store whose backing file is unreadable or damaged.
// Callers match it with errors.Is to trigger delete-and-recreate recovery.
var ErrCorrupt = errors.New("store corrupt or unreadable")

// Store is a named on-disk key to boolean map. Implementations serialize
// their own writes; a store file must not be opened by two instances at
// once. Every Put is self-contained, so a crash before Flush loses at most
// the most recent writes and never corrupts the file.
type Store interface {
	// Get returns the stored value and whether the key is present.
	// Absence is a normal outcome, not an error.
	Get(key string) (value bool, found bool, err error)

	// Put records a key/value pair durably enough to survive Close.
	Put(key string, value bool) error

	// Flush forces buffered writes to disk.
	Flush() error

	// Close flushes and releases the underlying file handles.
	Close() error
}

// Backend selects the on-disk format of a Store
type Backend string

const (
	BackendBolt   Backend = "bolt"
	BackendSQLite Backend = "sqlite"
)

// Open creates or reopens a store at path using the requested backend.
// Open failures on an existing file are reported as ErrCorrupt so the
// owner can recover by deleting and recreating the store.
func Open(backend Backend, path string, logger *logrus.Logger) (Store, error) {
	switch backend {
	case BackendBolt, "":
		return OpenBolt(path, logger)
	case BackendSQLite:
		return OpenSQLite(path, logger)
	default:
		return nil, fmt.Errorf("unknown kvstore backend %q", backend)
	}
}
