package classify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/contriblens/contriblens/internal/kvstore"
	"github.com/contriblens/contriblens/internal/models"
	"github.com/contriblens/contriblens/internal/tracker"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	blockerStoreFile    = "blockers.db"
	regressionStoreFile = "regressions.db"

	defaultFetchTimeout = 10 * time.Second
)

// Cache answers "is ticket T a blocker / a regression" while minimizing
// remote tracker calls. Three tiers per (ticket, dimension): an in-process
// session map, a persistent on-disk store, and the remote tracker as the
// fallback of last resort. False results are cached too; a cached true is
// never downgraded by a later write of the same underlying data.
type Cache struct {
	session *gocache.Cache
	tracker tracker.Client
	logger  *logrus.Logger
	timeout time.Duration
	group   singleflight.Group

	// Either store may be nil after failed corruption recovery, which
	// degrades that dimension to session-only operation.
	blockers    kvstore.Store
	regressions kvstore.Store
}

// Options configures a Cache
type Options struct {
	// Directory holds the two store files (blockers.db, regressions.db).
	Directory string

	// Backend selects the persistent store format. Empty means bolt.
	Backend kvstore.Backend

	// FetchTimeout bounds each remote tracker call. Zero means 10s.
	FetchTimeout time.Duration
}

// NewCache opens the persistent tiers and wires the remote fallback.
// A corrupt store file is deleted and recreated; if recreation also fails
// the cache degrades to session-only operation instead of failing.
func NewCache(opts Options, client tracker.Client, logger *logrus.Logger) (*Cache, error) {
	if opts.Directory == "" {
		return nil, fmt.Errorf("cache directory not configured")
	}
	if err := os.MkdirAll(opts.Directory, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	c := &Cache{
		session: gocache.New(gocache.NoExpiration, 0),
		tracker: client,
		logger:  logger,
		timeout: timeout,
	}
	c.blockers = c.openStore(opts.Backend, filepath.Join(opts.Directory, blockerStoreFile))
	c.regressions = c.openStore(opts.Backend, filepath.Join(opts.Directory, regressionStoreFile))

	return c, nil
}

// openStore opens one persistent tier, recovering from corruption by
// deleting and recreating the file. Returns nil when the tier is
// unavailable; the cache then runs session-only for that dimension.
func (c *Cache) openStore(backend kvstore.Backend, path string) kvstore.Store {
	store, err := kvstore.Open(backend, path, c.logger)
	if err == nil {
		return store
	}
	if !errors.Is(err, kvstore.ErrCorrupt) {
		c.logger.WithError(err).WithField("path", path).Warn("Persistent cache unavailable, using session cache only")
		return nil
	}

	c.logger.WithError(err).WithField("path", path).Warn("Corrupt cache store, recreating")
	removeStoreFiles(path)

	store, err = kvstore.Open(backend, path, c.logger)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("Cache store recreation failed, using session cache only")
		return nil
	}
	return store
}

// removeStoreFiles deletes a store file plus the sidecar files SQLite
// leaves next to it
func removeStoreFiles(path string) {
	os.Remove(path)
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")
}

// Lookup returns the classification for a ticket, consulting the session
// tier, then the persistent tier, then the remote tracker.
//
// Auth failures propagate: they are an actionable configuration problem
// and must not poison the cache. NotFound and transient failures degrade
// the ticket to an all-false classification for this pass without caching
// anything, so a later lookup can retry.
func (c *Cache) Lookup(ctx context.Context, ticketID string) (models.Classification, error) {
	blocker, blockerKnown := c.tierGet(c.blockers, "blocker", ticketID)
	regression, regressionKnown := c.tierGet(c.regressions, "regression", ticketID)
	if blockerKnown && regressionKnown {
		return models.Classification{Blocker: blocker, Regression: regression}, nil
	}

	result, err, _ := c.group.Do(ticketID, func() (interface{}, error) {
		return c.fetchAndStore(ctx, ticketID)
	})
	if err != nil {
		if tracker.IsAuth(err) {
			return models.Classification{}, err
		}
		// Known dimensions keep their cached value; only the unknown
		// ones degrade to false for this pass.
		c.logger.WithError(err).WithField("ticket", ticketID).Warn("Classification unavailable, defaulting to false for this pass")
		return models.Classification{Blocker: blocker, Regression: regression}, nil
	}

	fetched := result.(models.Classification)
	if !blockerKnown {
		blocker = fetched.Blocker
	}
	if !regressionKnown {
		regression = fetched.Regression
	}
	return models.Classification{Blocker: blocker, Regression: regression}, nil
}

// fetchAndStore resolves a ticket against the remote tracker and writes
// the result through both tiers
func (c *Cache) fetchAndStore(ctx context.Context, ticketID string) (models.Classification, error) {
	// A fetch already issued is allowed to outlive a canceled aggregation
	// run; its result still populates the cache.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	issue, err := c.tracker.Fetch(fetchCtx, ticketID)
	if err != nil {
		if tracker.IsNotFound(err) {
			// Not cached: the ticket may be created later.
			return models.Classification{}, fmt.Errorf("ticket %s: %w", ticketID, err)
		}
		return models.Classification{}, err
	}

	classification := Classify(issue)
	c.tierPut(c.blockers, "blocker", ticketID, classification.Blocker)
	c.tierPut(c.regressions, "regression", ticketID, classification.Regression)
	return classification, nil
}

// tierGet consults the session tier, then the persistent tier. A
// persistent hit is promoted into the session tier.
func (c *Cache) tierGet(store kvstore.Store, dimension, ticketID string) (bool, bool) {
	key := dimension + ":" + ticketID
	if cached, found := c.session.Get(key); found {
		return cached.(bool), true
	}
	if store == nil {
		return false, false
	}

	value, found, err := store.Get(ticketID)
	if err != nil {
		c.logger.WithError(err).WithField("ticket", ticketID).Warn("Persistent cache read failed, treating as miss")
		return false, false
	}
	if !found {
		return false, false
	}

	c.session.Set(key, value, gocache.NoExpiration)
	return value, true
}

// tierPut writes a classification dimension through both tiers. A cached
// true is never overwritten with false: both values derive from the same
// ticket content, so true is the stronger fact.
func (c *Cache) tierPut(store kvstore.Store, dimension, ticketID string, value bool) {
	key := dimension + ":" + ticketID
	if cached, found := c.session.Get(key); !found || !cached.(bool) || value {
		c.session.Set(key, value, gocache.NoExpiration)
	}

	if store == nil {
		return
	}
	if existing, found, err := store.Get(ticketID); err == nil && found && existing && !value {
		return
	}
	if err := store.Put(ticketID, value); err != nil {
		c.logger.WithError(err).WithField("ticket", ticketID).Warn("Persistent cache write failed")
	}
}

// Clear wipes the session tier. The persistent tiers stay: classification
// is a property of ticket content, not of the credentials used to fetch
// it, so credential rotation does not invalidate them.
func (c *Cache) Clear() {
	c.session.Flush()
}

// Flush forces both persistent tiers to disk
func (c *Cache) Flush() error {
	var firstErr error
	for _, store := range []kvstore.Store{c.blockers, c.regressions} {
		if store == nil {
			continue
		}
		if err := store.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes and releases both persistent tiers. The owning process
// must call it before exit; skipping it risks losing the most recent
// writes but never corrupts the stores.
func (c *Cache) Close() error {
	var firstErr error
	if c.blockers != nil {
		if err := c.blockers.Close(); err != nil {
			firstErr = err
		}
		c.blockers = nil
	}
	if c.regressions != nil {
		if err := c.regressions.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.regressions = nil
	}
	return firstErr
}

// Degraded reports whether either persistent tier is unavailable
func (c *Cache) Degraded() bool {
	return c.blockers == nil || c.regressions == nil
}

// SessionSize returns the number of entries in the session tier
func (c *Cache) SessionSize() int {
	return c.session.ItemCount()
}
