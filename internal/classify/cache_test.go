package classify

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/contriblens/contriblens/internal/kvstore"
	"github.com/contriblens/contriblens/internal/tracker"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	mu     sync.Mutex
	calls  int
	issues map[string]*tracker.Issue
	err    error
}

func (f *fakeTracker) Fetch(ctx context.Context, ticketID string) (*tracker.Issue, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	issue, ok := f.issues[ticketID]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return issue, nil
}

func (f *fakeTracker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestCache(t *testing.T, dir string, client tracker.Client) *Cache {
	t.Helper()
	cache, err := NewCache(Options{Directory: dir}, client, testLogger())
	require.NoError(t, err)
	return cache
}

func TestLookupClassifiesAndCaches(t *testing.T) {
	fake := &fakeTracker{issues: map[string]*tracker.Issue{
		"IDEA-1": {Summary: "Paste regression", Tags: []string{"blocking-release"}},
	}}
	cache := newTestCache(t, t.TempDir(), fake)
	defer cache.Close()

	got, err := cache.Lookup(context.Background(), "IDEA-1")
	require.NoError(t, err)
	assert.True(t, got.Blocker)
	assert.True(t, got.Regression)
	assert.Equal(t, 1, fake.callCount())

	// Second lookup is a session hit.
	got, err = cache.Lookup(context.Background(), "IDEA-1")
	require.NoError(t, err)
	assert.True(t, got.Blocker)
	assert.Equal(t, 1, fake.callCount(), "second lookup must not hit the tracker")
}

func TestNegativeResultsAreCached(t *testing.T) {
	fake := &fakeTracker{issues: map[string]*tracker.Issue{
		"KT-2": {Summary: "Add inspection", Tags: []string{"feature"}},
	}}
	cache := newTestCache(t, t.TempDir(), fake)
	defer cache.Close()

	got, err := cache.Lookup(context.Background(), "KT-2")
	require.NoError(t, err)
	assert.False(t, got.Blocker)
	assert.False(t, got.Regression)

	_, err = cache.Lookup(context.Background(), "KT-2")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.callCount(), "a non-blocker result must still be cached")
}

func TestPersistentTierSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeTracker{issues: map[string]*tracker.Issue{
		"DBE-3": {Summary: "Slow query console", Tags: []string{"blocking-eap"}},
	}}

	cache := newTestCache(t, dir, fake)
	_, err := cache.Lookup(context.Background(), "DBE-3")
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	// Fresh process: new session tier, same store files, no tracker needed.
	second := &fakeTracker{}
	reopened := newTestCache(t, dir, second)
	defer reopened.Close()

	got, err := reopened.Lookup(context.Background(), "DBE-3")
	require.NoError(t, err)
	assert.True(t, got.Blocker)
	assert.False(t, got.Regression)
	assert.Equal(t, 0, second.callCount(), "persistent tier must answer after restart")
}

func TestClearWipesSessionOnly(t *testing.T) {
	fake := &fakeTracker{issues: map[string]*tracker.Issue{
		"WEB-4": {Tags: []string{"blocking-release"}},
	}}
	cache := newTestCache(t, t.TempDir(), fake)
	defer cache.Close()

	_, err := cache.Lookup(context.Background(), "WEB-4")
	require.NoError(t, err)
	require.NotZero(t, cache.SessionSize())

	cache.Clear()
	assert.Zero(t, cache.SessionSize())

	// The persistent tier still answers without a remote call.
	got, err := cache.Lookup(context.Background(), "WEB-4")
	require.NoError(t, err)
	assert.True(t, got.Blocker)
	assert.Equal(t, 1, fake.callCount())
}

func TestCorruptStoreIsRecreated(t *testing.T) {
	dir := t.TempDir()
	garbage := make([]byte, 512)
	for i := range garbage {
		garbage[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, blockerStoreFile), garbage, 0644))

	fake := &fakeTracker{issues: map[string]*tracker.Issue{
		"RUBY-5": {Tags: []string{"blocking-release"}},
	}}
	cache := newTestCache(t, dir, fake)
	defer cache.Close()

	assert.False(t, cache.Degraded(), "recovery must recreate the store, not degrade")

	got, err := cache.Lookup(context.Background(), "RUBY-5")
	require.NoError(t, err)
	assert.True(t, got.Blocker)
}

func TestUnrecoverableStoreDegradesToSessionOnly(t *testing.T) {
	dir := t.TempDir()
	// A non-empty directory in place of the store file defeats both the
	// open and the delete-and-recreate path.
	storeDir := filepath.Join(dir, blockerStoreFile)
	require.NoError(t, os.MkdirAll(storeDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(storeDir, "x"), []byte("x"), 0644))

	fake := &fakeTracker{issues: map[string]*tracker.Issue{
		"GO-6": {Tags: []string{"blocking-release"}},
	}}
	cache := newTestCache(t, dir, fake)
	defer cache.Close()

	assert.True(t, cache.Degraded())

	// Lookups still work through the session tier and remote fallback.
	got, err := cache.Lookup(context.Background(), "GO-6")
	require.NoError(t, err)
	assert.True(t, got.Blocker)

	got, err = cache.Lookup(context.Background(), "GO-6")
	require.NoError(t, err)
	assert.True(t, got.Blocker)
	assert.Equal(t, 1, fake.callCount(), "session tier must still deduplicate fetches")
}

func TestNotFoundIsNotCached(t *testing.T) {
	fake := &fakeTracker{issues: map[string]*tracker.Issue{}}
	cache := newTestCache(t, t.TempDir(), fake)
	defer cache.Close()

	got, err := cache.Lookup(context.Background(), "PY-7")
	require.NoError(t, err, "a missing ticket degrades to false, it does not fail the pass")
	assert.False(t, got.Blocker)
	assert.False(t, got.Regression)

	// The ticket may be created later, so the miss must not stick.
	_, err = cache.Lookup(context.Background(), "PY-7")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount())
}

func TestTransientErrorIsNotCached(t *testing.T) {
	fake := &fakeTracker{err: tracker.ErrTransient}
	cache := newTestCache(t, t.TempDir(), fake)
	defer cache.Close()

	got, err := cache.Lookup(context.Background(), "CPP-8")
	require.NoError(t, err)
	assert.False(t, got.Blocker)

	_, err = cache.Lookup(context.Background(), "CPP-8")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount(), "transient failures must stay retryable")
}

func TestAuthErrorPropagates(t *testing.T) {
	fake := &fakeTracker{err: tracker.ErrAuth}
	cache := newTestCache(t, t.TempDir(), fake)
	defer cache.Close()

	_, err := cache.Lookup(context.Background(), "RS-9")
	require.Error(t, err)
	assert.True(t, tracker.IsAuth(err))

	// The failure must not poison the cache: a fixed tracker answers.
	fake.mu.Lock()
	fake.err = nil
	fake.issues = map[string]*tracker.Issue{"RS-9": {Tags: []string{"blocking-release"}}}
	fake.mu.Unlock()

	got, err := cache.Lookup(context.Background(), "RS-9")
	require.NoError(t, err)
	assert.True(t, got.Blocker)
}

func TestCachedTrueIsNeverDowngraded(t *testing.T) {
	dir := t.TempDir()

	// Seed the blocker store as if an earlier run saw a blocking tag, but
	// leave the regression store empty to force a refetch.
	store, err := kvstore.Open(kvstore.BackendBolt, filepath.Join(dir, blockerStoreFile), testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Put("SCL-10", true))
	require.NoError(t, store.Close())

	// The tracker now reports no tags at all.
	fake := &fakeTracker{issues: map[string]*tracker.Issue{
		"SCL-10": {Summary: "Indexing stuck"},
	}}
	cache := newTestCache(t, dir, fake)
	defer cache.Close()

	got, err := cache.Lookup(context.Background(), "SCL-10")
	require.NoError(t, err)
	assert.True(t, got.Blocker, "cached true must win over a refetched false")
	assert.Equal(t, 1, fake.callCount())

	// And the store keeps the true value.
	reopened := newTestCache(t, dir, &fakeTracker{})
	defer reopened.Close()
	got, err = reopened.Lookup(context.Background(), "SCL-10")
	require.NoError(t, err)
	assert.True(t, got.Blocker)
}

func TestConcurrentLookupsDeduplicate(t *testing.T) {
	fake := &fakeTracker{issues: map[string]*tracker.Issue{
		"PHP-11": {Tags: []string{"blocking-release"}},
	}}
	cache := newTestCache(t, t.TempDir(), fake)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.Lookup(context.Background(), "PHP-11")
			assert.NoError(t, err)
			assert.True(t, got.Blocker)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, fake.callCount(), 2, "concurrent misses should collapse to at most a couple of fetches")
}
