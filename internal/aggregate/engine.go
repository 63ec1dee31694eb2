package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/contriblens/contriblens/internal/analysis"
	"github.com/contriblens/contriblens/internal/models"
	"github.com/contriblens/contriblens/internal/tickets"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// CommitSource provides the commit history to fold. Retrieval details
// (git, API, fixtures) stay behind this interface.
type CommitSource interface {
	History(ctx context.Context, repoRoot string, from, to time.Time) ([]models.Commit, error)
}

// Classifier answers blocker/regression lookups for a ticket. Implemented
// by classify.Cache.
type Classifier interface {
	Lookup(ctx context.Context, ticketID string) (models.Classification, error)
}

// Engine folds a commit stream into per-author statistics. Per-commit work
// (extraction, classification, test-file checks) runs on a bounded worker
// pool so remote classification latency overlaps; mutation of one author's
// record is serialized by a per-author lock.
type Engine struct {
	classifier Classifier
	logger     *logrus.Logger
	workers    int
}

// NewEngine creates an aggregation engine. workers bounds the per-commit
// worker pool; zero or negative means 8.
func NewEngine(classifier Classifier, workers int, logger *logrus.Logger) *Engine {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Engine{
		classifier: classifier,
		logger:     logger,
		workers:    workers,
	}
}

// Run fetches the commit history for a repository and folds it. A history
// failure aborts the run; there is nothing meaningful to aggregate.
func (e *Engine) Run(ctx context.Context, source CommitSource, repoRoot string, from, to time.Time) (*models.AggregationResult, error) {
	commits, err := source.History(ctx, repoRoot, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch commit history: %w", err)
	}
	return e.Fold(ctx, commits)
}

// run holds the mutable state of one fold pass
type run struct {
	mu      sync.Mutex
	authors map[string]*models.AuthorStats
	locks   map[string]*sync.Mutex
	skipped int
}

// statsFor returns the stats record and mutation lock for an author,
// creating both on first sight
func (r *run) statsFor(email string) (*models.AuthorStats, *sync.Mutex) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.authors[email]
	if !ok {
		stats = models.NewAuthorStats(email)
		r.authors[email] = stats
		r.locks[email] = &sync.Mutex{}
	}
	return stats, r.locks[email]
}

func (r *run) skip() {
	r.mu.Lock()
	r.skipped++
	r.mu.Unlock()
}

// Fold aggregates a commit stream into per-author statistics. No input
// ordering is required; the fold is order-independent by construction.
// After ctx is canceled no new per-commit work is scheduled, though
// classification calls already in flight are allowed to complete and
// populate the cache.
func (e *Engine) Fold(ctx context.Context, commits []models.Commit) (*models.AggregationResult, error) {
	startedAt := time.Now()
	state := &run{
		authors: make(map[string]*models.AuthorStats),
		locks:   make(map[string]*sync.Mutex),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, commit := range commits {
		if gctx.Err() != nil {
			break
		}
		commit := commit
		g.Go(func() error {
			return e.foldCommit(gctx, state, commit)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &models.AggregationResult{
		RunID:       uuid.New().String(),
		Authors:     state.authors,
		Skipped:     state.skipped,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}, nil
}

// foldCommit processes one commit: classify its tickets and test files
// outside any lock, then apply the mutation under the author's lock.
func (e *Engine) foldCommit(ctx context.Context, state *run, commit models.Commit) error {
	if commit.AuthorEmail == "" || commit.AuthoredAt.IsZero() {
		e.logger.WithField("sha", commit.SHA).Warn("Skipping malformed commit (missing author or date)")
		state.skip()
		return nil
	}

	ticketIDs := tickets.Extract(commit.Message)
	classifications := make(map[string]models.Classification, len(ticketIDs))
	for _, ticketID := range ticketIDs {
		classification, err := e.classifier.Lookup(ctx, ticketID)
		if err != nil {
			// Only auth/configuration problems reach here; they abort
			// the run instead of silently producing wrong analytics.
			return fmt.Errorf("classify %s: %w", ticketID, err)
		}
		classifications[ticketID] = classification
	}

	touchedTest := false
	for _, file := range commit.Files {
		if analysis.IsTestFile(file.Path) {
			touchedTest = true
			break
		}
	}

	stats, lock := state.statsFor(commit.AuthorEmail)
	lock.Lock()
	defer lock.Unlock()

	stats.CommitCount++
	if stats.FirstCommitAt.IsZero() || commit.AuthoredAt.Before(stats.FirstCommitAt) {
		stats.FirstCommitAt = commit.AuthoredAt
	}
	if commit.AuthoredAt.After(stats.LastCommitAt) {
		stats.LastCommitAt = commit.AuthoredAt
	}
	for _, ticketID := range ticketIDs {
		stats.TicketCommits[ticketID] = append(stats.TicketCommits[ticketID], commit.SHA)
		if classifications[ticketID].Blocker {
			stats.BlockerCommits[ticketID] = append(stats.BlockerCommits[ticketID], commit.SHA)
		}
		if classifications[ticketID].Regression {
			stats.RegressionCommits[ticketID] = append(stats.RegressionCommits[ticketID], commit.SHA)
		}
	}
	if touchedTest {
		stats.TestTouchedCommits++
	}
	return nil
}
