package models

import (
	"time"
)

// ChangeKind describes how a commit touched a file
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// ChangedFile represents a single file change within a commit.
// Test-file status is derived from the path at query time, never stored,
// so a classification-rule change cannot leave stale flags behind.
type ChangedFile struct {
	Path string     `json:"path" db:"path"`
	Kind ChangeKind `json:"kind" db:"kind"`
}

// Commit represents a git commit as produced by a CommitSource.
// Immutable after creation.
type Commit struct {
	SHA         string        `json:"sha" db:"sha"`
	AuthorEmail string        `json:"author_email" db:"author_email"`
	AuthoredAt  time.Time     `json:"authored_at" db:"authored_at"`
	Message     string        `json:"message" db:"message"`
	Files       []ChangedFile `json:"files"`
}

// Classification is the result of looking up a ticket against the issue
// tracker: whether the ticket is a release blocker and whether it marks a
// regression.
type Classification struct {
	Blocker    bool `json:"blocker"`
	Regression bool `json:"regression"`
}

// AuthorStats accumulates per-author metrics while a commit stream is
// folded. Counts only increase and the date bounds only widen; the engine
// serializes all mutation of a given author's record.
type AuthorStats struct {
	AuthorEmail   string    `json:"author_email"`
	CommitCount   int       `json:"commit_count"`
	FirstCommitAt time.Time `json:"first_commit_at"`
	LastCommitAt  time.Time `json:"last_commit_at"`

	// Ticket ID -> SHAs of the commits that referenced it.
	TicketCommits     map[string][]string `json:"ticket_commits"`
	BlockerCommits    map[string][]string `json:"blocker_commits"`
	RegressionCommits map[string][]string `json:"regression_commits"`

	// Commits that touched at least one test file (counted once per
	// commit, not once per file).
	TestTouchedCommits int `json:"test_touched_commits"`
}

// NewAuthorStats creates an empty stats record for an author
func NewAuthorStats(email string) *AuthorStats {
	return &AuthorStats{
		AuthorEmail:       email,
		TicketCommits:     make(map[string][]string),
		BlockerCommits:    make(map[string][]string),
		RegressionCommits: make(map[string][]string),
	}
}

// ActiveDays returns the inclusive span in calendar days between the
// author's first and last commit. A single-commit author has one active day.
func (s *AuthorStats) ActiveDays() int {
	if s.CommitCount == 0 {
		return 0
	}
	first := startOfDay(s.FirstCommitAt)
	last := startOfDay(s.LastCommitAt)
	return int(last.Sub(first).Hours()/24) + 1
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CommitsPerDay returns the average number of commits per active day
func (s *AuthorStats) CommitsPerDay() float64 {
	days := s.ActiveDays()
	if days == 0 {
		return 0
	}
	return float64(s.CommitCount) / float64(days)
}

// TestCoveragePercent returns the percentage of the author's commits that
// touched at least one test file
func (s *AuthorStats) TestCoveragePercent() float64 {
	if s.CommitCount == 0 {
		return 0
	}
	return 100 * float64(s.TestTouchedCommits) / float64(s.CommitCount)
}

// BlockerCount returns the number of distinct blocker tickets the author
// referenced
func (s *AuthorStats) BlockerCount() int {
	return len(s.BlockerCommits)
}

// RegressionCount returns the number of distinct regression tickets the
// author referenced
func (s *AuthorStats) RegressionCount() int {
	return len(s.RegressionCommits)
}

// AggregationResult is the outcome of folding a commit stream
type AggregationResult struct {
	RunID       string                  `json:"run_id"`
	Authors     map[string]*AuthorStats `json:"authors"`
	Skipped     int                     `json:"skipped"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt time.Time               `json:"completed_at"`
}

// Author returns the stats for one author, or nil if the author never
// appeared in the stream
func (r *AggregationResult) Author(email string) *AuthorStats {
	return r.Authors[email]
}

// TotalCommits returns the number of commits folded into the result
func (r *AggregationResult) TotalCommits() int {
	total := 0
	for _, s := range r.Authors {
		total += s.CommitCount
	}
	return total
}
