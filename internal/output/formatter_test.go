package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/contriblens/contriblens/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *models.AggregationResult {
	alice := models.NewAuthorStats("alice@example.com")
	alice.CommitCount = 3
	alice.FirstCommitAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	alice.LastCommitAt = time.Date(2024, 3, 3, 18, 0, 0, 0, time.UTC)
	alice.TestTouchedCommits = 1
	alice.TicketCommits["ABC-1"] = []string{"sha1", "sha2"}
	alice.BlockerCommits["ABC-1"] = []string{"sha1", "sha2"}

	bob := models.NewAuthorStats("bob@example.com")
	bob.CommitCount = 1
	bob.FirstCommitAt = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	bob.LastCommitAt = bob.FirstCommitAt

	return &models.AggregationResult{
		RunID:       "run-1",
		Authors:     map[string]*models.AuthorStats{"alice@example.com": alice, "bob@example.com": bob},
		Skipped:     1,
		StartedAt:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		CompletedAt: time.Date(2024, 3, 10, 0, 0, 5, 0, time.UTC),
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{name: "table", format: FormatTable},
		{name: "default is table", format: ""},
		{name: "json", format: FormatJSON},
		{name: "csv", format: FormatCSV},
		{name: "unknown", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFormatter(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}
}

func TestTableFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(sampleResult(), &buf))

	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "Commits: 4 (1 skipped)")
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "bob@example.com")

	// alice has more commits, so she is listed first
	assert.Less(t,
		strings.Index(out, "alice@example.com"),
		strings.Index(out, "bob@example.com"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONFormatter{}).Format(sampleResult(), &buf))

	var report struct {
		RunID        string `json:"run_id"`
		TotalCommits int    `json:"total_commits"`
		Authors      []struct {
			AuthorEmail   string  `json:"author_email"`
			ActiveDays    int     `json:"active_days"`
			CommitsPerDay float64 `json:"commits_per_day"`
			BlockerCount  int     `json:"blocker_count"`
		} `json:"authors"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 4, report.TotalCommits)
	require.Len(t, report.Authors, 2)
	assert.Equal(t, "alice@example.com", report.Authors[0].AuthorEmail)
	assert.Equal(t, 3, report.Authors[0].ActiveDays)
	assert.InDelta(t, 1.0, report.Authors[0].CommitsPerDay, 0.001)
	assert.Equal(t, 1, report.Authors[0].BlockerCount)
}

func TestCSVFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&CSVFormatter{}).Format(sampleResult(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "author_email,commit_count,active_days,commits_per_day,test_coverage_percent,blocker_count,regression_count", lines[0])
	assert.Equal(t, "alice@example.com,3,3,1.00,33.3,1,0", lines[1])
	assert.Equal(t, "bob@example.com,1,1,1.00,0.0,0,0", lines[2])
}
