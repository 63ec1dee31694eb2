package output

import (
	"encoding/json"
	"io"

	"github.com/contriblens/contriblens/internal/models"
)

// JSONFormatter outputs the full result as indented JSON, including the
// derived metrics so consumers do not have to recompute them.
type JSONFormatter struct{}

type jsonAuthor struct {
	*models.AuthorStats
	ActiveDays          int     `json:"active_days"`
	CommitsPerDay       float64 `json:"commits_per_day"`
	TestCoveragePercent float64 `json:"test_coverage_percent"`
	BlockerCount        int     `json:"blocker_count"`
	RegressionCount     int     `json:"regression_count"`
}

type jsonReport struct {
	RunID        string       `json:"run_id"`
	TotalCommits int          `json:"total_commits"`
	Skipped      int          `json:"skipped"`
	StartedAt    string       `json:"started_at"`
	CompletedAt  string       `json:"completed_at"`
	Authors      []jsonAuthor `json:"authors"`
}

func (f *JSONFormatter) Format(result *models.AggregationResult, w io.Writer) error {
	report := jsonReport{
		RunID:        result.RunID,
		TotalCommits: result.TotalCommits(),
		Skipped:      result.Skipped,
		StartedAt:    result.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		CompletedAt:  result.CompletedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}

	for _, stats := range sortedAuthors(result) {
		report.Authors = append(report.Authors, jsonAuthor{
			AuthorStats:         stats,
			ActiveDays:          stats.ActiveDays(),
			CommitsPerDay:       stats.CommitsPerDay(),
			TestCoveragePercent: stats.TestCoveragePercent(),
			BlockerCount:        stats.BlockerCount(),
			RegressionCount:     stats.RegressionCount(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
