package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/contriblens/contriblens/internal/models"
)

// CSVFormatter outputs one row per author for spreadsheet import
type CSVFormatter struct{}

func (f *CSVFormatter) Format(result *models.AggregationResult, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{
		"author_email", "commit_count", "active_days", "commits_per_day",
		"test_coverage_percent", "blocker_count", "regression_count",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, stats := range sortedAuthors(result) {
		row := []string{
			stats.AuthorEmail,
			strconv.Itoa(stats.CommitCount),
			strconv.Itoa(stats.ActiveDays()),
			strconv.FormatFloat(stats.CommitsPerDay(), 'f', 2, 64),
			strconv.FormatFloat(stats.TestCoveragePercent(), 'f', 1, 64),
			strconv.Itoa(stats.BlockerCount()),
			strconv.Itoa(stats.RegressionCount()),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
