package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/contriblens/contriblens/internal/models"
)

// TableFormatter renders a per-author table (default)
type TableFormatter struct{}

func (f *TableFormatter) Format(result *models.AggregationResult, w io.Writer) error {
	fmt.Fprintf(w, "Contribution report (run %s)\n", result.RunID)
	fmt.Fprintf(w, "Commits: %d", result.TotalCommits())
	if result.Skipped > 0 {
		fmt.Fprintf(w, " (%d skipped)", result.Skipped)
	}
	fmt.Fprintf(w, "\n\n")

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AUTHOR\tCOMMITS\tACTIVE DAYS\tCOMMITS/DAY\tTEST %\tBLOCKERS\tREGRESSIONS")

	for _, stats := range sortedAuthors(result) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.1f\t%d\t%d\n",
			stats.AuthorEmail,
			stats.CommitCount,
			stats.ActiveDays(),
			stats.CommitsPerDay(),
			stats.TestCoveragePercent(),
			stats.BlockerCount(),
			stats.RegressionCount(),
		)
	}

	return tw.Flush()
}

// sortedAuthors orders authors by commit count descending, email as
// tie-breaker, so the report is stable across runs.
func sortedAuthors(result *models.AggregationResult) []*models.AuthorStats {
	authors := make([]*models.AuthorStats, 0, len(result.Authors))
	for _, stats := range result.Authors {
		authors = append(authors, stats)
	}
	sort.Slice(authors, func(i, j int) bool {
		if authors[i].CommitCount != authors[j].CommitCount {
			return authors[i].CommitCount > authors[j].CommitCount
		}
		return authors[i].AuthorEmail < authors[j].AuthorEmail
	})
	return authors
}
