package classify

import (
	"strings"

	"github.com/contriblens/contriblens/internal/models"
	"github.com/contriblens/contriblens/internal/tracker"
)

const (
	blockerTagPrefix = "blocking-"
	regressionMarker = "regression"
)

// IsBlocker reports whether any tag begins with "blocking-".
// Matching is case-insensitive.
func IsBlocker(issue *tracker.Issue) bool {
	for _, tag := range issue.Tags {
		if strings.HasPrefix(strings.ToLower(tag), blockerTagPrefix) {
			return true
		}
	}
	return false
}

// IsRegression reports whether the summary or any tag mentions
// "regression". Matching is case-insensitive.
func IsRegression(issue *tracker.Issue) bool {
	if strings.Contains(strings.ToLower(issue.Summary), regressionMarker) {
		return true
	}
	for _, tag := range issue.Tags {
		if strings.Contains(strings.ToLower(tag), regressionMarker) {
			return true
		}
	}
	return false
}

// Classify applies both rules to a fetched issue
func Classify(issue *tracker.Issue) models.Classification {
	return models.Classification{
		Blocker:    IsBlocker(issue),
		Regression: IsRegression(issue),
	}
}
