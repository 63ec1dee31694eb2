package tickets

import (
	"regexp"
	"strings"
)

// ticketPattern matches issue-tracker references like IDEA-123: one or more
// uppercase letters, a hyphen, one or more digits, bounded by word edges.
// Matching is case-sensitive; "abc-12" is not a reference.
var ticketPattern = regexp.MustCompile(`\b[A-Z]+-[0-9]+\b`)

// excludedProjects are project codes that look like ticket references but
// denote merge-request or code-review IDs rather than tracker issues.
var excludedProjects = map[string]bool{
	"MR": true,
	"CR": true,
	"EA": true,
}

// Extract returns the set of ticket references found in a commit message.
// The result is deduplicated and order-irrelevant; an empty slice is a
// common, valid outcome.
func Extract(message string) []string {
	matches := ticketPattern.FindAllString(message, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var refs []string
	for _, m := range matches {
		project := m[:strings.IndexByte(m, '-')]
		if excludedProjects[project] {
			continue
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		refs = append(refs, m)
	}
	return refs
}
