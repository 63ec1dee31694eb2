package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/contriblens/contriblens/internal/models"
	"github.com/sirupsen/logrus"
)

// Field and record separators for the git log pretty format. Commit
// bodies are free text, so the format terminates every field (including
// the body) with an explicit separator instead of relying on newlines.
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// CLISource implements the engine's CommitSource by shelling out to the
// local git binary.
type CLISource struct {
	logger *logrus.Logger
}

// NewCLISource creates a git-CLI commit source
func NewCLISource(logger *logrus.Logger) *CLISource {
	return &CLISource{logger: logger}
}

// History returns the commits of repoRoot authored within [from, to].
// Zero bounds are open-ended. Failure aborts the caller's aggregation
// run; partial history would produce silently wrong analytics.
func (s *CLISource) History(ctx context.Context, repoRoot string, from, to time.Time) ([]models.Commit, error) {
	args := []string{
		"log",
		"--name-status",
		"--pretty=format:" + recordSep + "%H" + fieldSep + "%ae" + fieldSep + "%aI" + fieldSep + "%B" + fieldSep,
	}
	if !from.IsZero() {
		args = append(args, "--since="+from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		args = append(args, "--until="+to.Format(time.RFC3339))
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoRoot

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git log failed in %s: %w (stderr: %s)", repoRoot, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git log failed in %s: %w", repoRoot, err)
	}

	return s.parseLog(string(output)), nil
}

// parseLog splits raw git log output into commits. Records the format
// cannot account for (truncated output, unparsable dates) are dropped
// with a warning rather than failing the whole history.
func (s *CLISource) parseLog(output string) []models.Commit {
	var commits []models.Commit

	for _, record := range strings.Split(output, recordSep) {
		if strings.TrimSpace(record) == "" {
			continue
		}

		parts := strings.SplitN(record, fieldSep, 5)
		if len(parts) != 5 {
			s.logger.WithField("record", truncate(record, 80)).Warn("Skipping unparsable git log record")
			continue
		}
		sha, email, dateStr, message := parts[0], parts[1], parts[2], parts[3]

		authoredAt, err := time.Parse(time.RFC3339, dateStr)
		if err != nil {
			s.logger.WithError(err).WithField("sha", sha).Warn("Skipping commit with unparsable author date")
			continue
		}

		commits = append(commits, models.Commit{
			SHA:         sha,
			AuthorEmail: email,
			AuthoredAt:  authoredAt,
			Message:     strings.TrimSpace(message),
			Files:       parseNameStatus(parts[4]),
		})
	}

	return commits
}

// parseNameStatus parses the --name-status block that follows each commit
func parseNameStatus(block string) []models.ChangedFile {
	var files []models.ChangedFile

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}

		status := fields[0]
		path := fields[1]
		kind := models.ChangeModified
		switch {
		case strings.HasPrefix(status, "A"):
			kind = models.ChangeAdded
		case strings.HasPrefix(status, "D"):
			kind = models.ChangeDeleted
		case strings.HasPrefix(status, "R"), strings.HasPrefix(status, "C"):
			// Renames and copies report "old new"; the new path is the
			// one that exists in this commit.
			if len(fields) >= 3 {
				path = fields[2]
			}
		}

		files = append(files, models.ChangedFile{Path: path, Kind: kind})
	}

	return files
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
