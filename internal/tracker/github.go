package tracker

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// GitHubClient resolves tickets like "IDEA-123" against GitHub Issues.
// The project code selects a repository through the configured mapping and
// the numeric part is the issue number.
type GitHubClient struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	projects    map[string]string // project code -> "owner/repo"
	logger      *logrus.Logger
}

// NewGitHubClient creates a rate-limited GitHub tracker client.
// projects maps ticket project codes to "owner/repo" slugs.
func NewGitHubClient(token string, rateLimit int, projects map[string]string, logger *logrus.Logger) *GitHubClient {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if rateLimit <= 0 {
		rateLimit = 10
	}

	return &GitHubClient{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		projects:    projects,
		logger:      logger,
	}
}

// WithBaseURL points the client at a GitHub Enterprise or test endpoint
func (c *GitHubClient) WithBaseURL(baseURL string) (*GitHubClient, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse tracker base URL: %w", err)
	}
	c.client.BaseURL = parsed
	return c, nil
}

// Fetch returns the summary and label names of the issue behind ticketID
func (c *GitHubClient) Fetch(ctx context.Context, ticketID string) (*Issue, error) {
	project, number, err := splitTicket(ticketID)
	if err != nil {
		return nil, err
	}

	slug, ok := c.projects[project]
	if !ok {
		// No repository mapped for this project code; indistinguishable
		// from a ticket that does not exist.
		return nil, fmt.Errorf("%w: no repository mapped for project %s", ErrNotFound, project)
	}
	owner, name, ok := strings.Cut(slug, "/")
	if !ok {
		return nil, fmt.Errorf("invalid repository slug %q for project %s", slug, project)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransient, err)
	}

	issue, resp, err := c.client.Issues.Get(ctx, owner, name, number)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("fetch issue %s: %w", ticketID, classifyStatus(resp.StatusCode))
		}
		// No response at all: network failure or context timeout.
		return nil, fmt.Errorf("fetch issue %s: %w: %v", ticketID, ErrTransient, err)
	}

	tags := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		tags = append(tags, label.GetName())
	}

	return &Issue{
		Summary: issue.GetTitle(),
		Tags:    tags,
	}, nil
}

// splitTicket parses "PROJ-123" into its project code and issue number
func splitTicket(ticketID string) (string, int, error) {
	project, num, ok := strings.Cut(ticketID, "-")
	if !ok || project == "" {
		return "", 0, fmt.Errorf("malformed ticket ID %q", ticketID)
	}
	number, err := strconv.Atoi(num)
	if err != nil {
		return "", 0, fmt.Errorf("malformed ticket ID %q: %w", ticketID, err)
	}
	return project, number, nil
}
