package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	youtrackMaxAttempts = 3
	youtrackBackoffBase = 300 * time.Millisecond
)

// YouTrackClient fetches issues from a YouTrack server's REST API
type YouTrackClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logrus.Logger
}

// NewYouTrackClient creates a YouTrack tracker client. timeout bounds each
// HTTP request; zero means 10 seconds.
func NewYouTrackClient(baseURL, token string, timeout time.Duration, logger *logrus.Logger) *YouTrackClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YouTrackClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// youtrackIssue is the wire shape of the fields we request
type youtrackIssue struct {
	Summary string `json:"summary"`
	Tags    []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

// Fetch returns the summary and tag names of the issue behind ticketID
func (c *YouTrackClient) Fetch(ctx context.Context, ticketID string) (*Issue, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: tracker base URL not configured", ErrAuth)
	}

	u := fmt.Sprintf("%s/api/issues/%s?fields=summary,tags(name)", c.baseURL, url.PathEscape(ticketID))

	var lastErr error
	for attempt := 0; attempt < youtrackMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch issue %s: %w: %v", ticketID, ErrTransient, ctx.Err())
			case <-time.After(youtrackBackoffBase * (1 << (attempt - 1))):
			}
		}

		issue, err := c.fetchOnce(ctx, u, ticketID)
		if err == nil {
			return issue, nil
		}
		// Only transient failures are worth another attempt.
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		c.logger.WithError(err).WithField("ticket", ticketID).Debug("Retrying tracker fetch")
	}
	return nil, lastErr
}

func (c *YouTrackClient) fetchOnce(ctx context.Context, u, ticketID string) (*Issue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build tracker request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch issue %s: %w: %v", ticketID, ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch issue %s: %w", ticketID, classifyStatus(resp.StatusCode))
	}

	var wire youtrackIssue
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode issue %s: %w: %v", ticketID, ErrTransient, err)
	}

	tags := make([]string, 0, len(wire.Tags))
	for _, tag := range wire.Tags {
		tags = append(tags, tag.Name)
	}

	return &Issue{
		Summary: wire.Summary,
		Tags:    tags,
	}, nil
}
