package tracker

import (
	"context"
	"errors"
	"fmt"
)

// Issue is the typed projection of a tracker issue that classification
// needs: the free-text summary and the tag/label names. Responses are
// deserialized into this struct at the client boundary; untyped maps never
// reach classification logic.
type Issue struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// Fetch error kinds. Callers branch on these to decide whether a result
// may be cached and whether a retry is worthwhile.
var (
	// ErrNotFound: the ticket does not exist (yet). Not cacheable, so a
	// later ticket creation is discovered on retry.
	ErrNotFound = errors.New("issue not found")

	// ErrAuth: credentials rejected. Must surface to the caller and must
	// never be retried automatically.
	ErrAuth = errors.New("tracker authentication failed")

	// ErrTransient: timeout or server-side failure. Safe to retry later;
	// never cached.
	ErrTransient = errors.New("transient tracker error")
)

// Client fetches issue details from a remote tracker. The only network
// dependency of the classification cache.
type Client interface {
	Fetch(ctx context.Context, ticketID string) (*Issue, error)
}

// IsNotFound reports whether err marks a missing issue
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuth reports whether err marks rejected credentials
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsTransient reports whether err is retryable
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Backend selects the tracker client implementation
type Backend string

const (
	BackendGitHub   Backend = "github"
	BackendYouTrack Backend = "youtrack"
)

// classifyStatus maps an HTTP status to the shared error taxonomy
func classifyStatus(status int) error {
	switch {
	case status == 404:
		return ErrNotFound
	case status == 401 || status == 403:
		return ErrAuth
	case status == 429 || status >= 500:
		return ErrTransient
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrTransient, status)
	}
}
