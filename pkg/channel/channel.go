package channel

import (
	"context"
	"fmt"
)

// Channel is where status cards, peak records and alerts are posted.
type Channel interface {
	// Create posts a new message and returns its id.
	Create(ctx context.Context, content string) (string, error)

	// Edit replaces the content of an existing message.
	Edit(ctx context.Context, id, content string) error

	// Get returns the current content of a message.
	Get(ctx context.Context, id string) (string, error)

	// Send posts a notification without waiting for the created message.
	Send(ctx context.Context, content string) error

	// Ref identifies the channel without exposing credentials.
	Ref() string
}

// HTTPError is returned when the channel answers with a non-success status,
// including when a message no longer exists.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// FormatError is returned when a message was created but its id could not be
// read from the response.
type FormatError struct {
	Body string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unreadable create response %q: %v", e.Body, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
