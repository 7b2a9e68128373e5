// Package history fetches message history from the remote service in
// cursor-paginated pages.
package history

import (
	"context"
	"errors"

	"chatcache/pkg/models"
)

// NoCursor requests a page starting from the earliest history.
const NoCursor int64 = -1 << 62

// ErrTransient wraps network failures that are safe to retry: the fetch is
// idempotent, so callers may re-run the whole operation.
var ErrTransient = errors.New("transient fetch failure")

// Page is one slice of a conversation's history. Messages are ordered
// ascending by create time by the remote service; HasNext signals that more
// history exists after the last message.
type Page struct {
	Messages []models.Message `json:"messages"`
	HasNext  bool             `json:"hasNext"`
}

// Fetcher is the history fetch contract used by the pull engine.
type Fetcher interface {
	// FetchPage returns up to limit messages with create time strictly
	// after the cursor. Pass NoCursor to start from the beginning.
	FetchPage(ctx context.Context, convID string, after int64, limit int) (Page, error)
}
