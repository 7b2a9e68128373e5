package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"chatcache/pkg/logger"
)

const (
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
	retryBaseDelay = 250 * time.Millisecond
)

// errPermanent marks responses that retrying cannot fix (auth, bad request).
var errPermanent = errors.New("permanent fetch failure")

// HTTPFetcher fetches history pages over the remote JSON HTTP API. Requests
// are paced by a rate limiter and retried with capped backoff on transient
// failures.
type HTTPFetcher struct {
	base    string
	token   string
	c       *fasthttp.Client
	limiter *rate.Limiter
}

// NewHTTPFetcher returns a fetcher rooted at base, pacing requests to rps
// with the given burst.
func NewHTTPFetcher(base, token string, rps float64, burst int) *HTTPFetcher {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return &HTTPFetcher{
		base:    base,
		token:   token,
		c:       &fasthttp.Client{Name: "chatcache-history"},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

var _ Fetcher = (*HTTPFetcher)(nil)

// FetchPage requests one page of history strictly after the cursor.
func (h *HTTPFetcher) FetchPage(ctx context.Context, convID string, after int64, limit int) (Page, error) {
	var page Page
	if err := h.limiter.Wait(ctx); err != nil {
		return page, err
	}

	args := url.Values{}
	args.Set("conversation", convID)
	args.Set("limit", strconv.Itoa(limit))
	if after != NoCursor {
		args.Set("after", strconv.FormatInt(after, 10))
	}
	uri := h.base + "/v1/history?" + args.Encode()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << uint(attempt-1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return page, ctx.Err()
			}
		}
		page, lastErr = h.do(ctx, uri)
		if lastErr == nil {
			return page, nil
		}
		if errors.Is(lastErr, errPermanent) || errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return page, lastErr
		}
		logger.Warn("history_fetch_retry", "conversation", convID, "attempt", attempt+1, "error", lastErr)
	}
	return page, fmt.Errorf("%w: %s: %v", ErrTransient, convID, lastErr)
}

func (h *HTTPFetcher) do(ctx context.Context, uri string) (Page, error) {
	var page Page
	if err := ctx.Err(); err != nil {
		return page, err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+h.token)

	deadline := time.Now().Add(defaultTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := h.c.DoDeadline(req, resp, deadline); err != nil {
		return page, err
	}
	if resp.StatusCode() >= fasthttp.StatusInternalServerError {
		return page, fmt.Errorf("history service returned status %d", resp.StatusCode())
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return page, fmt.Errorf("%w: history request rejected with status %d", errPermanent, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return page, fmt.Errorf("invalid history response: %w", err)
	}
	return page, nil
}
