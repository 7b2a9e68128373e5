package syncer

import (
	"context"
	"errors"
	"fmt"

	"chatcache/pkg/history"
	"chatcache/pkg/logger"
	"chatcache/pkg/models"
	"chatcache/pkg/store"
	"chatcache/pkg/telemetry"
	"chatcache/pkg/unread"
	"chatcache/pkg/validation"
)

// maxPullPages bounds a single reconciliation; a server that keeps answering
// hasNext never wedges the engine.
const maxPullPages = 1000

// Pull reconciles one conversation against remote history. Pagination runs
// outside the conversation lock so a slow fetch never stalls the live event
// consumer; the merge is idempotent, so a live event landing one of the
// pulled messages first is harmless. The lock is taken only for the cached
// re-read, the unread recompute and the writes.
func (s *Service) Pull(ctx context.Context, convID string) error {
	cached, err := s.st.MessagesByConversation(convID)
	if err != nil {
		telemetry.PullsTotal.WithLabelValues("error").Inc()
		return err
	}

	after := history.NoCursor
	if ts := models.MaxTS(cached); ts > 0 {
		after = ts
	}

	pulled, err := s.paginate(ctx, convID, after)
	if err != nil {
		telemetry.PullsTotal.WithLabelValues("error").Inc()
		return err
	}

	l := s.convLock(convID)
	l.Lock()
	defer l.Unlock()

	// re-read under the lock: live events may have merged messages while
	// pagination was in flight
	cached, err = s.st.MessagesByConversation(convID)
	if err != nil {
		telemetry.PullsTotal.WithLabelValues("error").Inc()
		return err
	}
	known := make(map[string]struct{}, len(cached))
	for _, m := range cached {
		known[m.ID] = struct{}{}
	}
	fresh := make([]models.Message, 0, len(pulled))
	for _, m := range pulled {
		if _, dup := known[m.ID]; dup {
			continue
		}
		if err := validation.ValidateMessage(m); err != nil {
			logger.Warn("pulled_message_rejected", "conversation", convID, "id", m.ID, "error", err)
			continue
		}
		fresh = append(fresh, m)
	}

	if s.Active() != convID {
		cur := s.cursorFor(convID)
		n := unread.Count(cached, cur, s.user) + unread.Count(fresh, cur, s.user)
		if err := s.st.SetUnread(convID, n); err != nil && !errors.Is(err, store.ErrNotFound) {
			telemetry.PullsTotal.WithLabelValues("error").Inc()
			return err
		}
	}

	merged, err := s.st.MergeMessages(fresh)
	if err != nil {
		telemetry.PullsTotal.WithLabelValues("error").Inc()
		return err
	}
	telemetry.MessagesMerged.Add(float64(merged))
	telemetry.PullsTotal.WithLabelValues("ok").Inc()
	if merged > 0 {
		s.bumpRevision()
	}
	logger.Debug("pull_done", "conversation", convID, "fetched", len(pulled), "merged", merged)
	return nil
}

// paginate walks remote history pages starting after the given cursor. It
// terminates when hasNext goes false, and defensively when a page comes back
// empty or fails to advance the cursor despite hasNext.
func (s *Service) paginate(ctx context.Context, convID string, after int64) ([]models.Message, error) {
	var out []models.Message
	for page := 0; page < maxPullPages; page++ {
		p, err := s.fetch.FetchPage(ctx, convID, after, s.pageLimit)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		telemetry.PullPages.Inc()
		out = append(out, p.Messages...)
		if !p.HasNext {
			return out, nil
		}
		if len(p.Messages) == 0 {
			// server claims more but returned nothing to advance on
			logger.Warn("pull_page_stalled", "conversation", convID, "after", after)
			return out, nil
		}
		next := models.MaxTS(p.Messages)
		if next <= after {
			logger.Warn("pull_page_stalled", "conversation", convID, "after", after)
			return out, nil
		}
		after = next
	}
	return out, fmt.Errorf("conversation %s: pagination exceeded %d pages", convID, maxPullPages)
}

// PullAll reconciles every cached conversation. One conversation's failure
// does not stop the rest; the joined error reports all failures.
func (s *Service) PullAll(ctx context.Context) error {
	convs, err := s.st.ListConversations()
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range convs {
		if err := s.Pull(ctx, c.ID); err != nil {
			logger.Warn("pull_failed", "conversation", c.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}
