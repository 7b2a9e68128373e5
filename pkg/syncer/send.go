package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chatcache/pkg/logger"
	"chatcache/pkg/models"
	"chatcache/pkg/telemetry"
	"chatcache/pkg/validation"
)

// Send writes a locally composed message into the cache immediately
// (optimistic send), hands it to the outbound path, and arms a watchdog: if
// no acknowledgment arrives inside the configured window the cached record
// is annotated as unconfirmed. The message id is returned so callers can
// track it.
func (s *Service) Send(ctx context.Context, convID, content string) (string, error) {
	m := models.Message{
		ID:           uuid.NewString(),
		Conversation: convID,
		Sender:       s.user,
		Content:      content,
		TS:           time.Now().UTC().UnixNano(),
	}
	if err := validation.ValidateMessage(m); err != nil {
		return "", err
	}

	l := s.convLock(convID)
	l.Lock()
	written, err := s.st.PutMessageIfAbsent(m)
	if err != nil {
		l.Unlock()
		return "", err
	}
	if !written {
		l.Unlock()
		return "", fmt.Errorf("message id collision: %s", m.ID)
	}
	// sending implies reading: the composer has the conversation in front
	// of them
	if err := s.st.SetUnread(convID, 0); err != nil {
		logger.Warn("unread_reset_failed", "conversation", convID, "error", err)
	}
	l.Unlock()

	telemetry.MessagesMerged.Inc()
	s.armWatchdog(m.ID)
	s.bumpRevision()

	if s.out != nil {
		if err := s.out.SendMessage(ctx, m); err != nil {
			// the watchdog will annotate it; the local copy stays
			logger.Warn("send_publish_failed", "message", m.ID, "error", err)
		}
	}
	return m.ID, nil
}

// armWatchdog registers an acknowledgment channel for a sent message and
// starts the timer that annotates the message if the ack never arrives.
func (s *Service) armWatchdog(msgID string) {
	ch := make(chan struct{})
	s.ackMu.Lock()
	s.acks[msgID] = ch
	s.ackMu.Unlock()

	go func() {
		t := time.NewTimer(s.sendWatchdog)
		defer t.Stop()
		select {
		case <-ch:
			return
		case <-t.C:
		}
		s.ackMu.Lock()
		delete(s.acks, msgID)
		s.ackMu.Unlock()

		if err := s.st.MarkSendFailed(msgID); err != nil {
			logger.Warn("send_annotate_failed", "message", msgID, "error", err)
			return
		}
		telemetry.SendsUnconfirmed.Inc()
		logger.Warn("send_unconfirmed", "message", msgID)
		s.bumpRevision()
	}()
}
