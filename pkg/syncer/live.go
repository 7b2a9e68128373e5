package syncer

import (
	"errors"
	"fmt"

	"chatcache/pkg/logger"
	"chatcache/pkg/push"
	"chatcache/pkg/store"
	"chatcache/pkg/telemetry"
	"chatcache/pkg/validation"
)

// Run drains the push queue until stop is closed, applying each event to the
// local cache. It is the queue's single consumer.
func (s *Service) Run(stop <-chan struct{}, q *push.Queue) {
	var lastDropped uint64
	q.RunWorker(stop, func(ev push.Event) error {
		telemetry.QueueDepth.Set(float64(q.Len()))
		if d := q.Dropped(); d > lastDropped {
			telemetry.QueueDropped.Add(float64(d - lastDropped))
			lastDropped = d
		}
		if err := s.HandleEvent(ev); err != nil {
			logger.Warn("push_event_failed", "type", string(ev.Type), "error", err)
			return err
		}
		return nil
	})
}

// HandleEvent applies one push event to the local cache.
func (s *Service) HandleEvent(ev push.Event) error {
	telemetry.PushEvents.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case push.EventMessage:
		if ev.Message == nil {
			return fmt.Errorf("message event without payload")
		}
		return s.applyMessage(ev)
	case push.EventCursor:
		if ev.Cursor == nil {
			return fmt.Errorf("cursor event without payload")
		}
		return s.applyCursor(*ev.Cursor)
	case push.EventAck:
		s.resolveAck(ev.AckID)
		return nil
	default:
		return fmt.Errorf("unhandled push event type %q", ev.Type)
	}
}

// applyMessage merges one pushed message. The insert is idempotent; unread
// only moves when the message is genuinely new, from someone else, and the
// conversation is not the one currently open.
func (s *Service) applyMessage(ev push.Event) error {
	m := *ev.Message
	if err := validation.ValidateMessage(m); err != nil {
		return fmt.Errorf("rejecting pushed message: %w", err)
	}

	l := s.convLock(m.Conversation)
	l.Lock()
	defer l.Unlock()

	written, err := s.st.PutMessageIfAbsent(m)
	if err != nil {
		return err
	}
	if !written {
		// an echo of an optimistic send still confirms it
		if m.Sender == s.user {
			s.resolveAck(m.ID)
		}
		logger.Debug("push_duplicate", "message", m.ID)
		return nil
	}
	telemetry.MessagesMerged.Inc()

	if m.Sender != s.user && s.Active() != m.Conversation {
		conv, err := s.st.GetConversation(m.Conversation)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// a message for a conversation the directory has not delivered
			// yet; the next bootstrap fills in the record
			logger.Debug("push_unknown_conversation", "conversation", m.Conversation)
		case err != nil:
			return err
		default:
			cur := s.cursorFor(m.Conversation)
			if m.TS > cur {
				if err := s.st.SetUnread(m.Conversation, conv.Unread+1); err != nil {
					return err
				}
			}
		}
	}
	if m.Sender == s.user {
		s.resolveAck(m.ID)
	}
	s.bumpRevision()
	return nil
}

// applyCursor records a remote member's read-cursor advance. Regressions are
// rejected by the map and simply dropped. The persisted snapshot is written
// under the conversation lock so it cannot race a MarkRead save.
func (s *Service) applyCursor(c push.CursorUpdate) error {
	if c.Conversation == "" || c.Member == "" {
		return fmt.Errorf("cursor event missing conversation or member")
	}
	l := s.convLock(c.Conversation)
	l.Lock()
	defer l.Unlock()
	if !s.cm.Set(c.Conversation, c.Member, c.Cursor) {
		logger.Debug("cursor_regression_dropped", "conversation", c.Conversation, "member", c.Member)
		return nil
	}
	if err := s.st.SaveCursors(c.Conversation, s.cm.Conversation(c.Conversation)); err != nil {
		return err
	}
	s.bumpRevision()
	return nil
}

func (s *Service) resolveAck(id string) {
	if id == "" {
		return
	}
	s.ackMu.Lock()
	ch, ok := s.acks[id]
	if ok {
		delete(s.acks, id)
	}
	s.ackMu.Unlock()
	if ok {
		close(ch)
	}
}
