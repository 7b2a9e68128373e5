package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"chatcache/pkg/logger"
	"chatcache/pkg/models"
)

// ErrNotFound is returned by point lookups when no record exists.
var ErrNotFound = errors.New("record not found")

// Store is the local cache: durable key-value tables for messages,
// conversations and persisted read cursors. Every exported operation is
// individually atomic; composite read-modify-write sequences must be
// serialized by the caller.
//
// Key layout:
//
//	conv:<convID>:meta          conversation record (JSON)
//	conv:<convID>:msg:<msgID>   message record (JSON)
//	msgidx:<msgID>              conversation id owning the message
//	cursor:<convID>             member -> last-read timestamp map (JSON)
type Store struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open pebble at %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("pebble_closed", "path", s.path)
	return err
}

// Ready reports whether the store is opened and usable.
func (s *Store) Ready() bool { return s != nil && s.db != nil }

func msgKey(convID, msgID string) []byte {
	return []byte("conv:" + convID + ":msg:" + msgID)
}

func msgIdxKey(msgID string) []byte { return []byte("msgidx:" + msgID) }

func convMetaKey(convID string) []byte { return []byte("conv:" + convID + ":meta") }

func cursorKey(convID string) []byte { return []byte("cursor:" + convID) }

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// PutMessageIfAbsent inserts the message only when no record with its id
// exists yet. It reports whether the message was written, so merge paths can
// count genuinely new messages. Re-merging an already stored id is a no-op;
// the first written copy wins.
func (s *Store) PutMessageIfAbsent(m models.Message) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("store not opened")
	}
	_, closer, err := s.db.Get(msgIdxKey(m.ID))
	if err == nil {
		_ = closer.Close()
		return false, nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return false, fmt.Errorf("message index lookup failed: %w", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("failed to marshal message: %w", err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Set(msgKey(m.Conversation, m.ID), data, nil)
	_ = b.Set(msgIdxKey(m.ID), []byte(m.Conversation), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("save_message_failed", "conversation", m.Conversation, "id", m.ID, "error", err)
		return false, fmt.Errorf("save message failed: %w", err)
	}
	return true, nil
}

// MergeMessages merges a batch of messages, ignoring ids that are already
// stored. Returns the number of messages actually written. The batch commits
// atomically; re-running the same merge is harmless.
func (s *Store) MergeMessages(msgs []models.Message) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("store not opened")
	}
	b := s.db.NewBatch()
	defer b.Close()
	written := 0
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		_, closer, err := s.db.Get(msgIdxKey(m.ID))
		if err == nil {
			_ = closer.Close()
			continue
		}
		if !errors.Is(err, pebble.ErrNotFound) {
			return 0, fmt.Errorf("message index lookup failed: %w", err)
		}
		data, err := json.Marshal(m)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal message: %w", err)
		}
		_ = b.Set(msgKey(m.Conversation, m.ID), data, nil)
		_ = b.Set(msgIdxKey(m.ID), []byte(m.Conversation), nil)
		written++
	}
	if written == 0 {
		return 0, nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("merge batch commit failed: %w", err)
	}
	return written, nil
}

// MessagesByConversation returns all cached messages for a conversation,
// unordered; callers sort.
func (s *Store) MessagesByConversation(convID string) ([]models.Message, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened")
	}
	prefix := []byte("conv:" + convID + ":msg:")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid message record %s: %w", iter.Key(), err)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// GetMessage returns the stored message with the given id.
func (s *Store) GetMessage(msgID string) (models.Message, error) {
	var m models.Message
	convID, err := s.lookupConversation(msgID)
	if err != nil {
		return m, err
	}
	v, closer, err := s.db.Get(msgKey(convID, msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, ErrNotFound
		}
		return m, fmt.Errorf("message lookup failed: %w", err)
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid message record: %w", err)
	}
	return m, nil
}

// MarkSendFailed annotates the stored message as unconfirmed. The message is
// neither removed nor retried.
func (s *Store) MarkSendFailed(msgID string) error {
	m, err := s.GetMessage(msgID)
	if err != nil {
		return err
	}
	m.SendFailed = true
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := s.db.Set(msgKey(m.Conversation, m.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("annotate message failed: %w", err)
	}
	return nil
}

// DeleteMessage removes a message by id (explicit user delete).
func (s *Store) DeleteMessage(msgID string) error {
	convID, err := s.lookupConversation(msgID)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Delete(msgKey(convID, msgID), nil)
	_ = b.Delete(msgIdxKey(msgID), nil)
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	logger.Info("message_deleted", "conversation", convID, "id", msgID)
	return nil
}

func (s *Store) lookupConversation(msgID string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("store not opened")
	}
	v, closer, err := s.db.Get(msgIdxKey(msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("message index lookup failed: %w", err)
	}
	defer closer.Close()
	return string(v), nil
}

// SaveConversation inserts or overwrites a conversation record.
func (s *Store) SaveConversation(c models.Conversation) error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := s.db.Set(convMetaKey(c.ID), data, pebble.Sync); err != nil {
		logger.Error("save_conversation_failed", "conversation", c.ID, "error", err)
		return fmt.Errorf("save conversation failed: %w", err)
	}
	return nil
}

// SaveConversations bulk-upserts conversation records in one batch.
func (s *Store) SaveConversations(convs []models.Conversation) error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, c := range convs {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation %s: %w", c.ID, err)
		}
		_ = b.Set(convMetaKey(c.ID), data, nil)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("save conversations failed: %w", err)
	}
	return nil
}

// GetConversation returns the stored conversation record.
func (s *Store) GetConversation(convID string) (models.Conversation, error) {
	var c models.Conversation
	if s.db == nil {
		return c, fmt.Errorf("store not opened")
	}
	v, closer, err := s.db.Get(convMetaKey(convID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return c, ErrNotFound
		}
		return c, fmt.Errorf("conversation lookup failed: %w", err)
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid conversation record: %w", err)
	}
	return c, nil
}

// ListConversations returns all stored conversation records.
func (s *Store) ListConversations() ([]models.Conversation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened")
	}
	prefix := []byte("conv:")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Conversation
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var c models.Conversation
		if err := json.Unmarshal(iter.Value(), &c); err != nil {
			return nil, fmt.Errorf("invalid conversation record %s: %w", iter.Key(), err)
		}
		out = append(out, c)
	}
	return out, iter.Error()
}

// SetUnread is the partial conversation update used by the reconcilers: it
// rewrites only the unread field of the stored record.
func (s *Store) SetUnread(convID string, unread int) error {
	c, err := s.GetConversation(convID)
	if err != nil {
		return err
	}
	c.Unread = unread
	return s.SaveConversation(c)
}

// SaveCursors persists the read-cursor map for one conversation.
func (s *Store) SaveCursors(convID string, cursors map[string]int64) error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	data, err := json.Marshal(cursors)
	if err != nil {
		return fmt.Errorf("failed to marshal cursors: %w", err)
	}
	if err := s.db.Set(cursorKey(convID), data, pebble.Sync); err != nil {
		return fmt.Errorf("save cursors failed: %w", err)
	}
	return nil
}

// LoadCursors returns every persisted read-cursor map keyed by conversation.
func (s *Store) LoadCursors() (map[string]map[string]int64, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not opened")
	}
	prefix := []byte("cursor:")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make(map[string]map[string]int64)
	for iter.First(); iter.Valid(); iter.Next() {
		convID := string(bytes.TrimPrefix(iter.Key(), prefix))
		var m map[string]int64
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return nil, fmt.Errorf("invalid cursor record %s: %w", iter.Key(), err)
		}
		out[convID] = m
	}
	return out, iter.Error()
}

// ClearAll drops every cached record: messages, conversations and cursors.
func (s *Store) ClearAll() error {
	if s.db == nil {
		return fmt.Errorf("store not opened")
	}
	for _, p := range []string{"conv:", "cursor:", "msgidx:"} {
		prefix := []byte(p)
		if err := s.db.DeleteRange(prefix, keyUpperBound(prefix), pebble.Sync); err != nil {
			return fmt.Errorf("clear %q failed: %w", p, err)
		}
	}
	logger.Info("store_cleared", "path", s.path)
	return nil
}
