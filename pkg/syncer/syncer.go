// Package syncer is the synchronization engine: it reconciles the local
// message cache against the remote service and keeps per-conversation unread
// counts and read cursors correct across bootstrap, pulls and live pushes.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"chatcache/pkg/cursors"
	"chatcache/pkg/directory"
	"chatcache/pkg/history"
	"chatcache/pkg/logger"
	"chatcache/pkg/models"
	"chatcache/pkg/push"
	"chatcache/pkg/store"
	"chatcache/pkg/unread"
)

// Options holds engine tunables.
type Options struct {
	// Username is the local user; their own messages never count as unread.
	Username string
	// PageLimit is the history page size (default 100).
	PageLimit int
	// SendWatchdog bounds how long an optimistic send waits for an
	// acknowledgment (default 10s).
	SendWatchdog time.Duration
}

// Service owns the local cache, the cursor map and the active-conversation
// marker, and exposes the consumer-facing operations. All mutations of a
// conversation's unread count go through a per-conversation mutex; work on
// distinct conversations proceeds in parallel.
type Service struct {
	st    *store.Store
	dir   directory.Client
	fetch history.Fetcher
	out   push.Outbound

	user         string
	pageLimit    int
	sendWatchdog time.Duration

	cm *cursors.Map

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	active atomic.Value // conversation id, "" when none

	rev   atomic.Uint64
	subMu sync.Mutex
	subs  []func(uint64)

	ackMu sync.Mutex
	acks  map[string]chan struct{}
}

// New builds a Service over the opened store and remote clients. Persisted
// cursors are loaded back into the in-memory map. out may be nil when no
// outbound path is configured (read-only cache).
func New(st *store.Store, dir directory.Client, fetch history.Fetcher, out push.Outbound, opts Options) (*Service, error) {
	if opts.Username == "" {
		return nil, fmt.Errorf("syncer requires a username")
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = 100
	}
	if opts.SendWatchdog <= 0 {
		opts.SendWatchdog = 10 * time.Second
	}
	snap, err := st.LoadCursors()
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted cursors: %w", err)
	}
	s := &Service{
		st:           st,
		dir:          dir,
		fetch:        fetch,
		out:          out,
		user:         opts.Username,
		pageLimit:    opts.PageLimit,
		sendWatchdog: opts.SendWatchdog,
		cm:           cursors.FromSnapshot(snap),
		locks:        make(map[string]*sync.Mutex),
		acks:         make(map[string]chan struct{}),
	}
	s.active.Store("")
	return s, nil
}

// convLock returns the mutex serializing unread read-modify-write for one
// conversation, creating it on first use.
func (s *Service) convLock(convID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[convID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[convID] = l
	}
	return l
}

// cursorFor returns the local user's read cursor for a conversation, mapped
// through the absent-cursor sentinel.
func (s *Service) cursorFor(convID string) int64 {
	return unread.CursorOr(s.cm.Get(convID, s.user))
}

// Cursors returns the engine's cursor map. Callers may read it concurrently;
// mutation stays inside the engine.
func (s *Service) Cursors() *cursors.Map { return s.cm }

// SetActive marks the conversation currently open in the consumer's view.
// Pass "" when none is open. The active conversation is exempt from unread
// increments.
func (s *Service) SetActive(convID string) {
	s.active.Store(convID)
}

// Active returns the currently open conversation id, or "".
func (s *Service) Active() string {
	v, _ := s.active.Load().(string)
	return v
}

// Revision returns the current change counter. It increases whenever cached
// state changes in a way consumers should re-query.
func (s *Service) Revision() uint64 { return s.rev.Load() }

// OnRevision registers a callback invoked (on its own goroutine) after each
// revision bump.
func (s *Service) OnRevision(fn func(uint64)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Service) bumpRevision() {
	rev := s.rev.Add(1)
	s.subMu.Lock()
	subs := append([]func(uint64){}, s.subs...)
	s.subMu.Unlock()
	for _, fn := range subs {
		go fn(rev)
	}
}

// Messages returns the cached messages of a conversation ordered by create
// time (ties broken by id).
func (s *Service) Messages(convID string) ([]models.Message, error) {
	msgs, err := s.st.MessagesByConversation(convID)
	if err != nil {
		return nil, err
	}
	models.SortMessages(msgs)
	return msgs, nil
}

// Conversations returns all cached conversation records.
func (s *Service) Conversations() ([]models.Conversation, error) {
	return s.st.ListConversations()
}

// MarkRead records that the local user has read a conversation up to now:
// the unread count drops to zero, the cursor map and its persisted copy
// advance, and the new cursor is published to the push channel.
func (s *Service) MarkRead(ctx context.Context, convID string) error {
	now := time.Now().UTC().UnixNano()
	l := s.convLock(convID)
	l.Lock()
	defer l.Unlock()

	s.cm.Set(convID, s.user, now)
	if err := s.st.SaveCursors(convID, s.cm.Conversation(convID)); err != nil {
		return err
	}
	if err := s.st.SetUnread(convID, 0); err != nil {
		return err
	}
	if s.out != nil {
		if err := s.out.UpdateCursor(ctx, convID, now); err != nil {
			logger.Warn("cursor_publish_failed", "conversation", convID, "error", err)
		}
	}
	s.bumpRevision()
	return nil
}

// DeleteMessage removes a message by id (explicit user delete).
func (s *Service) DeleteMessage(msgID string) error {
	if err := s.st.DeleteMessage(msgID); err != nil {
		return err
	}
	s.bumpRevision()
	return nil
}

// ClearAll drops the whole local cache.
func (s *Service) ClearAll() error {
	if err := s.st.ClearAll(); err != nil {
		return err
	}
	s.bumpRevision()
	return nil
}
