package syncer

import (
	"context"
	"errors"
	"fmt"

	"chatcache/pkg/cursors"
	"chatcache/pkg/directory"
	"chatcache/pkg/logger"
	"chatcache/pkg/models"
	"chatcache/pkg/unread"
)

// Bootstrap builds the conversation set from directory data, seeds the
// cursor map, computes unread counts over the cached history, and then pulls
// fresh history for every resolved conversation. A failure on one entry does
// not abort the others; the returned map is the union of what succeeded, and
// the joined error reports what did not.
func (s *Service) Bootstrap(ctx context.Context, token string) (*cursors.Map, error) {
	friends, err := s.dir.ListFriends(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: friend list unavailable: %w", err)
	}
	groups, err := s.dir.ListGroups(ctx, token)
	if err != nil {
		// friends alone are still worth reconciling
		logger.Warn("bootstrap_group_list_failed", "error", err)
		groups = nil
	}

	var errs []error
	convs := make([]models.Conversation, 0, len(friends)+len(groups))

	for _, f := range friends {
		conv, err := s.bootstrapFriend(ctx, token, f)
		if err != nil {
			logger.Warn("bootstrap_entry_failed", "peer", f.Username, "error", err)
			errs = append(errs, err)
			continue
		}
		convs = append(convs, conv)
	}
	for _, g := range groups {
		conv, err := s.bootstrapGroup(g)
		if err != nil {
			logger.Warn("bootstrap_entry_failed", "group", g.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		convs = append(convs, conv)
	}

	if err := s.st.SaveConversations(convs); err != nil {
		return s.cm, errors.Join(append(errs, err)...)
	}
	for _, c := range convs {
		if err := s.st.SaveCursors(c.ID, s.cm.Conversation(c.ID)); err != nil {
			errs = append(errs, err)
		}
	}
	s.bumpRevision()
	logger.Info("bootstrap_done", "conversations", len(convs), "failed", len(errs))

	for _, c := range convs {
		if err := s.Pull(ctx, c.ID); err != nil {
			logger.Warn("bootstrap_pull_failed", "conversation", c.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return s.cm, errors.Join(errs...)
}

// bootstrapFriend resolves one friendship into a private conversation.
func (s *Service) bootstrapFriend(ctx context.Context, token string, f directory.Friend) (models.Conversation, error) {
	var conv models.Conversation
	id := f.FriendshipID
	if id == "" {
		resolved, err := s.dir.ResolveFriendshipID(ctx, token, f.Username)
		if err != nil {
			return conv, err
		}
		id = resolved
	}
	if err := directory.ValidateID(f.Username, id); err != nil {
		return conv, err
	}

	s.cm.Set(id, s.user, f.Cursor)
	s.cm.Set(id, f.Username, f.FriendCursor)

	cached, err := s.st.MessagesByConversation(id)
	if err != nil {
		return conv, err
	}
	cur := s.cursorFor(id)
	return models.Conversation{
		ID:      id,
		Type:    models.ConversationPrivate,
		Name:    f.Username,
		Members: []string{s.user, f.Username},
		Unread:  unread.Count(cached, cur, s.user),
	}, nil
}

// bootstrapGroup turns one directory group into a group conversation.
func (s *Service) bootstrapGroup(g directory.Group) (models.Conversation, error) {
	var conv models.Conversation
	if err := directory.ValidateID(g.Name, g.ID); err != nil {
		return conv, err
	}

	members := make([]string, 0, len(g.Members))
	seed := make(map[string]int64, len(g.Members))
	for _, mc := range g.Members {
		members = append(members, mc.Member)
		seed[mc.Member] = mc.Cursor
	}
	s.cm.Seed(g.ID, seed)
	s.cm.Set(g.ID, s.user, g.Cursor)

	cached, err := s.st.MessagesByConversation(g.ID)
	if err != nil {
		return conv, err
	}
	cur := s.cursorFor(g.ID)
	return models.Conversation{
		ID:      g.ID,
		Type:    models.ConversationGroup,
		Name:    g.Name,
		Members: members,
		Unread:  unread.Count(cached, cur, s.user),
	}, nil
}
