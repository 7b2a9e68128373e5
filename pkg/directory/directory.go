// Package directory is the boundary to the external directory service that
// resolves friendships, group membership and server-recorded read cursors.
package directory

import (
	"context"
	"fmt"
	"strings"

	"chatcache/pkg/models"
)

// Friend is one resolved friendship: a stable conversation id plus the
// server-recorded read cursors for both participants.
type Friend struct {
	FriendshipID string `json:"friendship_id"`
	Username     string `json:"username"`
	// Cursor is the caller's last-read timestamp, FriendCursor the peer's.
	Cursor       int64 `json:"cursor"`
	FriendCursor int64 `json:"friend_cursor"`
}

// Group is one group conversation with per-member cursors already paired.
type Group struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Members []models.MemberCursor `json:"members"`
	// Cursor is the caller's own last-read timestamp for the group.
	Cursor int64 `json:"cursor"`
}

// Client is the directory service contract used by the bootstrap reconciler.
type Client interface {
	ListFriends(ctx context.Context, token string) ([]Friend, error)
	ListGroups(ctx context.Context, token string) ([]Group, error)
	ResolveFriendshipID(ctx context.Context, token, peer string) (string, error)
}

// ResolutionError marks directory data that cannot be used: a malformed
// conversation identifier or member/cursor arrays that do not line up.
// Bootstrap skips the affected entry and continues with the rest.
type ResolutionError struct {
	Entry  string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("directory resolution failed for %s: %s", e.Entry, e.Reason)
}

// ValidateID rejects non-identifier values returned by the directory.
// Colons are reserved as the local store's key delimiter.
func ValidateID(entry, id string) error {
	if id == "" {
		return &ResolutionError{Entry: entry, Reason: "empty identifier"}
	}
	if strings.ContainsAny(id, ": \t\r\n") {
		return &ResolutionError{Entry: entry, Reason: fmt.Sprintf("malformed identifier %q", id)}
	}
	return nil
}

// PairMembers converts the directory wire form — index-aligned member and
// cursor arrays — into explicit pairs. A length mismatch is a resolution
// failure for the whole group.
func PairMembers(entry string, members []string, cursors []int64) ([]models.MemberCursor, error) {
	if len(members) != len(cursors) {
		return nil, &ResolutionError{
			Entry:  entry,
			Reason: fmt.Sprintf("member/cursor arrays misaligned (%d vs %d)", len(members), len(cursors)),
		}
	}
	out := make([]models.MemberCursor, 0, len(members))
	for i, m := range members {
		out = append(out, models.MemberCursor{Member: m, Cursor: cursors[i]})
	}
	return out, nil
}
