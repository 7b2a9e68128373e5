package models

// ConversationType distinguishes two-member private threads from groups.
type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
)

type Conversation struct {
	ID      string           `json:"id"`
	Type    ConversationType `json:"type"`
	Name    string           `json:"name,omitempty"`
	Members []string         `json:"members"`
	// Unread counts cached messages newer than the local user's read cursor,
	// never including the user's own messages.
	Unread int `json:"unread"`
}

// MemberCursor pairs a conversation member with their last-read timestamp.
// Directory responses carry members and cursors as index-aligned parallel
// arrays; they are converted to this pair form at the client boundary.
type MemberCursor struct {
	Member string `json:"member"`
	Cursor int64  `json:"cursor"`
}
