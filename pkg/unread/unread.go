// Package unread computes unread message counts against a read cursor.
package unread

import "chatcache/pkg/models"

// NoCursor marks "never read": every message counts as unread.
const NoCursor int64 = -1 << 62

// Count returns how many messages were created strictly after the cursor and
// were not sent by excludeSender. The comparison is strict: a message created
// exactly at the cursor instant is considered read. Order-independent and
// additive over disjoint message sets.
func Count(msgs []models.Message, cursor int64, excludeSender string) int {
	n := 0
	for _, m := range msgs {
		if m.TS > cursor && m.Sender != excludeSender {
			n++
		}
	}
	return n
}

// CursorOr maps the explicit-absence form of a cursor lookup onto the value
// Count expects.
func CursorOr(ts int64, ok bool) int64 {
	if !ok {
		return NoCursor
	}
	return ts
}
