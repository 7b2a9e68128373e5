// Package cursors holds the per-conversation read-cursor map: for every
// member of a conversation, the last instant they are known to have read it.
package cursors

import "sync"

// Map is a two-level mapping conversation -> member -> last-read timestamp
// (ns since epoch). A missing entry means "never read". Safe for concurrent
// use.
type Map struct {
	mu sync.RWMutex
	m  map[string]map[string]int64
}

// New returns an empty cursor map.
func New() *Map {
	return &Map{m: make(map[string]map[string]int64)}
}

// FromSnapshot builds a cursor map from persisted state.
func FromSnapshot(snap map[string]map[string]int64) *Map {
	cm := New()
	for conv, members := range snap {
		inner := make(map[string]int64, len(members))
		for member, ts := range members {
			inner[member] = ts
		}
		cm.m[conv] = inner
	}
	return cm
}

// Get returns the member's cursor for the conversation. ok is false when the
// member has never read the conversation.
func (c *Map) Get(conv, member string) (ts int64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inner, ok := c.m[conv]
	if !ok {
		return 0, false
	}
	ts, ok = inner[member]
	return ts, ok
}

// Set records the member's cursor. Regressions are rejected: a timestamp
// older than the stored one leaves the map unchanged, keeping cursors
// monotonically non-decreasing per (conversation, member). Returns whether
// the offered value was applied.
func (c *Map) Set(conv, member string, ts int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	inner, ok := c.m[conv]
	if !ok {
		inner = make(map[string]int64)
		c.m[conv] = inner
	}
	if cur, ok := inner[member]; ok && cur >= ts {
		return false
	}
	inner[member] = ts
	return true
}

// Seed installs cursors for a conversation's members in one call, applying
// the same monotonic rule as Set.
func (c *Map) Seed(conv string, pairs map[string]int64) {
	for member, ts := range pairs {
		c.Set(conv, member, ts)
	}
}

// Conversation returns a copy of one conversation's member cursors, or nil
// when none are recorded.
func (c *Map) Conversation(conv string) map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inner, ok := c.m[conv]
	if !ok {
		return nil
	}
	out := make(map[string]int64, len(inner))
	for member, ts := range inner {
		out[member] = ts
	}
	return out
}

// Snapshot returns a deep copy of the whole map, suitable for persisting.
func (c *Map) Snapshot() map[string]map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]map[string]int64, len(c.m))
	for conv, inner := range c.m {
		cp := make(map[string]int64, len(inner))
		for member, ts := range inner {
			cp[member] = ts
		}
		out[conv] = cp
	}
	return out
}
