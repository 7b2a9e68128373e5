package cursors

import "testing"

func TestSetMonotonic(t *testing.T) {
	m := New()

	if !m.Set("c1", "alice", 100) {
		t.Fatalf("first set must land")
	}
	if got, ok := m.Get("c1", "alice"); !ok || got != 100 {
		t.Fatalf("expected 100, got %d ok=%v", got, ok)
	}

	// regressions and repeats are rejected
	if m.Set("c1", "alice", 50) {
		t.Fatalf("regression must be rejected")
	}
	if m.Set("c1", "alice", 100) {
		t.Fatalf("equal cursor must be rejected")
	}
	if got, _ := m.Get("c1", "alice"); got != 100 {
		t.Fatalf("cursor moved backwards to %d", got)
	}

	if !m.Set("c1", "alice", 200) {
		t.Fatalf("advance must land")
	}
}

func TestGetAbsent(t *testing.T) {
	m := New()
	if _, ok := m.Get("c1", "nobody"); ok {
		t.Fatalf("expected absent cursor")
	}
	m.Set("c1", "alice", 1)
	if _, ok := m.Get("c1", "bob"); ok {
		t.Fatalf("expected absent cursor for other member")
	}
	if _, ok := m.Get("c2", "alice"); ok {
		t.Fatalf("expected absent cursor for other conversation")
	}
}

func TestConversationCopy(t *testing.T) {
	m := New()
	m.Set("c1", "alice", 10)

	cp := m.Conversation("c1")
	cp["alice"] = 999
	if got, _ := m.Get("c1", "alice"); got != 10 {
		t.Fatalf("Conversation must return a copy, got %d", got)
	}
	if got := m.Conversation("missing"); len(got) != 0 {
		t.Fatalf("expected nothing for unknown conversation, got %+v", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := New()
	m.Set("c1", "alice", 10)
	m.Set("c2", "bob", 20)

	snap := m.Snapshot()
	restored := FromSnapshot(snap)
	if got, _ := restored.Get("c1", "alice"); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got, _ := restored.Get("c2", "bob"); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}

	// mutating the snapshot must not reach the source map
	snap["c1"]["alice"] = 999
	if got, _ := m.Get("c1", "alice"); got != 10 {
		t.Fatalf("snapshot aliases the live map")
	}
}

func TestSeed(t *testing.T) {
	m := New()
	m.Seed("c1", map[string]int64{"alice": 5, "bob": 7})
	if got, _ := m.Get("c1", "bob"); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	// seeding again keeps the max per member
	m.Seed("c1", map[string]int64{"alice": 3, "bob": 9})
	if got, _ := m.Get("c1", "alice"); got != 5 {
		t.Fatalf("seed must not regress, got %d", got)
	}
	if got, _ := m.Get("c1", "bob"); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}
