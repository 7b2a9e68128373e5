package models

import "testing"

func TestSortMessagesStable(t *testing.T) {
	msgs := []Message{
		{ID: "b", TS: 10},
		{ID: "c", TS: 5},
		{ID: "a", TS: 10},
	}
	SortMessages(msgs)
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, msgs[i].ID)
		}
	}
}

func TestMaxTS(t *testing.T) {
	if got := MaxTS(nil); got != 0 {
		t.Fatalf("empty slice: expected 0, got %d", got)
	}
	msgs := []Message{{ID: "a", TS: 3}, {ID: "b", TS: 9}, {ID: "c", TS: 1}}
	if got := MaxTS(msgs); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}
