package validation

import (
	"strings"
	"testing"

	"chatcache/pkg/models"
)

func TestValidateMessage(t *testing.T) {
	ok := models.Message{ID: "m1", Conversation: "c1", Sender: "bob", Content: "hi", TS: 1}
	if err := ValidateMessage(ok); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}

	cases := []models.Message{
		{Conversation: "c1", Sender: "bob"},
		{ID: "m1", Sender: "bob"},
		{ID: "m1", Conversation: "c1"},
		// colons are the store's key delimiter
		{ID: "m:1", Conversation: "c1", Sender: "bob", TS: 1},
		{ID: "m1", Conversation: "c:1", Sender: "bob", TS: 1},
	}
	for _, m := range cases {
		if err := ValidateMessage(m); err == nil {
			t.Fatalf("expected rejection for %+v", m)
		}
	}
}

func TestContentLengthRule(t *testing.T) {
	SetRules(Rules{MaxContentLen: 8})
	t.Cleanup(func() { SetRules(Rules{}) })

	m := models.Message{ID: "m1", Conversation: "c1", Sender: "bob", Content: strings.Repeat("x", 9)}
	if err := ValidateMessage(m); err == nil {
		t.Fatalf("expected oversize content rejection")
	}
	m.Content = strings.Repeat("x", 8)
	if err := ValidateMessage(m); err != nil {
		t.Fatalf("boundary content rejected: %v", err)
	}
}
