// Package validation checks message records at the merge and send
// boundaries.
package validation

import (
	"fmt"
	"strings"
	"sync"

	"chatcache/pkg/models"
)

// Rules holds configurable validation limits.
type Rules struct {
	// MaxContentLen rejects content longer than this many bytes; 0 disables
	// the check.
	MaxContentLen int
}

var (
	rulesMu sync.RWMutex
	rules   Rules
)

// SetRules installs the global validation rules (from config at startup).
func SetRules(r Rules) {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rules = r
}

// ValidateMessage checks the structural invariants every stored message must
// satisfy. Colons are rejected in identifiers because the local store uses
// them as its key delimiter.
func ValidateMessage(m models.Message) error {
	if m.ID == "" {
		return fmt.Errorf("message id missing")
	}
	if strings.Contains(m.ID, ":") {
		return fmt.Errorf("message id malformed: %q", m.ID)
	}
	if m.Conversation == "" {
		return fmt.Errorf("message conversation missing")
	}
	if strings.Contains(m.Conversation, ":") {
		return fmt.Errorf("message conversation malformed: %q", m.Conversation)
	}
	if m.Sender == "" {
		return fmt.Errorf("message sender missing")
	}
	rulesMu.RLock()
	max := rules.MaxContentLen
	rulesMu.RUnlock()
	if max > 0 && len(m.Content) > max {
		return fmt.Errorf("message content exceeds %d bytes", max)
	}
	return nil
}
