// Package push models the live event channel: inbound message, cursor-update
// and acknowledgment events, the bounded queue they pass through, and a
// websocket source feeding it.
package push

import (
	"encoding/json"
	"fmt"

	"chatcache/pkg/models"
)

// EventType identifies the kinds of events the push channel delivers. The
// transport guarantees ordering within a type but not across types; consumers
// must tolerate a cursor update arriving before the message it refers to.
type EventType string

const (
	// EventMessage carries a newly delivered message.
	EventMessage EventType = "message"
	// EventCursor carries another member's read-cursor update.
	EventCursor EventType = "cursor"
	// EventAck confirms a locally sent message by id.
	EventAck EventType = "ack"
)

// CursorUpdate is a remote member's new read cursor for a conversation.
type CursorUpdate struct {
	Conversation string `json:"conversation"`
	Member       string `json:"member"`
	Cursor       int64  `json:"cursor"`
}

// Event is one decoded push event. Exactly one of the payload fields is set,
// according to Type.
type Event struct {
	Type    EventType       `json:"type"`
	Message *models.Message `json:"message,omitempty"`
	Cursor  *CursorUpdate   `json:"cursor,omitempty"`
	AckID   string          `json:"ack_id,omitempty"`
}

// envelope is the wire form: a type tag plus a raw payload.
type envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEvent parses a wire envelope into an Event.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("invalid push envelope: %w", err)
	}
	ev := Event{Type: env.Type}
	switch env.Type {
	case EventMessage:
		var m models.Message
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return Event{}, fmt.Errorf("invalid message event: %w", err)
		}
		ev.Message = &m
	case EventCursor:
		var c CursorUpdate
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return Event{}, fmt.Errorf("invalid cursor event: %w", err)
		}
		ev.Cursor = &c
	case EventAck:
		var a struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return Event{}, fmt.Errorf("invalid ack event: %w", err)
		}
		ev.AckID = a.ID
	default:
		return Event{}, fmt.Errorf("unknown push event type %q", env.Type)
	}
	return ev, nil
}
