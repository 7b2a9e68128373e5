package push

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestQueueOrderAndBound(t *testing.T) {
	q := NewQueue(2)

	if err := q.TryEnqueue([]byte(`{"type":"ack","payload":{"id":"1"}}`)); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	if err := q.TryEnqueue([]byte(`{"type":"ack","payload":{"id":"2"}}`)); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}
	if err := q.TryEnqueue([]byte(`{"type":"ack","payload":{"id":"3"}}`)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Dropped())
	}

	var got []string
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.RunWorker(stop, func(ev Event) error {
			got = append(got, ev.AckID)
			if len(got) == 2 {
				close(stop)
			}
			return nil
		})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not drain the queue")
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("expected ordered delivery, got %v", got)
	}
}

func TestQueueBadPayloadCounted(t *testing.T) {
	q := NewQueue(4)
	_ = q.TryEnqueue([]byte("not json"))
	_ = q.TryEnqueue([]byte(`{"type":"ack","payload":{"id":"ok"}}`))

	var got []string
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.RunWorker(stop, func(ev Event) error {
			got = append(got, ev.AckID)
			close(stop)
			return nil
		})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker stuck")
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Fatalf("expected only the valid event, got %v", got)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected bad payload counted as dropped, got %d", q.Dropped())
	}
}

func TestItemDoneIdempotent(t *testing.T) {
	it := newItem([]byte("payload"))
	it.Done()
	it.Done() // second call is a no-op
}

func TestDecodeEvent(t *testing.T) {
	raw := []byte(`{"type":"message","payload":{"id":"m1","conversation":"c1","sender":"bob","content":"hi","ts":42}}`)
	ev, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Type != EventMessage || ev.Message == nil || ev.Message.ID != "m1" || ev.Message.TS != 42 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	raw = []byte(`{"type":"cursor","payload":{"conversation":"c1","member":"bob","cursor":99}}`)
	ev, err = DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent cursor: %v", err)
	}
	if ev.Type != EventCursor || ev.Cursor == nil || ev.Cursor.Cursor != 99 {
		t.Fatalf("unexpected cursor event: %+v", ev)
	}

	raw = []byte(`{"type":"ack","payload":{"id":"m1"}}`)
	ev, err = DecodeEvent(raw)
	if err != nil {
		t.Fatalf("DecodeEvent ack: %v", err)
	}
	if ev.Type != EventAck || ev.AckID != "m1" {
		t.Fatalf("unexpected ack event: %+v", ev)
	}

	if _, err := DecodeEvent([]byte(`{"type":"presence","payload":{}}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if _, err := DecodeEvent([]byte(`garbage`)); err == nil {
		t.Fatalf("expected error for invalid envelope")
	}
}

func TestDecodeEventPayloadShape(t *testing.T) {
	// the wire envelope keeps payload raw until the type is known
	var env envelope
	if err := json.Unmarshal([]byte(`{"type":"ack","payload":{"id":"x"}}`), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != EventAck || len(env.Payload) == 0 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}
