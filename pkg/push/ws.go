package push

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"chatcache/pkg/logger"
	"chatcache/pkg/models"
)

// Outbound carries local actions to the remote: sending a message and
// publishing the current user's read cursor. Implementations must be safe
// for concurrent use.
type Outbound interface {
	SendMessage(ctx context.Context, m models.Message) error
	UpdateCursor(ctx context.Context, conversation string, cursor int64) error
}

// Source is a push-channel transport that feeds the event queue.
type Source interface {
	Outbound
	// Run connects and pumps inbound events into the queue until ctx is
	// canceled. Reconnects are handled internally.
	Run(ctx context.Context) error
}

// WSSource is a websocket push source with automatic reconnection and capped
// exponential backoff.
type WSSource struct {
	url   string
	token string
	q     *Queue

	mu   sync.Mutex
	conn *websocket.Conn

	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewWSSource returns a source that dials url and enqueues every inbound
// event envelope into q.
func NewWSSource(url, token string, q *Queue) *WSSource {
	return &WSSource{
		url:       url,
		token:     token,
		q:         q,
		baseDelay: time.Second,
		maxDelay:  30 * time.Second,
	}
}

var _ Source = (*WSSource)(nil)

// Run dials the push channel and pumps events until ctx is canceled. A
// dropped connection is redialed with jittered exponential backoff.
func (s *WSSource) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{
			HTTPHeader: map[string][]string{"Authorization": {"Bearer " + s.token}},
		})
		if err != nil {
			attempt++
			delay := s.backoff(attempt)
			logger.Warn("push_dial_failed", "attempt", attempt, "retry_in", delay.String(), "error", err)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		attempt = 0
		s.setConn(conn)
		logger.Info("push_connected", "url", s.url)

		err = s.readLoop(ctx, conn)
		s.setConn(nil)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("push_disconnected", "error", err)
	}
}

func (s *WSSource) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if err := s.q.TryEnqueue(data); err != nil {
			// an overloaded consumer loses live events; pull catches up
			logger.Warn("push_event_dropped", "error", err)
		}
	}
}

func (s *WSSource) backoff(attempt int) time.Duration {
	d := s.baseDelay << uint(attempt-1)
	if d > s.maxDelay || d <= 0 {
		d = s.maxDelay
	}
	// jitter to avoid thundering reconnects
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

func (s *WSSource) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *WSSource) write(ctx context.Context, v any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("push channel not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound event: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// SendMessage hands a locally composed message to the outbound path.
func (s *WSSource) SendMessage(ctx context.Context, m models.Message) error {
	return s.write(ctx, struct {
		Type    string         `json:"type"`
		Payload models.Message `json:"payload"`
	}{Type: "send", Payload: m})
}

// UpdateCursor publishes the local user's read cursor for a conversation.
func (s *WSSource) UpdateCursor(ctx context.Context, conversation string, cursor int64) error {
	return s.write(ctx, struct {
		Type    string       `json:"type"`
		Payload CursorUpdate `json:"payload"`
	}{Type: "cursor", Payload: CursorUpdate{Conversation: conversation, Cursor: cursor}})
}
