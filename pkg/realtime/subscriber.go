package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// WSSubscriber is a Subscriber backed by a WebSocket connection.
// Envelopes are written as text frames.
type WSSubscriber struct {
	id        uuid.UUID
	userID    uuid.UUID
	conn      *websocket.Conn
	closeOnce sync.Once
}

// NewWSSubscriber wraps an accepted connection for userID.
func NewWSSubscriber(conn *websocket.Conn, userID uuid.UUID) *WSSubscriber {
	return &WSSubscriber{
		id:     uuid.New(),
		userID: userID,
		conn:   conn,
	}
}

// ID returns the subscriber's connection ID.
func (s *WSSubscriber) ID() uuid.UUID {
	return s.id
}

// UserID returns the admitted user.
func (s *WSSubscriber) UserID() uuid.UUID {
	return s.userID
}

// Send writes payload as one text frame.
func (s *WSSubscriber) Send(ctx context.Context, payload []byte) error {
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscriberUnreachable, err)
	}
	return nil
}

// Close starts the closing handshake and returns without waiting for the
// peer. Later calls are no-ops.
func (s *WSSubscriber) Close(reason string) {
	s.closeOnce.Do(func() {
		go func() {
			_ = s.conn.Close(websocket.StatusGoingAway, reason)
		}()
	})
}

var _ Subscriber = (*WSSubscriber)(nil)
