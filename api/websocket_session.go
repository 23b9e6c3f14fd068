package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
)

// Session runs the per-connection state machine:
// Unauthenticated -> Authenticated -> Closed. Frames are handled one at a
// time in arrival order, so a frame's replies are queued before the next
// frame is read.
type Session struct {
	hub        *ChatHub
	conn       *Connection
	logger     *slogging.ContextLogger
	closeGauge func()
	closeOnce  sync.Once
}

// Connection returns the connection this session drives
func (s *Session) Connection() *Connection {
	return s.conn
}

// HandleFrame decodes and dispatches one inbound frame. Failures are
// answered with an error frame; the connection stays open.
func (s *Session) HandleFrame(ctx context.Context, data []byte) {
	frame, err := decodeFrame(data)
	if err != nil {
		s.logger.Debug("Rejected malformed frame: %v", err)
		s.sendError(MsgInvalidFormat)
		return
	}

	label := frame.Type
	if !s.hub.messages.Handles(label) {
		label = "unknown"
	}
	ctx, end := s.hub.metrics.TraceFrame(ctx, label)
	err = s.hub.messages.RouteMessage(ctx, s, frame)
	end(err)
	if err != nil {
		s.reportError(frame.Type, err)
	}
}

func (s *Session) reportError(messageType string, err error) {
	fe := asFrameError(err)
	attrs := []slog.Attr{
		slog.String("message_type", messageType),
		slog.String("error_kind", fe.Kind.String()),
		slog.String("error", err.Error()),
	}
	if fe.Kind == KindDependency {
		s.logger.ErrorCtx("Frame handling failed", attrs...)
	} else {
		s.logger.WarnCtx("Frame rejected", attrs...)
	}
	s.sendError(fe.Message)
}

func (s *Session) send(messageType string, payload any) bool {
	data, err := encodeFrame(messageType, payload)
	if err != nil {
		s.logger.Error("Failed to encode %s frame: %v", messageType, err)
		return false
	}
	return s.conn.Send(data)
}

func (s *Session) sendError(message string) {
	s.send(MessageTypeError, ErrorPayload{Message: message})
}

// authenticate binds identity to the connection and registers it,
// replacing and closing any earlier connection of the same identity
func (s *Session) authenticate(identity *auth.Identity) {
	s.conn.setIdentity(identity)
	s.logger = slogging.Get().WithConnection(s.conn.ID, identity.ID)

	if prior := s.hub.registry.Put(identity.ID, s.conn); prior != nil {
		s.logger.Info("Replacing earlier connection %s", prior.ID)
		prior.Close()
	}
}

// Disconnect tells every joined room the user left and unregisters the
// connection. Safe to call more than once.
func (s *Session) Disconnect(ctx context.Context) {
	s.closeOnce.Do(func() {
		defer s.hub.untrack(s.conn)
		if s.closeGauge != nil {
			defer s.closeGauge()
		}

		identity := s.conn.Identity()
		if identity == nil {
			s.logger.Debug("Unauthenticated connection closed")
			return
		}

		// A replaced connection leaves its successor registered. Rooms the
		// successor is in must not see the user leave.
		var successor *Connection
		if !s.hub.registry.RemoveIf(identity.ID, s.conn) {
			if current, ok := s.hub.registry.Get(identity.ID); ok && current != s.conn {
				successor = current
			}
		}

		rooms := s.hub.router.RemoveConnection(s.conn)
		for _, roomID := range rooms {
			unlock := s.hub.router.LockRoom(roomID)
			if successor != nil {
				if _, joined := successor.Access(roomID); joined {
					unlock()
					continue
				}
			}
			s.hub.notifier.BroadcastRoom(ctx, roomID, MessageTypeUserLeft, PresencePayload{
				EventID:  roomID,
				UserID:   identity.ID,
				UserName: identity.Name,
			}, identity.ID)
			unlock()
		}
		s.hub.metrics.RoomLeft(ctx, len(rooms))

		slogging.LogWebSocketConnection("disconnected", s.conn.ID, identity.ID, s.hub.cfg.FrameLogging)
		s.logger.Debug("Connection closed after leaving %d rooms", len(rooms))
	})
}
