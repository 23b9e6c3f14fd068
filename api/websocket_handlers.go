package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
)

// MessageHandler handles one inbound message type
type MessageHandler interface {
	HandleMessage(ctx context.Context, s *Session, payload json.RawMessage) error
	MessageType() string
}

// MessageRouter dispatches frames to their handlers
type MessageRouter struct {
	handlers map[string]MessageHandler
}

// NewMessageRouter creates a router with the chat handlers registered
func NewMessageRouter() *MessageRouter {
	router := &MessageRouter{handlers: make(map[string]MessageHandler)}
	router.RegisterHandler(&AuthHandler{})
	router.RegisterHandler(&JoinEventHandler{})
	router.RegisterHandler(&LeaveEventHandler{})
	router.RegisterHandler(&ChatMessageHandler{})
	router.RegisterHandler(&TypingHandler{})
	return router
}

// RegisterHandler registers a handler for its message type
func (r *MessageRouter) RegisterHandler(handler MessageHandler) {
	r.handlers[handler.MessageType()] = handler
}

// Handles reports whether a handler is registered for messageType
func (r *MessageRouter) Handles(messageType string) bool {
	_, ok := r.handlers[messageType]
	return ok
}

// RouteMessage routes a frame to its handler. A panicking handler is
// reported as an internal error instead of killing the read loop.
func (r *MessageRouter) RouteMessage(ctx context.Context, s *Session, frame Frame) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slogging.Get().Error("PANIC in RouteMessage - Connection: %s, User: %s, Type: %s, Error: %v, Stack: %s",
				s.conn.ID, s.conn.UserID(), frame.Type, rec, debug.Stack())
			err = newFrameError(KindDependency, MsgInternalError, fmt.Errorf("panic: %v", rec))
		}
	}()

	handler, ok := r.handlers[frame.Type]
	if !ok {
		return newFrameError(KindProtocol, MsgUnknownType, fmt.Errorf("unknown message type %q", frame.Type))
	}
	return handler.HandleMessage(ctx, s, frame.Payload)
}

func requireIdentity(s *Session) (*auth.Identity, error) {
	identity := s.conn.Identity()
	if identity == nil {
		return nil, newFrameError(KindAuth, MsgNotAuthenticated, nil)
	}
	return identity, nil
}

// AuthHandler verifies the credential and moves the session to Authenticated
type AuthHandler struct{}

func (h *AuthHandler) MessageType() string { return MessageTypeAuth }

func (h *AuthHandler) HandleMessage(ctx context.Context, s *Session, payload json.RawMessage) error {
	if s.conn.Identity() != nil {
		return newFrameError(KindProtocol, MsgAlreadyAuthenticated, nil)
	}

	var msg AuthPayload
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Token) == "" {
		s.hub.metrics.RecordAuth(ctx, "missing_token")
		return newFrameError(KindAuth, MsgTokenRequired, auth.ErrMissingToken)
	}

	callCtx, cancel := s.hub.collaboratorContext(ctx)
	defer cancel()
	start := time.Now()
	identity, err := s.hub.verifier.VerifyIdentity(callCtx, msg.Token)
	s.hub.metrics.ObserveCollaborator(ctx, "verify_identity", time.Since(start), dependencyOnly(err))

	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserBlocked):
		s.hub.metrics.RecordAuth(ctx, "blocked")
		return newFrameError(KindAuth, MsgUserBlocked, err)
	case errors.Is(err, auth.ErrUserNotFound):
		s.hub.metrics.RecordAuth(ctx, "unknown_user")
		return newFrameError(KindAuth, MsgUserNotFound, err)
	case errors.Is(err, auth.ErrMissingToken):
		s.hub.metrics.RecordAuth(ctx, "missing_token")
		return newFrameError(KindAuth, MsgTokenRequired, err)
	case auth.IsAuthError(err):
		s.hub.metrics.RecordAuth(ctx, "invalid_token")
		return newFrameError(KindAuth, MsgAuthenticationFailed, err)
	default:
		s.hub.metrics.RecordAuth(ctx, "error")
		return newFrameError(KindDependency, MsgAuthenticationFailed, err)
	}

	s.authenticate(identity)
	s.hub.metrics.RecordAuth(ctx, "success")
	s.logger.Info("Authenticated as %s", identity.ID)
	s.send(MessageTypeAuthSuccess, AuthSuccessPayload{UserID: identity.ID, Name: identity.Name})
	return nil
}

// dependencyOnly hides credential rejections from collaborator error metrics
func dependencyOnly(err error) error {
	if err == nil || auth.IsAuthError(err) {
		return nil
	}
	return err
}

// JoinEventHandler adds the connection to an event room and replies with recent history
type JoinEventHandler struct{}

func (h *JoinEventHandler) MessageType() string { return MessageTypeJoinEvent }

func (h *JoinEventHandler) HandleMessage(ctx context.Context, s *Session, payload json.RawMessage) error {
	identity, err := requireIdentity(s)
	if err != nil {
		return err
	}
	var msg RoomPayload
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}

	callCtx, cancel := s.hub.collaboratorContext(ctx)
	defer cancel()
	start := time.Now()
	full, err := s.hub.membership.IsFullMember(callCtx, msg.EventID, identity.ID)
	switch {
	case errors.Is(err, ErrEventNotFound):
		s.hub.metrics.ObserveCollaborator(ctx, "membership", time.Since(start), nil)
		return newFrameError(KindNotFound, MsgEventNotFound, err)
	case err != nil:
		s.hub.metrics.ObserveCollaborator(ctx, "membership", time.Since(start), err)
		return newFrameError(KindDependency, MsgJoinFailed, err)
	}
	s.hub.metrics.ObserveCollaborator(ctx, "membership", time.Since(start), nil)

	access := AccessReadOnly
	if full {
		access = AccessFull
	}

	// History is loaded under the room lock so no record can be committed
	// between the snapshot and the join; a failed load changes nothing.
	unlock := s.hub.router.LockRoom(msg.EventID)
	defer unlock()

	historyCtx, cancelHistory := s.hub.collaboratorContext(ctx)
	defer cancelHistory()
	start = time.Now()
	history, err := s.hub.history.RecentHistory(historyCtx, msg.EventID, s.hub.cfg.HistoryLimit)
	s.hub.metrics.ObserveCollaborator(ctx, "recent_history", time.Since(start), err)
	if err != nil {
		return newFrameError(KindDependency, MsgJoinFailed, err)
	}
	if history == nil {
		history = []ChatRecord{}
	}

	if rejoined := s.hub.router.Join(s.conn, msg.EventID, access); !rejoined {
		s.hub.metrics.RoomJoined(ctx)
		s.hub.notifier.BroadcastRoom(ctx, msg.EventID, MessageTypeUserJoined, PresencePayload{
			EventID:  msg.EventID,
			UserID:   identity.ID,
			UserName: identity.Name,
		}, identity.ID)
	}

	s.logger.Debug("Joined event %s with %s access", msg.EventID, access)
	s.send(MessageTypeJoinedEvent, JoinedEventPayload{
		EventID:    msg.EventID,
		Messages:   history,
		IsReadOnly: access == AccessReadOnly,
	})
	return nil
}

// LeaveEventHandler removes the connection from an event room
type LeaveEventHandler struct{}

func (h *LeaveEventHandler) MessageType() string { return MessageTypeLeaveEvent }

func (h *LeaveEventHandler) HandleMessage(ctx context.Context, s *Session, payload json.RawMessage) error {
	identity, err := requireIdentity(s)
	if err != nil {
		return err
	}
	var msg RoomPayload
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}

	unlock := s.hub.router.LockRoom(msg.EventID)
	defer unlock()

	if !s.hub.router.Leave(s.conn, msg.EventID) {
		return nil
	}
	s.hub.metrics.RoomLeft(ctx, 1)
	s.hub.notifier.BroadcastRoom(ctx, msg.EventID, MessageTypeUserLeft, PresencePayload{
		EventID:  msg.EventID,
		UserID:   identity.ID,
		UserName: identity.Name,
	}, identity.ID)
	s.send(MessageTypeLeftEvent, LeftEventPayload{EventID: msg.EventID})
	return nil
}

// ChatMessageHandler persists a chat message and broadcasts it to the room
type ChatMessageHandler struct{}

func (h *ChatMessageHandler) MessageType() string { return MessageTypeChatMessage }

func (h *ChatMessageHandler) HandleMessage(ctx context.Context, s *Session, payload json.RawMessage) error {
	identity, err := requireIdentity(s)
	if err != nil {
		return err
	}
	var msg ChatMessagePayload
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}

	access, joined := s.conn.Access(msg.EventID)
	if !joined {
		return newFrameError(KindAuthorization, MsgNotInRoom, nil)
	}
	if access != AccessFull {
		return newFrameError(KindAuthorization, MsgMustRegister, nil)
	}

	if _, err := s.hub.PostMessage(ctx, identity, msg.EventID, msg.Content); err != nil {
		if errors.Is(err, ErrInvalidContent) {
			return newFrameError(KindProtocol, MsgInvalidContent, err)
		}
		return newFrameError(KindDependency, MsgSendFailed, err)
	}
	return nil
}

// TypingHandler relays typing indicators from full members; anything else is ignored
type TypingHandler struct{}

func (h *TypingHandler) MessageType() string { return MessageTypeTyping }

func (h *TypingHandler) HandleMessage(ctx context.Context, s *Session, payload json.RawMessage) error {
	identity := s.conn.Identity()
	if identity == nil {
		return nil
	}
	var msg TypingPayload
	if err := decodePayload(payload, &msg); err != nil {
		return err
	}
	if access, joined := s.conn.Access(msg.EventID); !joined || access != AccessFull {
		return nil
	}

	s.hub.notifier.BroadcastRoom(ctx, msg.EventID, MessageTypeUserTyping, UserTypingPayload{
		EventID:  msg.EventID,
		UserID:   identity.ID,
		UserName: identity.Name,
		IsTyping: msg.IsTyping,
	}, identity.ID)
	return nil
}
