package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Inbound message types
const (
	MessageTypeAuth        = "auth"
	MessageTypeJoinEvent   = "join_event"
	MessageTypeLeaveEvent  = "leave_event"
	MessageTypeChatMessage = "chat_message"
	MessageTypeTyping      = "typing"
)

// Outbound message types
const (
	MessageTypeAuthSuccess  = "auth_success"
	MessageTypeError        = "error"
	MessageTypeJoinedEvent  = "joined_event"
	MessageTypeLeftEvent    = "left_event"
	MessageTypeUserJoined   = "user_joined"
	MessageTypeUserLeft     = "user_left"
	MessageTypeNewMessage   = "new_message"
	MessageTypeUserTyping   = "user_typing"
	MessageTypeNotification = "notification"
)

// Notification kinds carried inside a notification frame
const (
	NotificationEventRegistration = "event_registration"
	NotificationNewReport         = "new_report"
)

// Frame is the envelope of every inbound message
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundFrame is the envelope of every outbound message
type OutboundFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// AuthPayload is the body of an auth frame
type AuthPayload struct {
	Token string `json:"token"`
}

// RoomPayload is the body of join_event and leave_event
type RoomPayload struct {
	EventID string `json:"eventId"`
}

// ChatMessagePayload is the body of chat_message
type ChatMessagePayload struct {
	EventID string `json:"eventId"`
	Content string `json:"content"`
}

// TypingPayload is the body of typing
type TypingPayload struct {
	EventID  string `json:"eventId"`
	IsTyping bool   `json:"isTyping"`
}

// ChatUser is the author summary embedded in a chat record
type ChatUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChatRecord is the wire form of one persisted message
type ChatRecord struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	User      ChatUser  `json:"user"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthSuccessPayload answers a successful auth
type AuthSuccessPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// ErrorPayload carries a client-visible error message
type ErrorPayload struct {
	Message string `json:"message"`
}

// JoinedEventPayload answers join_event
type JoinedEventPayload struct {
	EventID    string       `json:"eventId"`
	Messages   []ChatRecord `json:"messages"`
	IsReadOnly bool         `json:"isReadOnly"`
}

// LeftEventPayload answers leave_event
type LeftEventPayload struct {
	EventID string `json:"eventId"`
}

// PresencePayload is broadcast as user_joined and user_left
type PresencePayload struct {
	EventID  string `json:"eventId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// NewMessagePayload is broadcast for every persisted chat record
type NewMessagePayload struct {
	EventID string     `json:"eventId"`
	Message ChatRecord `json:"message"`
}

// UserTypingPayload is broadcast for typing indicators
type UserTypingPayload struct {
	EventID  string `json:"eventId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// EventRegistrationNotification tells an event's creator and room about a new registration
type EventRegistrationNotification struct {
	Type       string    `json:"type"`
	EventID    string    `json:"eventId"`
	EventTitle string    `json:"eventTitle"`
	UserName   string    `json:"userName"`
	UserID     string    `json:"userId"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReportNotification tells admins about a new moderation report
type ReportNotification struct {
	Type         string    `json:"type"`
	ReportID     string    `json:"reportId"`
	EventID      string    `json:"eventId"`
	EventTitle   string    `json:"eventTitle"`
	ReporterName string    `json:"reporterName"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

// decodeFrame parses the envelope. A frame without a type is malformed.
func decodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if frame.Type == "" {
		return Frame{}, fmt.Errorf("frame is missing type")
	}
	return frame, nil
}

// decodePayload unmarshals an optional payload. An absent or null payload
// leaves target at its zero value.
func decodePayload(raw json.RawMessage, target any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return newFrameError(KindProtocol, MsgInvalidFormat, err)
	}
	return nil
}

// encodeFrame marshals one outbound frame
func encodeFrame(messageType string, payload any) ([]byte, error) {
	data, err := json.Marshal(OutboundFrame{Type: messageType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", messageType, err)
	}
	return data, nil
}
