package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		want    string
	}{
		{"auth", `{"type":"auth","payload":{"token":"t"}}`, false, "auth"},
		{"no payload", `{"type":"typing"}`, false, "typing"},
		{"missing type", `{"payload":{}}`, true, ""},
		{"empty type", `{"type":""}`, true, ""},
		{"not json", `hello`, true, ""},
		{"array", `[1,2]`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := decodeFrame([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, frame.Type)
		})
	}
}

func TestDecodePayload(t *testing.T) {
	var p RoomPayload
	require.NoError(t, decodePayload(nil, &p))
	require.NoError(t, decodePayload(json.RawMessage(`null`), &p))
	assert.Empty(t, p.EventID)

	require.NoError(t, decodePayload(json.RawMessage(`{"eventId":"E1"}`), &p))
	assert.Equal(t, "E1", p.EventID)

	err := decodePayload(json.RawMessage(`"E1"`), &p)
	require.Error(t, err)
	assert.Equal(t, KindProtocol, asFrameError(err).Kind)
	assert.Equal(t, MsgInvalidFormat, asFrameError(err).Message)
}

func TestEncodeFrame_ChatRecordShape(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := encodeFrame(MessageTypeNewMessage, NewMessagePayload{
		EventID: "E1",
		Message: ChatRecord{
			ID:        "01HZX",
			EventID:   "E1",
			User:      ChatUser{ID: "alice", Name: "Alice"},
			Content:   "hello",
			Type:      "text",
			CreatedAt: created,
		},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "new_message",
		"payload": {
			"eventId": "E1",
			"message": {
				"id": "01HZX",
				"eventId": "E1",
				"user": {"id": "alice", "name": "Alice"},
				"content": "hello",
				"type": "text",
				"createdAt": "2026-03-01T12:00:00Z"
			}
		}
	}`, string(data))
}

func TestEncodeFrame_EmptyHistoryIsArray(t *testing.T) {
	data, err := encodeFrame(MessageTypeJoinedEvent, JoinedEventPayload{EventID: "E1", Messages: []ChatRecord{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"joined_event","payload":{"eventId":"E1","messages":[],"isReadOnly":false}}`, string(data))
}
