package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth"
)

func joinRoom(t *testing.T, env *testEnv, s *Session, eventID string) JoinedEventPayload {
	t.Helper()
	env.send(t, s, MessageTypeJoinEvent, RoomPayload{EventID: eventID})
	f := nextFrame(t, s.conn)
	require.Equal(t, MessageTypeJoinedEvent, f.Type, string(f.Payload))
	var joined JoinedEventPayload
	f.decode(t, &joined)
	return joined
}

func countMessages(t *testing.T, env *testEnv) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.db.Model(&models.Message{}).Count(&count).Error)
	return count
}

func TestAuth_CreatorJoinsWithFullAccess(t *testing.T) {
	env := newTestEnv(t)
	c1 := env.session("c1")

	env.send(t, c1, MessageTypeAuth, AuthPayload{Token: env.token(t, "alice")})
	f := nextFrame(t, c1.conn)
	require.Equal(t, MessageTypeAuthSuccess, f.Type)
	var success AuthSuccessPayload
	f.decode(t, &success)
	assert.Equal(t, AuthSuccessPayload{UserID: "alice", Name: "Alice"}, success)

	env.send(t, c1, MessageTypeJoinEvent, RoomPayload{EventID: "E1"})
	f = nextFrame(t, c1.conn)
	assert.Equal(t, MessageTypeJoinedEvent, f.Type)
	assert.JSONEq(t, `{"eventId":"E1","messages":[],"isReadOnly":false}`, string(f.Payload))
	requireNoFrame(t, c1.conn)
}

func TestChat_ReadOnlyMemberCannotSend(t *testing.T) {
	env := newTestEnv(t)
	c1 := env.authedSession(t, "alice")
	joinRoom(t, env, c1, "E1")

	c2 := env.authedSession(t, "bob")
	joined := joinRoom(t, env, c2, "E1")
	assert.True(t, joined.IsReadOnly)
	assert.Equal(t, MessageTypeUserJoined, nextFrame(t, c1.conn).Type)

	env.send(t, c2, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: "hi"})
	assert.Equal(t, MsgMustRegister, nextFrame(t, c2.conn).errorMessage(t))
	requireNoFrame(t, c1.conn)
	assert.Zero(t, countMessages(t, env))
}

func TestChat_BroadcastReachesReadOnlyMembers(t *testing.T) {
	env := newTestEnv(t)
	c1 := env.authedSession(t, "alice")
	joinRoom(t, env, c1, "E1")
	c2 := env.authedSession(t, "bob")
	joinRoom(t, env, c2, "E1")
	nextFrame(t, c1.conn) // user_joined for bob

	env.send(t, c1, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: "hello"})

	for _, conn := range []*Connection{c1.conn, c2.conn} {
		f := nextFrame(t, conn)
		require.Equal(t, MessageTypeNewMessage, f.Type)
		var payload NewMessagePayload
		f.decode(t, &payload)
		assert.Equal(t, "E1", payload.EventID)
		assert.Equal(t, "hello", payload.Message.Content)
		assert.Equal(t, ChatUser{ID: "alice", Name: "Alice"}, payload.Message.User)
		assert.Equal(t, models.MessageTypeText, payload.Message.Type)
		assert.Len(t, payload.Message.ID, 26)
	}
	assert.EqualValues(t, 1, countMessages(t, env))
}

func TestDisconnect_NotifiesEachJoinedRoomOnce(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")
	joinRoom(t, env, alice, "E2")

	carol := env.authedSession(t, "carol")
	joinRoom(t, env, carol, "E1")
	joinRoom(t, env, carol, "E2")
	bob := env.authedSession(t, "bob")
	joinRoom(t, env, bob, "E3")

	// drain presence frames
	nextFrame(t, alice.conn)
	nextFrame(t, alice.conn)
	requireNoFrame(t, carol.conn)

	alice.Disconnect(context.Background())
	alice.Disconnect(context.Background())

	for _, room := range []string{"E1", "E2"} {
		f := nextFrame(t, carol.conn)
		require.Equal(t, MessageTypeUserLeft, f.Type)
		var presence PresencePayload
		f.decode(t, &presence)
		assert.Equal(t, PresencePayload{EventID: room, UserID: "alice", UserName: "Alice"}, presence)
	}
	requireNoFrame(t, carol.conn)
	requireNoFrame(t, bob.conn)

	_, registered := env.hub.Registry().Get("alice")
	assert.False(t, registered)
	assert.Len(t, env.hub.Router().MembersOf("E1"), 1)
}

func TestDisconnect_NoRoomsNoBroadcast(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")
	carol := env.authedSession(t, "carol")
	joinRoom(t, env, carol, "E1")

	alice.Disconnect(context.Background())

	requireNoFrame(t, carol.conn)
	assert.Equal(t, 1, env.hub.Registry().Count())
}

func TestDisconnect_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	s := env.session("anon")
	assert.Equal(t, 1, env.hub.ConnectionCount())

	s.Disconnect(context.Background())
	assert.Equal(t, 0, env.hub.ConnectionCount())
}

func TestAuth_Failures(t *testing.T) {
	env := newTestEnv(t)
	expired, err := env.verifier.IssueToken("alice", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{"missing payload", nil, MsgTokenRequired},
		{"empty token", AuthPayload{}, MsgTokenRequired},
		{"garbage token", AuthPayload{Token: "not-a-jwt"}, MsgAuthenticationFailed},
		{"expired token", AuthPayload{Token: expired}, MsgAuthenticationFailed},
		{"unknown user", AuthPayload{Token: env.token(t, "nobody")}, MsgUserNotFound},
		{"blocked user", AuthPayload{Token: env.token(t, "mal")}, MsgUserBlocked},
		{"payload not an object", "token", MsgInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := env.session("c-" + strings.ReplaceAll(tt.name, " ", "-"))
			env.send(t, s, MessageTypeAuth, tt.payload)
			assert.Equal(t, tt.want, nextFrame(t, s.conn).errorMessage(t))
			assert.Nil(t, s.conn.Identity(), "state unchanged after failed auth")
			assert.True(t, s.conn.IsOpen())
		})
	}
	assert.Zero(t, env.hub.Registry().Count())
}

func TestAuth_VerifierUnavailable(t *testing.T) {
	env := newTestEnv(t, withVerifier(verifierFunc(func(context.Context, string) error { return errBackendDown })))
	s := env.session("c1")

	env.send(t, s, MessageTypeAuth, AuthPayload{Token: "anything"})
	assert.Equal(t, MsgAuthenticationFailed, nextFrame(t, s.conn).errorMessage(t))
	assert.Nil(t, s.conn.Identity())
}

func TestAuth_SecondAuthRejected(t *testing.T) {
	env := newTestEnv(t)
	s := env.authedSession(t, "alice")

	env.send(t, s, MessageTypeAuth, AuthPayload{Token: env.token(t, "bob")})
	assert.Equal(t, MsgAlreadyAuthenticated, nextFrame(t, s.conn).errorMessage(t))
	assert.Equal(t, "alice", s.conn.UserID())
}

func TestAuth_DuplicateIdentityClosesPrior(t *testing.T) {
	env := newTestEnv(t)
	first := env.authedSession(t, "alice")
	joinRoom(t, env, first, "E1")

	second := env.session("c-alice-2")
	env.send(t, second, MessageTypeAuth, AuthPayload{Token: env.token(t, "alice")})
	require.Equal(t, MessageTypeAuthSuccess, nextFrame(t, second.conn).Type)

	assert.False(t, first.conn.IsOpen(), "prior connection is closed on replace")
	current, ok := env.hub.Registry().Get("alice")
	require.True(t, ok)
	assert.Same(t, second.conn, current)

	// the prior connection's teardown must not evict its successor
	first.Disconnect(context.Background())
	current, ok = env.hub.Registry().Get("alice")
	require.True(t, ok)
	assert.Same(t, second.conn, current)
}

func TestDisconnect_ReplacedConnectionKeepsSuccessorPresence(t *testing.T) {
	env := newTestEnv(t)
	first := env.authedSession(t, "alice")
	joinRoom(t, env, first, "E1")
	joinRoom(t, env, first, "E2")
	carol := env.authedSession(t, "carol")
	joinRoom(t, env, carol, "E1")
	joinRoom(t, env, carol, "E2")

	second := env.session("c-alice-2")
	env.send(t, second, MessageTypeAuth, AuthPayload{Token: env.token(t, "alice")})
	require.Equal(t, MessageTypeAuthSuccess, nextFrame(t, second.conn).Type)
	joinRoom(t, env, second, "E1")

	f := nextFrame(t, carol.conn)
	require.Equal(t, MessageTypeUserJoined, f.Type)
	requireNoFrame(t, carol.conn)

	first.Disconnect(context.Background())

	// alice is still in E1 through the second connection, but gone from E2
	f = nextFrame(t, carol.conn)
	require.Equal(t, MessageTypeUserLeft, f.Type)
	var presence PresencePayload
	f.decode(t, &presence)
	assert.Equal(t, PresencePayload{EventID: "E2", UserID: "alice", UserName: "Alice"}, presence)
	requireNoFrame(t, carol.conn)

	assert.Len(t, env.hub.Router().MembersOf("E1"), 2)
	assert.Len(t, env.hub.Router().MembersOf("E2"), 1)
	current, ok := env.hub.Registry().Get("alice")
	require.True(t, ok)
	assert.Same(t, second.conn, current)
}

func TestProtocolErrors(t *testing.T) {
	env := newTestEnv(t)
	s := env.session("c1")

	s.HandleFrame(context.Background(), []byte("not json"))
	assert.Equal(t, MsgInvalidFormat, nextFrame(t, s.conn).errorMessage(t))

	s.HandleFrame(context.Background(), []byte(`{"payload":{}}`))
	assert.Equal(t, MsgInvalidFormat, nextFrame(t, s.conn).errorMessage(t))

	s.HandleFrame(context.Background(), []byte(`{"type":"dance"}`))
	assert.Equal(t, MsgUnknownType, nextFrame(t, s.conn).errorMessage(t))

	assert.True(t, s.conn.IsOpen())
}

func TestRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	s := env.session("c1")

	env.send(t, s, MessageTypeJoinEvent, RoomPayload{EventID: "E1"})
	assert.Equal(t, MsgNotAuthenticated, nextFrame(t, s.conn).errorMessage(t))

	env.send(t, s, MessageTypeLeaveEvent, RoomPayload{EventID: "E1"})
	assert.Equal(t, MsgNotAuthenticated, nextFrame(t, s.conn).errorMessage(t))

	env.send(t, s, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: "hi"})
	assert.Equal(t, MsgNotAuthenticated, nextFrame(t, s.conn).errorMessage(t))

	env.send(t, s, MessageTypeTyping, TypingPayload{EventID: "E1", IsTyping: true})
	requireNoFrame(t, s.conn)
	assert.Zero(t, countMessages(t, env))
}

func TestJoin_UnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	s := env.authedSession(t, "alice")

	env.send(t, s, MessageTypeJoinEvent, RoomPayload{EventID: "nope"})
	assert.Equal(t, MsgEventNotFound, nextFrame(t, s.conn).errorMessage(t))
	assert.Empty(t, s.conn.Rooms())
}

func TestJoin_DependencyFailures(t *testing.T) {
	t.Run("membership", func(t *testing.T) {
		env := newTestEnv(t, withMembership(&stubMembership{err: errBackendDown}))
		s := env.authedSession(t, "alice")
		env.send(t, s, MessageTypeJoinEvent, RoomPayload{EventID: "E1"})
		assert.Equal(t, MsgJoinFailed, nextFrame(t, s.conn).errorMessage(t))
		assert.Empty(t, s.conn.Rooms())
	})

	t.Run("history", func(t *testing.T) {
		failing := &failingHistory{}
		env := newTestEnv(t, withHistory(failing))
		carol := env.authedSession(t, "carol")
		joinRoom(t, env, carol, "E1")

		failing.recentErr = errBackendDown
		alice := env.authedSession(t, "alice")
		env.send(t, alice, MessageTypeJoinEvent, RoomPayload{EventID: "E1"})
		assert.Equal(t, MsgJoinFailed, nextFrame(t, alice.conn).errorMessage(t))
		assert.Empty(t, alice.conn.Rooms(), "failed join leaves no membership behind")
		requireNoFrame(t, carol.conn)
	})
}

func TestJoin_HistoryIsLastFiftyOldestFirst(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")

	for i := 0; i < 55; i++ {
		env.send(t, alice, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: fmt.Sprintf("m%02d", i)})
		require.Equal(t, MessageTypeNewMessage, nextFrame(t, alice.conn).Type)
	}

	carol := env.authedSession(t, "carol")
	joined := joinRoom(t, env, carol, "E1")
	require.Len(t, joined.Messages, 50)
	assert.False(t, joined.IsReadOnly)
	for i, record := range joined.Messages {
		assert.Equal(t, fmt.Sprintf("m%02d", i+5), record.Content)
	}
}

func TestJoin_RejoinRefreshesAccessWithoutPresence(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")
	bob := env.authedSession(t, "bob")
	assert.True(t, joinRoom(t, env, bob, "E1").IsReadOnly)
	assert.Equal(t, MessageTypeUserJoined, nextFrame(t, alice.conn).Type)

	require.NoError(t, env.db.Create(&models.EventParticipant{EventID: "E1", UserID: "bob"}).Error)

	rejoined := joinRoom(t, env, bob, "E1")
	assert.False(t, rejoined.IsReadOnly)
	requireNoFrame(t, alice.conn)

	env.send(t, bob, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: "now I can talk"})
	assert.Equal(t, MessageTypeNewMessage, nextFrame(t, bob.conn).Type)
	assert.Equal(t, MessageTypeNewMessage, nextFrame(t, alice.conn).Type)
}

func TestLeave(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")
	carol := env.authedSession(t, "carol")
	joinRoom(t, env, carol, "E1")
	nextFrame(t, alice.conn) // user_joined

	env.send(t, carol, MessageTypeLeaveEvent, RoomPayload{EventID: "E1"})
	assert.Equal(t, MessageTypeLeftEvent, nextFrame(t, carol.conn).Type)
	f := nextFrame(t, alice.conn)
	assert.Equal(t, MessageTypeUserLeft, f.Type)
	assert.JSONEq(t, `{"eventId":"E1","userId":"carol","userName":"Carol"}`, string(f.Payload))

	env.send(t, carol, MessageTypeLeaveEvent, RoomPayload{EventID: "E1"})
	requireNoFrame(t, carol.conn)
	requireNoFrame(t, alice.conn)

	env.send(t, carol, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: "hi"})
	assert.Equal(t, MsgNotInRoom, nextFrame(t, carol.conn).errorMessage(t))
}

func TestChat_NotJoined(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")

	env.send(t, alice, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: "hi"})
	assert.Equal(t, MsgNotInRoom, nextFrame(t, alice.conn).errorMessage(t))
	assert.Zero(t, countMessages(t, env))
}

func TestChat_InvalidContent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")

	for _, content := range []string{"", "   ", "<br>", strings.Repeat("x", models.MaxMessageLength+1)} {
		env.send(t, alice, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: content})
		assert.Equal(t, MsgInvalidContent, nextFrame(t, alice.conn).errorMessage(t))
	}
	assert.Zero(t, countMessages(t, env))
}

func TestChat_StoreFailure(t *testing.T) {
	env := newTestEnv(t, withHistory(&failingHistory{appendErr: errBackendDown}))
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")
	carol := env.authedSession(t, "carol")
	joinRoom(t, env, carol, "E1")
	nextFrame(t, alice.conn)

	env.send(t, alice, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: "lost"})
	assert.Equal(t, MsgSendFailed, nextFrame(t, alice.conn).errorMessage(t))
	requireNoFrame(t, carol.conn)
	assert.True(t, alice.conn.IsOpen())
}

func TestChat_PerSenderOrdering(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")
	carol := env.authedSession(t, "carol")
	joinRoom(t, env, carol, "E1")
	nextFrame(t, alice.conn)

	for i := 0; i < 10; i++ {
		env.send(t, alice, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: fmt.Sprintf("m%d", i)})
	}

	var lastID string
	for i := 0; i < 10; i++ {
		f := nextFrame(t, carol.conn)
		require.Equal(t, MessageTypeNewMessage, f.Type)
		var payload NewMessagePayload
		f.decode(t, &payload)
		assert.Equal(t, fmt.Sprintf("m%d", i), payload.Message.Content)
		assert.Greater(t, payload.Message.ID, lastID)
		lastID = payload.Message.ID
	}
}

func TestChat_ConcurrentSendersShareOneOrder(t *testing.T) {
	const perSender = 40
	env := newTestEnv(t, withConfig(func(c *HubConfig) { c.SendBufferSize = 4 * perSender }))
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")
	carol := env.authedSession(t, "carol")
	joinRoom(t, env, carol, "E1")
	bob := env.authedSession(t, "bob")
	joinRoom(t, env, bob, "E1")

	// drain presence frames
	nextFrame(t, alice.conn)
	nextFrame(t, alice.conn)
	nextFrame(t, carol.conn)

	frames := map[*Session][][]byte{}
	for _, s := range []*Session{alice, carol} {
		for i := 0; i < perSender; i++ {
			content := fmt.Sprintf("%s-%d", s.conn.UserID(), i)
			frames[s] = append(frames[s], frameJSON(t, MessageTypeChatMessage, ChatMessagePayload{EventID: "E1", Content: content}))
		}
	}

	var wg sync.WaitGroup
	for s, batch := range frames {
		wg.Add(1)
		go func(s *Session, batch [][]byte) {
			defer wg.Done()
			for _, frame := range batch {
				s.HandleFrame(context.Background(), frame)
			}
		}(s, batch)
	}
	wg.Wait()

	received := func(conn *Connection) []string {
		ids := make([]string, 0, 2*perSender)
		for i := 0; i < 2*perSender; i++ {
			f := nextFrame(t, conn)
			require.Equal(t, MessageTypeNewMessage, f.Type, string(f.Payload))
			var payload NewMessagePayload
			f.decode(t, &payload)
			ids = append(ids, payload.Message.ID)
		}
		requireNoFrame(t, conn)
		return ids
	}

	observed := received(bob.conn)
	assert.Equal(t, observed, received(alice.conn))
	assert.Equal(t, observed, received(carol.conn))

	history, err := env.history.RecentHistory(context.Background(), "E1", 100)
	require.NoError(t, err)
	stored := make([]string, 0, len(history))
	for _, record := range history {
		stored = append(stored, record.ID)
	}
	assert.Equal(t, observed, stored)
}

func TestTyping(t *testing.T) {
	env := newTestEnv(t)
	alice := env.authedSession(t, "alice")
	joinRoom(t, env, alice, "E1")
	bob := env.authedSession(t, "bob")
	joinRoom(t, env, bob, "E1")
	nextFrame(t, alice.conn)

	env.send(t, alice, MessageTypeTyping, TypingPayload{EventID: "E1", IsTyping: true})
	f := nextFrame(t, bob.conn)
	assert.Equal(t, MessageTypeUserTyping, f.Type)
	assert.JSONEq(t, `{"eventId":"E1","userId":"alice","userName":"Alice","isTyping":true}`, string(f.Payload))
	requireNoFrame(t, alice.conn)

	// read-only and non-joined typing is silently dropped
	env.send(t, bob, MessageTypeTyping, TypingPayload{EventID: "E1", IsTyping: true})
	env.send(t, alice, MessageTypeTyping, TypingPayload{EventID: "E3", IsTyping: true})
	requireNoFrame(t, alice.conn)
	requireNoFrame(t, bob.conn)
}

type panickyHandler struct{}

func (panickyHandler) MessageType() string { return "explode" }

func (panickyHandler) HandleMessage(context.Context, *Session, json.RawMessage) error {
	panic("boom")
}

type verifierFunc func(ctx context.Context, token string) error

func (f verifierFunc) VerifyIdentity(ctx context.Context, token string) (*auth.Identity, error) {
	return nil, f(ctx, token)
}

func TestRouteMessage_RecoversPanics(t *testing.T) {
	env := newTestEnv(t)
	env.hub.messages.RegisterHandler(panickyHandler{})
	s := env.session("c1")

	s.HandleFrame(context.Background(), []byte(`{"type":"explode"}`))
	assert.Equal(t, MsgInternalError, nextFrame(t, s.conn).errorMessage(t))
	assert.True(t, s.conn.IsOpen())
}
