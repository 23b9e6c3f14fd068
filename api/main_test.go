package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := slogging.Initialize(slogging.Config{Level: slogging.LogLevelError, Output: io.Discard}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// seedChatFixtures creates:
//
//	E1  created by alice, carol registered
//	E2  created by carol, alice registered
//	E3  created by bob
//	dave is an admin, mal is blocked
func seedChatFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()
	users := []models.User{
		{ID: "alice", Name: "Alice", Email: "alice@example.com"},
		{ID: "bob", Name: "Bob", Email: "bob@example.com"},
		{ID: "carol", Name: "Carol", Email: "carol@example.com"},
		{ID: "dave", Name: "Dave", Email: "dave@example.com", Role: models.RoleAdmin},
		{ID: "mal", Name: "Mal", Email: "mal@example.com", IsBlocked: true},
	}
	require.NoError(t, db.Create(&users).Error)
	events := []models.Event{
		{ID: "E1", Title: "Launch Party", CreatorID: "alice"},
		{ID: "E2", Title: "Book Club", CreatorID: "carol"},
		{ID: "E3", Title: "Hackathon", CreatorID: "bob"},
	}
	require.NoError(t, db.Create(&events).Error)
	participants := []models.EventParticipant{
		{EventID: "E1", UserID: "carol"},
		{EventID: "E2", UserID: "alice"},
	}
	require.NoError(t, db.Create(&participants).Error)
}

type testEnv struct {
	db         *gorm.DB
	hub        *ChatHub
	verifier   *auth.JWTVerifier
	users      *GormUserStore
	membership *GormMembershipStore
	history    *GormHistoryStore
}

type testEnvSetup struct {
	deps        HubDependencies
	cfg         HubConfig
	revocations auth.Revocations
}

type testEnvOption func(*testEnvSetup)

func withHistory(h HistoryStore) testEnvOption {
	return func(s *testEnvSetup) { s.deps.History = h }
}

func withMembership(m MembershipStore) testEnvOption {
	return func(s *testEnvSetup) { s.deps.Membership = m }
}

func withVerifier(v IdentityVerifier) testEnvOption {
	return func(s *testEnvSetup) { s.deps.Verifier = v }
}

func withRevocations(r auth.Revocations) testEnvOption {
	return func(s *testEnvSetup) { s.revocations = r }
}

func withConfig(fn func(*HubConfig)) testEnvOption {
	return func(s *testEnvSetup) { fn(&s.cfg) }
}

func newTestEnv(t *testing.T, opts ...testEnvOption) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	seedChatFixtures(t, db)

	setup := testEnvSetup{cfg: DefaultHubConfig()}
	setup.cfg.SendBufferSize = 64
	setup.cfg.CollaboratorTimeout = time.Second
	for _, opt := range opts {
		opt(&setup)
	}

	users := NewGormUserStore(db)
	verifier, err := auth.NewJWTVerifier(auth.JWTConfig{Secret: "test-secret", SigningMethod: "HS256"}, users, setup.revocations)
	require.NoError(t, err)

	env := &testEnv{
		db:         db,
		verifier:   verifier,
		users:      users,
		membership: NewGormMembershipStore(db, nil, 0),
		history:    NewGormHistoryStore(db),
	}

	deps := setup.deps
	if deps.Verifier == nil {
		deps.Verifier = verifier
	}
	if deps.Membership == nil {
		deps.Membership = env.membership
	}
	if deps.History == nil {
		deps.History = env.history
	}
	deps.Directory = users

	env.hub, err = NewChatHub(deps, setup.cfg)
	require.NoError(t, err)
	return env
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.verifier.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return token
}

// session opens an unauthenticated session on an in-memory connection
func (e *testEnv) session(id string) *Session {
	return e.hub.NewSession(NewConnection(id, e.hub.cfg.SendBufferSize))
}

// authedSession opens a session and completes auth for userID
func (e *testEnv) authedSession(t *testing.T, userID string) *Session {
	t.Helper()
	s := e.session("conn-" + userID)
	s.HandleFrame(context.Background(), frameJSON(t, MessageTypeAuth, AuthPayload{Token: e.token(t, userID)}))
	f := nextFrame(t, s.conn)
	require.Equal(t, MessageTypeAuthSuccess, f.Type, string(f.Payload))
	return s
}

func (e *testEnv) send(t *testing.T, s *Session, messageType string, payload any) {
	t.Helper()
	s.HandleFrame(context.Background(), frameJSON(t, messageType, payload))
}

type receivedFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (f receivedFrame) decode(t *testing.T, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Payload, target))
}

func (f receivedFrame) errorMessage(t *testing.T) string {
	t.Helper()
	require.Equal(t, MessageTypeError, f.Type, string(f.Payload))
	var p ErrorPayload
	f.decode(t, &p)
	return p.Message
}

func frameJSON(t *testing.T, messageType string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": messageType, "payload": payload})
	require.NoError(t, err)
	return data
}

func nextFrame(t *testing.T, conn *Connection) receivedFrame {
	t.Helper()
	select {
	case data := <-conn.Queue():
		var f receivedFrame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(time.Second):
		t.Fatalf("no frame queued for %s", conn.ID)
		return receivedFrame{}
	}
}

func requireNoFrame(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case data := <-conn.Queue():
		t.Fatalf("unexpected frame for %s: %s", conn.ID, data)
	default:
	}
}

type failingHistory struct {
	appendErr error
	recentErr error
	records   []ChatRecord
}

func (f *failingHistory) AppendHistory(_ context.Context, eventID, authorID, body, kind string) (*ChatRecord, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	record := ChatRecord{ID: "01TEST", EventID: eventID, User: ChatUser{ID: authorID}, Content: body, Type: kind}
	f.records = append(f.records, record)
	return &record, nil
}

func (f *failingHistory) RecentHistory(context.Context, string, int) ([]ChatRecord, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.records, nil
}

type stubMembership struct {
	full map[string]bool
	err  error
}

func (s *stubMembership) IsFullMember(_ context.Context, eventID, userID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	full, ok := s.full[eventID+"/"+userID]
	if !ok && eventID != "E1" {
		return false, ErrEventNotFound
	}
	return full, nil
}

var errBackendDown = errors.New("backend down")
