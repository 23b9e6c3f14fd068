package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(AllModels()...))
	return db
}

func TestUser_BeforeCreate_GeneratesUUID(t *testing.T) {
	db := setupTestDB(t)

	user := User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, db.Create(&user).Error)

	assert.Len(t, user.ID, 36)
	assert.Equal(t, RoleUser, user.Role)
}

func TestUser_BeforeCreate_PreservesExistingID(t *testing.T) {
	db := setupTestDB(t)

	user := User{ID: "alice", Name: "Alice", Email: "alice@example.com", Role: RoleAdmin}
	require.NoError(t, db.Create(&user).Error)

	assert.Equal(t, "alice", user.ID)
	assert.Equal(t, RoleAdmin, user.Role)
}

func TestMessage_BeforeSave(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name    string
		message Message
		wantErr string
	}{
		{"valid", Message{ID: "01A", EventID: "E1", UserID: "alice", Content: "hi"}, ""},
		{"empty content", Message{ID: "01B", EventID: "E1", UserID: "alice"}, "content is required"},
		{"too long", Message{ID: "01C", EventID: "E1", UserID: "alice", Content: strings.Repeat("é", MaxMessageLength+1)}, "cannot exceed"},
		{"bad type", Message{ID: "01D", EventID: "E1", UserID: "alice", Content: "hi", Type: "image"}, "invalid message type"},
		{"missing event", Message{ID: "01E", UserID: "alice", Content: "hi"}, "requires event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.Create(&tt.message).Error
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, MessageTypeText, tt.message.Type)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMessage_BoundaryLengthAccepted(t *testing.T) {
	db := setupTestDB(t)

	message := Message{ID: "01F", EventID: "E1", UserID: "alice", Content: strings.Repeat("a", MaxMessageLength)}
	assert.NoError(t, db.Create(&message).Error)
}

func TestReport_Hooks(t *testing.T) {
	db := setupTestDB(t)

	report := Report{EventID: "E1", ReporterID: "bob", Reason: "spam", Description: "ads"}
	require.NoError(t, db.Create(&report).Error)
	assert.Len(t, report.ID, 36)
	assert.Equal(t, ReportStatusPending, report.Status)

	bad := Report{EventID: "E1", ReporterID: "bob", Reason: "boring", Description: "meh"}
	err := db.Create(&bad).Error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid report reason")
}
