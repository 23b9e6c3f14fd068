package api

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/internal/uuidgen"
)

// GormHistoryStore persists chat records in the messages table
type GormHistoryStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormHistoryStore creates a history store on db
func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	return &GormHistoryStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// AppendHistory stores one record and returns it with its author populated
func (s *GormHistoryStore) AppendHistory(ctx context.Context, eventID, authorID, body, kind string) (*ChatRecord, error) {
	now := s.now()
	id, err := uuidgen.NewMessageID(now)
	if err != nil {
		return nil, err
	}

	message := models.Message{
		ID:        id,
		EventID:   eventID,
		UserID:    authorID,
		Content:   body,
		Type:      kind,
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	var author models.User
	result := s.db.WithContext(ctx).Select("id", "name").Where("id = ?", authorID).Limit(1).Find(&author)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load message author: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		author.ID = authorID
	}
	message.User = author

	record := toChatRecord(message)
	return &record, nil
}

// RecentHistory returns the newest limit records of eventID, oldest first.
// Records sharing a timestamp are ordered by their ULID.
func (s *GormHistoryStore) RecentHistory(ctx context.Context, eventID string, limit int) ([]ChatRecord, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Preload("User", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "name") }).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", eventID, err)
	}

	records := make([]ChatRecord, len(messages))
	for i, message := range messages {
		records[len(messages)-1-i] = toChatRecord(message)
	}
	return records, nil
}

func toChatRecord(m models.Message) ChatRecord {
	return ChatRecord{
		ID:        m.ID,
		EventID:   m.EventID,
		User:      ChatUser{ID: m.UserID, Name: m.User.Name},
		Content:   m.Content,
		Type:      m.Type,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
