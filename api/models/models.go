// Package models defines GORM models for the event chat database schema.
// The same models run on PostgreSQL and SQLite.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Message kinds
const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

// Report reasons and statuses
const (
	ReportStatusPending  = "pending"
	ReportStatusReviewed = "reviewed"
	ReportStatusResolved = "resolved"
)

// ReportReasons lists the accepted values for Report.Reason
var ReportReasons = []string{"inappropriate", "spam", "misleading", "offensive", "other"}

// User represents an account known to the event API
type User struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	Name      string    `gorm:"column:name;type:varchar(255);not null"`
	Email     string    `gorm:"column:email;type:varchar(255);not null;uniqueIndex"`
	Role      string    `gorm:"column:role;type:varchar(16);not null;default:user;index"`
	IsBlocked bool      `gorm:"column:is_blocked;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate generates a UUID if not set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// Event is the room a chat belongs to
type Event struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	Title     string    `gorm:"column:title;type:varchar(255);not null"`
	CreatorID string    `gorm:"column:creator_id;type:varchar(36);not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`

	// Relationships
	Creator      User               `gorm:"foreignKey:CreatorID;references:ID"`
	Participants []EventParticipant `gorm:"foreignKey:EventID"`
}

// TableName specifies the table name for Event
func (Event) TableName() string {
	return "events"
}

// BeforeCreate generates a UUID if not set
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// EventParticipant is a confirmed registration for an event
type EventParticipant struct {
	EventID   string    `gorm:"column:event_id;primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"column:user_id;primaryKey;type:varchar(36);index"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for EventParticipant
func (EventParticipant) TableName() string {
	return "event_participants"
}

// Message is one persisted chat record. IDs are ULIDs assigned by the history store.
type Message struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(26)"`
	EventID   string    `gorm:"column:event_id;type:varchar(36);not null;index:idx_messages_event_created,priority:1"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);not null"`
	Content   string    `gorm:"column:content;type:varchar(1000);not null"`
	Type      string    `gorm:"column:type;type:varchar(16);not null;default:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_messages_event_created,priority:2"`

	// Relationships
	User User `gorm:"foreignKey:UserID;references:ID"`
}

// TableName specifies the table name for Message
func (Message) TableName() string {
	return "messages"
}

// Report is a moderation report filed against an event
type Report struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	EventID     string    `gorm:"column:event_id;type:varchar(36);not null;index"`
	ReporterID  string    `gorm:"column:reporter_id;type:varchar(36);not null"`
	Reason      string    `gorm:"column:reason;type:varchar(32);not null"`
	Description string    `gorm:"column:description;type:varchar(500);not null"`
	Status      string    `gorm:"column:status;type:varchar(16);not null;default:pending"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

// TableName specifies the table name for Report
func (Report) TableName() string {
	return "reports"
}

// AllModels returns every model for auto-migration, parents first
func AllModels() []any {
	return []any{
		&User{},
		&Event{},
		&EventParticipant{},
		&Message{},
		&Report{},
	}
}
