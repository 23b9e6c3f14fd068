// Package models - hooks.go contains GORM lifecycle hooks for validation.
// They stand in for CHECK constraints so SQLite and PostgreSQL behave the same.
package models

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/eventhub/eventchat/internal/uuidgen"
	"gorm.io/gorm"
)

// MaxMessageLength is the column width of messages.content in characters
const MaxMessageLength = 1000

// MaxReportDescriptionLength is the column width of reports.description
const MaxReportDescriptionLength = 500

// --- Message Hooks ---

// BeforeSave validates Message before create or update
func (m *Message) BeforeSave(tx *gorm.DB) error {
	if m.EventID == "" || m.UserID == "" {
		return fmt.Errorf("message requires event and user")
	}
	if m.Content == "" {
		return fmt.Errorf("message content is required")
	}
	if utf8.RuneCountInString(m.Content) > MaxMessageLength {
		return fmt.Errorf("message cannot exceed %d characters", MaxMessageLength)
	}
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	if m.Type != MessageTypeText && m.Type != MessageTypeSystem {
		return fmt.Errorf("invalid message type: %s", m.Type)
	}
	return nil
}

// --- Report Hooks ---

// BeforeCreate assigns a time-ordered id
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		id, err := uuidgen.NewForEntity(uuidgen.EntityTypeReport)
		if err != nil {
			return err
		}
		r.ID = id.String()
	}
	return nil
}

// BeforeSave validates Report before create or update
func (r *Report) BeforeSave(tx *gorm.DB) error {
	if !slices.Contains(ReportReasons, r.Reason) {
		return fmt.Errorf("invalid report reason: %s", r.Reason)
	}
	if r.Description == "" {
		return fmt.Errorf("description is required")
	}
	if utf8.RuneCountInString(r.Description) > MaxReportDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxReportDescriptionLength)
	}
	if r.Status == "" {
		r.Status = ReportStatusPending
	}
	return nil
}
