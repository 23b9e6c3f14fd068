package api

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/eventhub/eventchat/api/models"
)

// GormReportStore persists moderation reports
type GormReportStore struct {
	db *gorm.DB
}

// NewGormReportStore creates a report store on db
func NewGormReportStore(db *gorm.DB) *GormReportStore {
	return &GormReportStore{db: db}
}

// Create inserts report; hooks assign the id and validate the reason
func (s *GormReportStore) Create(ctx context.Context, report *models.Report) error {
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}
