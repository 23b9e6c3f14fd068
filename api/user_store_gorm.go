package api

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth"
)

// GormUserStore reads accounts from the users table
type GormUserStore struct {
	db *gorm.DB
}

// NewGormUserStore creates a user store on db
func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

// LookupIdentity loads the identity for userID or returns auth.ErrUserNotFound
func (s *GormUserStore) LookupIdentity(ctx context.Context, userID string) (*auth.Identity, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	return &auth.Identity{
		ID:      user.ID,
		Name:    user.Name,
		Role:    user.Role,
		Blocked: user.IsBlocked,
	}, nil
}

// ListAdminIDs returns the ids of every admin account
func (s *GormUserStore) ListAdminIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return ids, nil
}
