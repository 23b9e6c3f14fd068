package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth/db"
	"github.com/eventhub/eventchat/internal/slogging"
)

// GormMembershipStore answers membership questions from the events and
// event_participants tables. When a redis client is set, answers are cached
// for ttl and invalidated on registration.
type GormMembershipStore struct {
	db    *gorm.DB
	cache *redis.Client
	keys  *db.RedisKeyBuilder
	ttl   time.Duration
}

// NewGormMembershipStore creates a membership store. cache may be nil.
func NewGormMembershipStore(gdb *gorm.DB, cache *redis.Client, ttl time.Duration) *GormMembershipStore {
	return &GormMembershipStore{
		db:    gdb,
		cache: cache,
		keys:  db.NewRedisKeyBuilder(),
		ttl:   ttl,
	}
}

// GetEvent loads one event or returns ErrEventNotFound
func (s *GormMembershipStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	if eventID == "" {
		return nil, ErrEventNotFound
	}
	var event models.Event
	err := s.db.WithContext(ctx).Where("id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}
	return &event, nil
}

// IsFullMember reports whether userID created or registered for eventID
func (s *GormMembershipStore) IsFullMember(ctx context.Context, eventID, userID string) (bool, error) {
	if cached, ok := s.cachedMembership(ctx, eventID, userID); ok {
		return cached, nil
	}

	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return false, err
	}

	full := event.CreatorID == userID
	if !full {
		var count int64
		err := s.db.WithContext(ctx).Model(&models.EventParticipant{}).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Count(&count).Error
		if err != nil {
			return false, fmt.Errorf("failed to check participation: %w", err)
		}
		full = count > 0
	}

	s.storeMembership(ctx, eventID, userID, full)
	return full, nil
}

// InvalidateMembership drops the cached answer for one user and event
func (s *GormMembershipStore) InvalidateMembership(ctx context.Context, eventID, userID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, s.keys.MembershipKey(eventID, userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate membership cache: %w", err)
	}
	return nil
}

// The cache is advisory: redis failures fall through to the database.
func (s *GormMembershipStore) cachedMembership(ctx context.Context, eventID, userID string) (bool, bool) {
	if s.cache == nil {
		return false, false
	}
	value, err := s.cache.Get(ctx, s.keys.MembershipKey(eventID, userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slogging.Get().Warn("Membership cache read failed: %v", err)
		}
		return false, false
	}
	return value == "1", true
}

func (s *GormMembershipStore) storeMembership(ctx context.Context, eventID, userID string, full bool) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	value := "0"
	if full {
		value = "1"
	}
	if err := s.cache.Set(ctx, s.keys.MembershipKey(eventID, userID), value, s.ttl).Err(); err != nil {
		slogging.Get().Warn("Membership cache write failed: %v", err)
	}
}
