package db

import "fmt"

// RedisKeyBuilder provides methods to build Redis keys following the defined patterns
type RedisKeyBuilder struct{}

// NewRedisKeyBuilder creates a new Redis key builder
func NewRedisKeyBuilder() *RedisKeyBuilder {
	return &RedisKeyBuilder{}
}

// BlacklistTokenKey builds a token blacklist key from a token hash
func (b *RedisKeyBuilder) BlacklistTokenKey(tokenHash string) string {
	return fmt.Sprintf("blacklist:token:%s", tokenHash)
}

// MembershipKey builds the cached access level key for one user in one event
func (b *RedisKeyBuilder) MembershipKey(eventID, userID string) string {
	return fmt.Sprintf("cache:membership:%s:%s", eventID, userID)
}

// EventKey builds the cached existence key for an event
func (b *RedisKeyBuilder) EventKey(eventID string) string {
	return fmt.Sprintf("cache:event:%s", eventID)
}

// MembershipPattern matches every cached membership entry for an event
func (b *RedisKeyBuilder) MembershipPattern(eventID string) string {
	return fmt.Sprintf("cache:membership:%s:*", eventID)
}
