package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/eventhub/eventchat/auth/db"
	"github.com/eventhub/eventchat/internal/slogging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// TokenBlacklist manages revoked JWT tokens using Redis
type TokenBlacklist struct {
	redis *redis.Client
	keys  *db.RedisKeyBuilder
}

// NewTokenBlacklist creates a new token blacklist service
func NewTokenBlacklist(redisClient *redis.Client) *TokenBlacklist {
	slogging.Get().Info("Initializing token blacklist service")
	return &TokenBlacklist{
		redis: redisClient,
		keys:  db.NewRedisKeyBuilder(),
	}
}

// BlacklistToken stores the token hash until the token would have expired.
// The caller has already verified the token; only its exp claim is read here.
func (tb *TokenBlacklist) BlacklistToken(ctx context.Context, tokenString string) error {
	logger := slogging.Get()

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fmt.Errorf("token missing expiration")
	}

	ttl := time.Until(exp.Time)
	if ttl <= 0 {
		logger.Debug("Token already expired, skipping blacklist expiration_time=%v", exp.Time)
		return nil
	}

	tokenHash := tb.hashToken(tokenString)
	if err := tb.redis.Set(ctx, tb.keys.BlacklistTokenKey(tokenHash), "blacklisted", ttl).Err(); err != nil {
		logger.Error("Failed to store token in blacklist token_hash=%v error=%v", tokenHash[:16]+"...", err)
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	logger.Info("Token blacklisted token_hash=%v ttl_seconds=%v", tokenHash[:16]+"...", int(ttl.Seconds()))
	return nil
}

// IsTokenBlacklisted checks if a JWT token is blacklisted
func (tb *TokenBlacklist) IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error) {
	exists, err := tb.redis.Exists(ctx, tb.keys.BlacklistTokenKey(tb.hashToken(tokenString))).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return exists > 0, nil
}

// hashToken creates a SHA-256 hash of the token for storage
func (tb *TokenBlacklist) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
