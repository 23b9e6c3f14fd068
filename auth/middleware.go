package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/eventhub/eventchat/internal/slogging"
	"github.com/gin-gonic/gin"
)

// Keys set on the gin context by the middleware
const (
	IdentityContextKey = "identity"
	UserIDContextKey   = "userID"
	TokenContextKey    = "bearerToken"
)

// IdentityVerifier is what the middleware needs from a verifier
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, tokenString string) (*Identity, error)
}

// Middleware provides bearer authentication for Gin
type Middleware struct {
	verifier IdentityVerifier
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(verifier IdentityVerifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// AuthRequired rejects requests without a valid bearer token for an unblocked user
func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := slogging.Get().WithContext(c)

		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			logger.Warn("Authentication failed: missing or malformed authorization header client_ip=%v", c.ClientIP())
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Not authorized, no token",
			})
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		identity, err := m.verifier.VerifyIdentity(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			message := "Not authorized, token failed"
			switch {
			case errors.Is(err, ErrUserBlocked):
				status = http.StatusForbidden
				message = "User is blocked"
			case !IsAuthError(err):
				status = http.StatusInternalServerError
				message = "Authentication unavailable"
			}
			logger.Warn("Authentication failed client_ip=%v error=%v", c.ClientIP(), err)
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
			return
		}

		c.Set(IdentityContextKey, identity)
		c.Set(UserIDContextKey, identity.ID)
		c.Set(TokenContextKey, tokenString)
		c.Next()
	}
}

// RequireAdmin must run after AuthRequired
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok || !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Admin access required",
			})
			return
		}
		c.Next()
	}
}

// IdentityFromContext returns the identity stored by AuthRequired
func IdentityFromContext(c *gin.Context) (*Identity, bool) {
	value, exists := c.Get(IdentityContextKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*Identity)
	return identity, ok
}
