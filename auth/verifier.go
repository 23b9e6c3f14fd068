package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventhub/eventchat/internal/slogging"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is a verified user as seen by the chat core
type Identity struct {
	ID      string
	Name    string
	Role    string
	Blocked bool
}

// IsAdmin reports whether the identity has the admin role
func (i *Identity) IsAdmin() bool {
	return i.Role == "admin"
}

// UserLookup resolves a user id from a token. It returns ErrUserNotFound when
// no such user exists.
type UserLookup interface {
	LookupIdentity(ctx context.Context, userID string) (*Identity, error)
}

// Revocations reports whether a token was explicitly revoked
type Revocations interface {
	IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error)
}

// Claims carries the user id under "id", matching the tokens the event API issues
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// JWTConfig is the subset of configuration the verifier needs
type JWTConfig struct {
	Secret        string
	SigningMethod string
}

// JWTVerifier verifies bearer tokens and resolves them to identities
type JWTVerifier struct {
	secret        []byte
	signingMethod jwt.SigningMethod
	users         UserLookup
	revocations   Revocations
}

// NewJWTVerifier builds a verifier. revocations may be nil when redis is disabled.
func NewJWTVerifier(cfg JWTConfig, users UserLookup, revocations Revocations) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	method := jwt.GetSigningMethod(cfg.SigningMethod)
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method: %s", cfg.SigningMethod)
	}
	if users == nil {
		return nil, fmt.Errorf("user lookup is required")
	}

	slogging.Get().Info("Initializing JWT verifier with %s", method.Alg())
	return &JWTVerifier{
		secret:        []byte(cfg.Secret),
		signingMethod: method,
		users:         users,
		revocations:   revocations,
	}, nil
}

// ParseToken validates signature and expiry and returns the claims
func (v *JWTVerifier) ParseToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != v.signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v (expected %v)", token.Header["alg"], v.signingMethod.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyIdentity resolves a bearer token to an identity. Blocked users are
// reported as ErrUserBlocked together with the identity.
func (v *JWTVerifier) VerifyIdentity(ctx context.Context, tokenString string) (*Identity, error) {
	claims, err := v.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	if v.revocations != nil {
		revoked, err := v.revocations.IsTokenBlacklisted(ctx, tokenString)
		if err != nil {
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenRevoked)
		}
	}

	identity, err := v.users.LookupIdentity(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if identity.Blocked {
		return identity, ErrUserBlocked
	}
	return identity, nil
}

// IssueToken signs a token for userID. Used by the dev token tool and tests.
func (v *JWTVerifier) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(v.signingMethod, claims).SignedString(v.secret)
}

// IsAuthError reports whether err is a credential problem rather than a dependency failure
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrUserBlocked)
}
