package api

import (
	"context"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth"
)

// IdentityVerifier turns a bearer credential into an identity.
// Credential problems are reported with the auth package sentinels.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, token string) (*auth.Identity, error)
}

// MembershipStore reports whether a user is the creator or a confirmed
// participant of an event. Unknown events yield ErrEventNotFound.
type MembershipStore interface {
	IsFullMember(ctx context.Context, eventID, userID string) (bool, error)
}

// HistoryStore persists and loads chat records
type HistoryStore interface {
	AppendHistory(ctx context.Context, eventID, authorID, body, kind string) (*ChatRecord, error)
	// RecentHistory returns the newest limit records, oldest first
	RecentHistory(ctx context.Context, eventID string, limit int) ([]ChatRecord, error)
}

// EventDirectory loads event metadata for notifications and REST checks
type EventDirectory interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
}

// UserDirectory lists users by role for targeted notifications
type UserDirectory interface {
	ListAdminIDs(ctx context.Context) ([]string, error)
}

// ReportStore persists moderation reports
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
}

// MembershipCache drops cached membership answers after a registration
type MembershipCache interface {
	InvalidateMembership(ctx context.Context, eventID, userID string) error
}

// TokenRevoker blacklists a bearer token until it expires
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, token string) error
}
