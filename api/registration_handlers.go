package api

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/crypto"
	"github.com/eventhub/eventchat/internal/slogging"
)

const (
	// InternalTokenHeader carries the shared secret of the registration hook
	InternalTokenHeader = "X-Internal-Token"
	// SignatureHeader carries an HMAC-SHA256 of the body keyed by the same secret
	SignatureHeader = "X-Signature-256"

	maxHookBodyBytes = 64 * 1024
)

// RegistrationHookHandler is called by the event API after a user registers
type RegistrationHookHandler struct {
	events   EventDirectory
	users    auth.UserLookup
	cache    MembershipCache
	notifier *Notifier
	token    string
}

// NewRegistrationHookHandler creates the hook handler guarded by token
func NewRegistrationHookHandler(events EventDirectory, users auth.UserLookup, cache MembershipCache, notifier *Notifier, token string) *RegistrationHookHandler {
	return &RegistrationHookHandler{
		events:   events,
		users:    users,
		cache:    cache,
		notifier: notifier,
		token:    token,
	}
}

type registrationRequest struct {
	UserID string `json:"userId"`
}

// RequireInternalToken rejects requests that neither present the shared hook
// secret nor sign their body with it
func (h *RegistrationHookHandler) RequireInternalToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.token == "" {
			respondError(c, http.StatusUnauthorized, "Not authorized")
			return
		}

		if presented := c.GetHeader(InternalTokenHeader); presented != "" {
			if subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) != 1 {
				respondError(c, http.StatusUnauthorized, "Not authorized")
				return
			}
			c.Next()
			return
		}

		signature := c.GetHeader(SignatureHeader)
		if signature == "" {
			respondError(c, http.StatusUnauthorized, "Not authorized")
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxHookBodyBytes))
		if err != nil {
			respondError(c, http.StatusBadRequest, "Unreadable body")
			return
		}
		if !crypto.VerifyHMACSignature(body, signature, h.token) {
			respondError(c, http.StatusUnauthorized, "Not authorized")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// HandleRegistration handles POST /api/internal/events/:eventId/registrations
func (h *RegistrationHookHandler) HandleRegistration(c *gin.Context) {
	logger := slogging.Get().WithContext(c)

	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		respondError(c, http.StatusBadRequest, "userId is required")
		return
	}

	ctx := c.Request.Context()
	eventID := c.Param("eventId")
	event, err := h.events.GetEvent(ctx, eventID)
	if errors.Is(err, ErrEventNotFound) {
		respondError(c, http.StatusNotFound, MsgEventNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to load event %s: %v", eventID, err)
		respondError(c, http.StatusInternalServerError, MsgInternalError)
		return
	}

	user, err := h.users.LookupIdentity(ctx, req.UserID)
	if errors.Is(err, auth.ErrUserNotFound) {
		respondError(c, http.StatusNotFound, MsgUserNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to load user %s: %v", req.UserID, err)
		respondError(c, http.StatusInternalServerError, MsgInternalError)
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateMembership(ctx, eventID, user.ID); err != nil {
			logger.Warn("Membership cache not invalidated for %s/%s: %v", eventID, user.ID, err)
		}
	}

	delivered := h.notifier.NotifyEventRegistration(ctx, event, user)
	c.JSON(http.StatusOK, gin.H{"success": true, "delivered": delivered})
}
