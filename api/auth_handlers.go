package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
)

// LogoutHandler revokes the caller's bearer token
type LogoutHandler struct {
	revoker TokenRevoker
}

// NewLogoutHandler creates a logout handler. revoker may be nil when redis is disabled.
func NewLogoutHandler(revoker TokenRevoker) *LogoutHandler {
	return &LogoutHandler{revoker: revoker}
}

// Logout handles POST /api/auth/logout
func (h *LogoutHandler) Logout(c *gin.Context) {
	if h.revoker == nil {
		respondError(c, http.StatusNotImplemented, "Token revocation is not configured")
		return
	}

	token := c.GetString(auth.TokenContextKey)
	if err := h.revoker.BlacklistToken(c.Request.Context(), token); err != nil {
		slogging.Get().WithContext(c).Error("Failed to revoke token: %v", err)
		respondError(c, http.StatusInternalServerError, MsgInternalError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}
