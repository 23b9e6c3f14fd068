package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
)

// ChatHandler serves chat history and posting over REST
type ChatHandler struct {
	hub        *ChatHub
	membership MembershipStore
	history    HistoryStore
	limit      int
	timeout    time.Duration
}

// NewChatHandler creates the REST chat handler. limit caps GET results.
func NewChatHandler(hub *ChatHub, membership MembershipStore, history HistoryStore, limit int) *ChatHandler {
	if limit <= 0 {
		limit = 100
	}
	return &ChatHandler{
		hub:        hub,
		membership: membership,
		history:    history,
		limit:      limit,
		timeout:    hub.cfg.CollaboratorTimeout,
	}
}

type postMessageRequest struct {
	Content string `json:"content"`
}

// checkFullMember writes the error response and returns false unless the
// caller may read and write eventID
func (h *ChatHandler) checkFullMember(c *gin.Context, identity *auth.Identity, eventID, denied string) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	full, err := h.membership.IsFullMember(ctx, eventID, identity.ID)
	switch {
	case errors.Is(err, ErrEventNotFound):
		respondError(c, http.StatusNotFound, MsgEventNotFound)
		return false
	case err != nil:
		slogging.Get().WithContext(c).Error("Membership check failed for %s: %v", eventID, err)
		respondError(c, http.StatusInternalServerError, MsgInternalError)
		return false
	case !full:
		respondError(c, http.StatusForbidden, denied)
		return false
	}
	return true
}

// GetMessages handles GET /api/chat/:eventId
func (h *ChatHandler) GetMessages(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized, no token")
		return
	}
	eventID := c.Param("eventId")
	if !h.checkFullMember(c, identity, eventID, "You must be registered for this event to view messages") {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	records, err := h.history.RecentHistory(ctx, eventID, h.limit)
	if err != nil {
		slogging.Get().WithContext(c).Error("Failed to load messages for %s: %v", eventID, err)
		respondError(c, http.StatusInternalServerError, MsgInternalError)
		return
	}
	if records == nil {
		records = []ChatRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(records),
		"data":    records,
	})
}

// PostMessage handles POST /api/chat/:eventId
func (h *ChatHandler) PostMessage(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, MsgInvalidContent)
		return
	}

	eventID := c.Param("eventId")
	if !h.checkFullMember(c, identity, eventID, "You must be registered for this event to send messages") {
		return
	}

	record, err := h.hub.PostMessage(c.Request.Context(), identity, eventID, req.Content)
	switch {
	case errors.Is(err, ErrInvalidContent):
		respondError(c, http.StatusBadRequest, MsgInvalidContent)
		return
	case err != nil:
		slogging.Get().WithContext(c).Error("Failed to post message to %s: %v", eventID, err)
		respondError(c, http.StatusInternalServerError, MsgSendFailed)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": record})
}
