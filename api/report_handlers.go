package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
)

// ReportHandler accepts moderation reports and alerts online admins
type ReportHandler struct {
	reports  ReportStore
	events   EventDirectory
	notifier *Notifier
}

// NewReportHandler creates the report handler
func NewReportHandler(reports ReportStore, events EventDirectory, notifier *Notifier) *ReportHandler {
	return &ReportHandler{reports: reports, events: events, notifier: notifier}
}

type createReportRequest struct {
	Event       string `json:"event"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// ReportResponse is the REST form of a report
type ReportResponse struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	ReporterID  string    `json:"reporterId"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateReport handles POST /api/reports
func (h *ReportHandler) CreateReport(c *gin.Context) {
	logger := slogging.Get().WithContext(c)
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized, no token")
		return
	}

	var req createReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid report")
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	switch {
	case req.Event == "":
		respondError(c, http.StatusBadRequest, "Event is required")
		return
	case !slices.Contains(models.ReportReasons, req.Reason):
		respondError(c, http.StatusBadRequest, "Invalid report reason")
		return
	case req.Description == "":
		respondError(c, http.StatusBadRequest, "Description is required")
		return
	case utf8.RuneCountInString(req.Description) > models.MaxReportDescriptionLength:
		respondError(c, http.StatusBadRequest, "Description cannot exceed 500 characters")
		return
	}

	ctx := c.Request.Context()
	event, err := h.events.GetEvent(ctx, req.Event)
	if errors.Is(err, ErrEventNotFound) {
		respondError(c, http.StatusNotFound, MsgEventNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to load event %s for report: %v", req.Event, err)
		respondError(c, http.StatusInternalServerError, MsgInternalError)
		return
	}

	report := &models.Report{
		EventID:     event.ID,
		ReporterID:  identity.ID,
		Reason:      req.Reason,
		Description: req.Description,
	}
	if err := h.reports.Create(ctx, report); err != nil {
		logger.Error("Failed to create report: %v", err)
		respondError(c, http.StatusInternalServerError, MsgInternalError)
		return
	}

	delivered, err := h.notifier.NotifyAdminsOfReport(ctx, report, event.Title, identity.Name)
	if err != nil {
		logger.Warn("Report %s saved but admins were not notified: %v", report.ID, err)
	} else {
		logger.Info("Report %s notified %d admins", report.ID, delivered)
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": ReportResponse{
		ID:          report.ID,
		EventID:     report.EventID,
		ReporterID:  report.ReporterID,
		Reason:      report.Reason,
		Description: report.Description,
		Status:      report.Status,
		CreatedAt:   report.CreatedAt.UTC(),
	}})
}
