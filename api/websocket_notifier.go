package api

import (
	"context"
	"fmt"
	"time"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
	"github.com/eventhub/eventchat/internal/telemetry"
)

// Notifier delivers server-originated frames to identities, rooms or everyone.
// Delivery is best effort: offline targets are skipped.
type Notifier struct {
	registry  *ConnectionRegistry
	router    *RoomRouter
	directory UserDirectory
	metrics   *telemetry.ChatMetrics
	timeout   time.Duration
	now       func() time.Time
}

// NewNotifier creates a notifier over the given registry and router
func NewNotifier(registry *ConnectionRegistry, router *RoomRouter, directory UserDirectory, metrics *telemetry.ChatMetrics, timeout time.Duration) *Notifier {
	return &Notifier{
		registry:  registry,
		router:    router,
		directory: directory,
		metrics:   metrics,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Unicast sends one frame to the live connection of identityID
func (n *Notifier) Unicast(identityID, messageType string, payload any) bool {
	conn, ok := n.registry.Get(identityID)
	if !ok {
		return false
	}
	data, err := encodeFrame(messageType, payload)
	if err != nil {
		slogging.Get().Error("Failed to encode %s frame for %s: %v", messageType, identityID, err)
		return false
	}
	return conn.Send(data)
}

// BroadcastRoom sends one frame to every member of roomID except excludeID.
// Callers that need ordering with persisted history hold the room lock.
func (n *Notifier) BroadcastRoom(ctx context.Context, roomID, messageType string, payload any, excludeID string) int {
	data, err := encodeFrame(messageType, payload)
	if err != nil {
		slogging.Get().Error("Failed to encode %s frame for room %s: %v", messageType, roomID, err)
		return 0
	}
	delivered := deliver(n.router.MembersOf(roomID), data, excludeID)
	n.metrics.RecordBroadcast(ctx, messageType, delivered)
	return delivered
}

// BroadcastAll sends one frame to every registered connection except excludeID
func (n *Notifier) BroadcastAll(ctx context.Context, messageType string, payload any, excludeID string) int {
	data, err := encodeFrame(messageType, payload)
	if err != nil {
		slogging.Get().Error("Failed to encode %s frame: %v", messageType, err)
		return 0
	}
	delivered := deliver(n.registry.Snapshot(), data, excludeID)
	n.metrics.RecordBroadcast(ctx, messageType, delivered)
	return delivered
}

func deliver(conns []*Connection, data []byte, excludeIDs ...string) int {
	delivered := 0
	for _, conn := range conns {
		if !conn.IsOpen() || isExcluded(conn.UserID(), excludeIDs) {
			continue
		}
		if conn.Send(data) {
			delivered++
		}
	}
	return delivered
}

func isExcluded(userID string, excludeIDs []string) bool {
	for _, id := range excludeIDs {
		if id != "" && id == userID {
			return true
		}
	}
	return false
}

// NotifyEventRegistration tells the event creator and the event room that
// user registered for event. The registering user is not notified and the
// creator receives the frame once even when also in the room.
func (n *Notifier) NotifyEventRegistration(ctx context.Context, event *models.Event, user *auth.Identity) int {
	payload := EventRegistrationNotification{
		Type:       NotificationEventRegistration,
		EventID:    event.ID,
		EventTitle: event.Title,
		UserName:   user.Name,
		UserID:     user.ID,
		Timestamp:  n.now(),
	}

	data, err := encodeFrame(MessageTypeNotification, payload)
	if err != nil {
		slogging.Get().Error("Failed to encode registration notification for event %s: %v", event.ID, err)
		return 0
	}

	delivered := 0
	if event.CreatorID != "" && event.CreatorID != user.ID {
		if conn, ok := n.registry.Get(event.CreatorID); ok && conn.Send(data) {
			delivered++
		}
	}

	unlock := n.router.LockRoom(event.ID)
	delivered += deliver(n.router.MembersOf(event.ID), data, user.ID, event.CreatorID)
	unlock()

	n.metrics.NotificationSent(ctx, NotificationEventRegistration, delivered)
	slogging.Get().Debug("Registration notification for event %s delivered to %d connections", event.ID, delivered)
	return delivered
}

// NotifyAdminsOfReport unicasts a new_report notification to every online admin
func (n *Notifier) NotifyAdminsOfReport(ctx context.Context, report *models.Report, eventTitle, reporterName string) (int, error) {
	if n.directory == nil {
		return 0, fmt.Errorf("no user directory configured")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	start := time.Now()
	adminIDs, err := n.directory.ListAdminIDs(lookupCtx)
	n.metrics.ObserveCollaborator(ctx, "list_admins", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to list admins: %w", err)
	}

	payload := ReportNotification{
		Type:         NotificationNewReport,
		ReportID:     report.ID,
		EventID:      report.EventID,
		EventTitle:   eventTitle,
		ReporterName: reporterName,
		Reason:       report.Reason,
		Timestamp:    n.now(),
	}

	delivered := 0
	for _, adminID := range adminIDs {
		if n.Unicast(adminID, MessageTypeNotification, payload) {
			delivered++
		}
	}
	n.metrics.NotificationSent(ctx, NotificationNewReport, delivered)
	return delivered, nil
}
