package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ChatMetrics holds the instruments for the realtime chat core. A nil
// *ChatMetrics is valid and records nothing.
type ChatMetrics struct {
	tracer trace.Tracer

	connectionsActive   metric.Int64UpDownCounter
	connectionDuration  metric.Float64Histogram
	authAttempts        metric.Int64Counter
	framesTotal         metric.Int64Counter
	frameDuration       metric.Float64Histogram
	roomMembers         metric.Int64UpDownCounter
	messagesPersisted   metric.Int64Counter
	broadcastRecipients metric.Int64Histogram
	slowConsumers       metric.Int64Counter
	collaboratorLatency metric.Float64Histogram
	notificationsSent   metric.Int64Counter
}

// NewChatMetrics creates every instrument on the given meter
func NewChatMetrics(tracer trace.Tracer, meter metric.Meter) (*ChatMetrics, error) {
	m := &ChatMetrics{tracer: tracer}
	var err error

	if m.connectionsActive, err = meter.Int64UpDownCounter(
		"chat_connections_active",
		metric.WithDescription("Number of open WebSocket connections"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create connections gauge: %w", err)
	}

	if m.connectionDuration, err = meter.Float64Histogram(
		"chat_connection_duration_seconds",
		metric.WithDescription("Lifetime of WebSocket connections"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 300, 600, 1800, 3600),
	); err != nil {
		return nil, fmt.Errorf("failed to create connection duration histogram: %w", err)
	}

	if m.authAttempts, err = meter.Int64Counter(
		"chat_auth_attempts_total",
		metric.WithDescription("Authentication frames by outcome"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create auth counter: %w", err)
	}

	if m.framesTotal, err = meter.Int64Counter(
		"chat_frames_total",
		metric.WithDescription("Inbound frames by type and status"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create frame counter: %w", err)
	}

	if m.frameDuration, err = meter.Float64Histogram(
		"chat_frame_duration_seconds",
		metric.WithDescription("Time spent handling one inbound frame"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5),
	); err != nil {
		return nil, fmt.Errorf("failed to create frame duration histogram: %w", err)
	}

	if m.roomMembers, err = meter.Int64UpDownCounter(
		"chat_room_memberships_active",
		metric.WithDescription("Connection to room edges currently held by the router"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create room membership gauge: %w", err)
	}

	if m.messagesPersisted, err = meter.Int64Counter(
		"chat_messages_persisted_total",
		metric.WithDescription("Chat messages written to history"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create message counter: %w", err)
	}

	if m.broadcastRecipients, err = meter.Int64Histogram(
		"chat_broadcast_recipients",
		metric.WithDescription("Recipients per fan-out"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50, 100, 250, 1000),
	); err != nil {
		return nil, fmt.Errorf("failed to create broadcast histogram: %w", err)
	}

	if m.slowConsumers, err = meter.Int64Counter(
		"chat_slow_consumer_disconnects_total",
		metric.WithDescription("Connections closed because their send buffer was full"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create slow consumer counter: %w", err)
	}

	if m.collaboratorLatency, err = meter.Float64Histogram(
		"chat_collaborator_duration_seconds",
		metric.WithDescription("Latency of identity, membership and history calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	); err != nil {
		return nil, fmt.Errorf("failed to create collaborator histogram: %w", err)
	}

	if m.notificationsSent, err = meter.Int64Counter(
		"chat_notifications_total",
		metric.WithDescription("Targeted notifications by kind"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create notification counter: %w", err)
	}

	return m, nil
}

// ConnectionOpened increments the open connection gauge and returns the close hook
func (m *ChatMetrics) ConnectionOpened(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	m.connectionsActive.Add(ctx, 1)
	return func() {
		m.connectionsActive.Add(ctx, -1)
		m.connectionDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// RecordAuth counts one auth frame, outcome is "success" or an error kind
func (m *ChatMetrics) RecordAuth(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// TraceFrame starts a span for one inbound frame. The returned func ends the
// span and records the frame counter and duration.
func (m *ChatMetrics) TraceFrame(ctx context.Context, frameType string) (context.Context, func(err error)) {
	if m == nil {
		return ctx, func(error) {}
	}
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "ws."+frameType,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("ws.frame_type", frameType)),
	)

	return ctx, func(err error) {
		defer span.End()

		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		attrs := metric.WithAttributes(
			attribute.String("frame_type", frameType),
			attribute.String("status", status),
		)
		m.framesTotal.Add(ctx, 1, attrs)
		m.frameDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// RoomJoined and RoomLeft track router edges
func (m *ChatMetrics) RoomJoined(ctx context.Context) {
	if m == nil {
		return
	}
	m.roomMembers.Add(ctx, 1)
}

func (m *ChatMetrics) RoomLeft(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.roomMembers.Add(ctx, -int64(n))
}

// MessagePersisted counts a stored chat message
func (m *ChatMetrics) MessagePersisted(ctx context.Context) {
	if m == nil {
		return
	}
	m.messagesPersisted.Add(ctx, 1)
}

// RecordBroadcast records the fan-out size for one outbound frame type
func (m *ChatMetrics) RecordBroadcast(ctx context.Context, frameType string, recipients int) {
	if m == nil {
		return
	}
	m.broadcastRecipients.Record(ctx, int64(recipients),
		metric.WithAttributes(attribute.String("frame_type", frameType)))
}

// SlowConsumerDropped counts a connection closed on a full send buffer
func (m *ChatMetrics) SlowConsumerDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.slowConsumers.Add(ctx, 1)
}

// ObserveCollaborator records one dependency call
func (m *ChatMetrics) ObserveCollaborator(ctx context.Context, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.collaboratorLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

// NotificationSent counts a targeted notification
func (m *ChatMetrics) NotificationSent(ctx context.Context, kind string, recipients int) {
	if m == nil {
		return
	}
	m.notificationsSent.Add(ctx, int64(recipients), metric.WithAttributes(attribute.String("kind", kind)))
}
