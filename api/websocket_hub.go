package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
	"github.com/eventhub/eventchat/internal/telemetry"
	"github.com/eventhub/eventchat/internal/uuidgen"
)

// HubConfig holds the tunables of the real-time core
type HubConfig struct {
	HistoryLimit        int
	MaxMessageLength    int
	CollaboratorTimeout time.Duration
	SendBufferSize      int
	ReadLimitBytes      int64
	PongWait            time.Duration
	PingPeriod          time.Duration
	WriteWait           time.Duration
	AllowedOrigins      []string
	FrameLogging        slogging.WebSocketLoggingConfig
}

// DefaultHubConfig returns the production defaults
func DefaultHubConfig() HubConfig {
	return HubConfig{
		HistoryLimit:        50,
		MaxMessageLength:    models.MaxMessageLength,
		CollaboratorTimeout: 5 * time.Second,
		SendBufferSize:      256,
		ReadLimitBytes:      16 * 1024,
		PongWait:            60 * time.Second,
		PingPeriod:          54 * time.Second,
		WriteWait:           10 * time.Second,
	}
}

func (c HubConfig) withDefaults() HubConfig {
	defaults := DefaultHubConfig()
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaults.HistoryLimit
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = defaults.MaxMessageLength
	}
	if c.CollaboratorTimeout <= 0 {
		c.CollaboratorTimeout = defaults.CollaboratorTimeout
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = defaults.SendBufferSize
	}
	if c.PongWait <= 0 {
		c.PongWait = defaults.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaults.WriteWait
	}
	return c
}

// HubDependencies are the collaborators the hub calls out to
type HubDependencies struct {
	Verifier   IdentityVerifier
	Membership MembershipStore
	History    HistoryStore
	Directory  UserDirectory
	Metrics    *telemetry.ChatMetrics
}

// ChatHub owns the registry, router and notifier. It accepts transport
// connections and creates one session per connection.
type ChatHub struct {
	cfg        HubConfig
	verifier   IdentityVerifier
	membership MembershipStore
	history    HistoryStore
	metrics    *telemetry.ChatMetrics

	registry  *ConnectionRegistry
	router    *RoomRouter
	notifier  *Notifier
	messages  *MessageRouter
	sanitizer *ContentSanitizer
	upgrader  websocket.Upgrader

	mu     sync.Mutex
	live   map[string]*Connection
	closed bool
	pumps  sync.WaitGroup
}

// NewChatHub wires a hub around its collaborators
func NewChatHub(deps HubDependencies, cfg HubConfig) (*ChatHub, error) {
	if deps.Verifier == nil || deps.Membership == nil || deps.History == nil {
		return nil, errors.New("chat hub requires a verifier, membership store and history store")
	}
	cfg = cfg.withDefaults()

	registry := NewConnectionRegistry()
	router := NewRoomRouter()
	h := &ChatHub{
		cfg:        cfg,
		verifier:   deps.Verifier,
		membership: deps.Membership,
		history:    deps.History,
		metrics:    deps.Metrics,
		registry:   registry,
		router:     router,
		notifier:   NewNotifier(registry, router, deps.Directory, deps.Metrics, cfg.CollaboratorTimeout),
		messages:   NewMessageRouter(),
		sanitizer:  NewContentSanitizer(cfg.MaxMessageLength),
		live:       make(map[string]*Connection),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h, nil
}

// Registry returns the identity to connection map
func (h *ChatHub) Registry() *ConnectionRegistry { return h.registry }

// Router returns the room membership index
func (h *ChatHub) Router() *RoomRouter { return h.router }

// Notifier returns the server-originated delivery surface
func (h *ChatHub) Notifier() *Notifier { return h.notifier }

// ConnectionCount returns the number of open transport connections
func (h *ChatHub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

func (h *ChatHub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *ChatHub) collaboratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, h.cfg.CollaboratorTimeout)
}

// NewSession attaches a session to conn and starts tracking it
func (h *ChatHub) NewSession(conn *Connection) *Session {
	conn.onDrop = func() {
		h.metrics.SlowConsumerDropped(context.Background())
		slogging.Get().Warn("Closing slow consumer %s (%s)", conn.ID, conn.UserID())
	}

	h.mu.Lock()
	h.live[conn.ID] = conn
	h.mu.Unlock()

	return &Session{
		hub:        h,
		conn:       conn,
		logger:     slogging.Get().WithConnection(conn.ID, ""),
		closeGauge: h.metrics.ConnectionOpened(context.Background()),
	}
}

func (h *ChatHub) untrack(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.live, conn.ID)
}

// HandleWS upgrades the request and runs the connection until it closes
func (h *ChatHub) HandleWS(c *gin.Context) {
	logger := slogging.Get().WithContext(c)

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Server is shutting down"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		logger.Warn("Failed to upgrade connection: %v", err)
		return
	}

	connID, err := uuidgen.NewForEntity(uuidgen.EntityTypeConnection)
	if err != nil {
		logger.Error("Failed to allocate connection id: %v", err)
		_ = ws.Close()
		return
	}

	conn := NewConnection(connID.String(), h.cfg.SendBufferSize)
	client := &wsClient{
		conn:    conn,
		ws:      ws,
		session: h.NewSession(conn),
		cfg:     h.cfg,
	}
	ctx := context.WithoutCancel(c.Request.Context())

	// Shutdown may have started during the upgrade; pumps are only counted
	// while the hub is still open so Shutdown never waits on a late Add
	h.mu.Lock()
	closed = h.closed
	if !closed {
		h.pumps.Add(2)
	}
	h.mu.Unlock()
	if closed {
		client.session.Disconnect(ctx)
		conn.Close()
		_ = ws.Close()
		return
	}

	slogging.LogWebSocketConnection("connected", conn.ID, "", h.cfg.FrameLogging)
	go func() {
		defer h.pumps.Done()
		client.WritePump()
	}()
	go func() {
		defer h.pumps.Done()
		client.ReadPump(ctx)
	}()
}

// PostMessage sanitizes and persists one chat record, then broadcasts it to
// every member of the room including the author. Persist and broadcast run
// under the room lock so each member sees records in commit order.
func (h *ChatHub) PostMessage(ctx context.Context, author *auth.Identity, eventID, content string) (*ChatRecord, error) {
	body, err := h.sanitizer.Clean(content)
	if err != nil {
		return nil, err
	}

	unlock := h.router.LockRoom(eventID)
	defer unlock()

	callCtx, cancel := h.collaboratorContext(ctx)
	defer cancel()
	start := time.Now()
	record, err := h.history.AppendHistory(callCtx, eventID, author.ID, body, models.MessageTypeText)
	h.metrics.ObserveCollaborator(ctx, "append_history", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to append message to %s: %w", eventID, err)
	}
	h.metrics.MessagePersisted(ctx)

	h.notifier.BroadcastRoom(ctx, eventID, MessageTypeNewMessage, NewMessagePayload{EventID: eventID, Message: *record}, "")
	return record, nil
}

// Shutdown closes every connection and waits for their pumps to exit
func (h *ChatHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Connection, 0, len(h.live))
	for _, conn := range h.live {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	slogging.Get().Info("Closing %d websocket connections", len(conns))
	for _, conn := range conns {
		conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("websocket shutdown interrupted: %w", ctx.Err())
	}
}
