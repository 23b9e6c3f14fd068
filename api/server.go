package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/internal/slogging"
)

// ServerDependencies holds everything the HTTP surface routes to
type ServerDependencies struct {
	Hub        *ChatHub
	Verifier   IdentityVerifier
	Users      auth.UserLookup
	Membership MembershipStore
	Events     EventDirectory
	Cache      MembershipCache
	History    HistoryStore
	Reports    ReportStore
	// Revoker is nil when redis is disabled
	Revoker        TokenRevoker
	Health         *HealthChecker
	MetricsHandler http.Handler

	ServiceName       string
	Tracing           bool
	RESTHistoryLimit  int
	InternalHookToken string
}

// NewRouter builds the gin engine serving /ws, /health, /metrics and the REST API
func NewRouter(deps ServerDependencies) *gin.Engine {
	r := gin.New()
	if deps.Tracing {
		r.Use(otelgin.Middleware(deps.ServiceName))
	}
	r.Use(slogging.LoggerMiddleware())
	r.Use(slogging.Recoverer())

	if deps.Health != nil {
		r.GET("/health", deps.Health.Handle)
	}
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}
	r.GET("/ws", deps.Hub.HandleWS)

	authMiddleware := auth.NewMiddleware(deps.Verifier)
	authed := r.Group("/api", authMiddleware.AuthRequired())

	chat := NewChatHandler(deps.Hub, deps.Membership, deps.History, deps.RESTHistoryLimit)
	authed.GET("/chat/:eventId", chat.GetMessages)
	authed.POST("/chat/:eventId", chat.PostMessage)

	if deps.Reports != nil && deps.Events != nil {
		reports := NewReportHandler(deps.Reports, deps.Events, deps.Hub.Notifier())
		authed.POST("/reports", reports.CreateReport)
	}

	authed.POST("/auth/logout", NewLogoutHandler(deps.Revoker).Logout)

	admin := authed.Group("/admin", authMiddleware.RequireAdmin())
	admin.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
			"connections": deps.Hub.ConnectionCount(),
			"online":      deps.Hub.Registry().Count(),
			"rooms":       deps.Hub.Router().RoomCount(),
		}})
	})

	if deps.InternalHookToken != "" && deps.Events != nil && deps.Users != nil {
		hook := NewRegistrationHookHandler(deps.Events, deps.Users, deps.Cache, deps.Hub.Notifier(), deps.InternalHookToken)
		internal := r.Group("/api/internal", hook.RequireInternalToken())
		internal.POST("/events/:eventId/registrations", hook.HandleRegistration)
	}

	return r
}
