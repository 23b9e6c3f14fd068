package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/eventchat/internal/slogging"
)

// Pinger is a dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// ComponentHealthResult holds the health check result for one component
type ComponentHealthResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Message   string `json:"message,omitempty"`
}

type namedPinger struct {
	name   string
	pinger Pinger
}

// HealthChecker pings registered components and reports live connections
type HealthChecker struct {
	timeout    time.Duration
	hub        *ChatHub
	components []namedPinger
}

// NewHealthChecker creates a health checker with the specified per-check timeout
func NewHealthChecker(timeout time.Duration, hub *ChatHub) *HealthChecker {
	return &HealthChecker{timeout: timeout, hub: hub}
}

// AddComponent registers a dependency under name
func (h *HealthChecker) AddComponent(name string, pinger Pinger) {
	h.components = append(h.components, namedPinger{name: name, pinger: pinger})
}

// CheckHealth pings every component and reports whether all are healthy
func (h *HealthChecker) CheckHealth(ctx context.Context) (map[string]ComponentHealthResult, bool) {
	results := make(map[string]ComponentHealthResult, len(h.components))
	healthy := true
	for _, component := range h.components {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		start := time.Now()
		err := component.pinger.Ping(checkCtx)
		cancel()

		result := ComponentHealthResult{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			slogging.Get().Warn("Health check failed for %s: %v", component.name, err)
			result.Status = "unhealthy"
			result.Message = err.Error()
			healthy = false
		}
		results[component.name] = result
	}
	return results, healthy
}

// Handle serves GET /health
func (h *HealthChecker) Handle(c *gin.Context) {
	components, healthy := h.CheckHealth(c.Request.Context())

	status := http.StatusOK
	message := "Server is running"
	if !healthy {
		status = http.StatusServiceUnavailable
		message = "Server is degraded"
	}

	connections := 0
	if h.hub != nil {
		connections = h.hub.Registry().Count()
	}

	c.JSON(status, gin.H{
		"success":     healthy,
		"message":     message,
		"timestamp":   time.Now().UTC(),
		"connections": connections,
		"components":  components,
	})
}
