package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/eventhub/eventchat/api"
	"github.com/eventhub/eventchat/api/models"
	"github.com/eventhub/eventchat/auth"
	"github.com/eventhub/eventchat/auth/db"
	"github.com/eventhub/eventchat/internal/config"
	"github.com/eventhub/eventchat/internal/slogging"
	"github.com/eventhub/eventchat/internal/telemetry"
)

const telemetryFlushTimeout = 5 * time.Second

// application is the fully wired server, minus the listener
type application struct {
	router    *gin.Engine
	hub       *api.ChatHub
	telemetry *telemetry.Service
	database  *db.GormDB
	redis     *db.RedisDB
	started   time.Time
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.DefaultConfig(cfg.Telemetry.ServiceName)
	tc.TraceExporter = cfg.Telemetry.TraceExporter
	tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tc.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	tc.MetricsEnabled = cfg.Telemetry.MetricsEnabled
	tc.OTLPMetrics = cfg.Telemetry.OTLPMetrics
	if cfg.IsTestMode() {
		tc.Environment = "test"
	}
	return tc
}

func hubConfig(cfg *config.Config) api.HubConfig {
	return api.HubConfig{
		HistoryLimit:        cfg.Chat.HistoryLimit,
		MaxMessageLength:    cfg.Chat.MaxMessageLength,
		CollaboratorTimeout: cfg.Chat.CollaboratorTimeout,
		SendBufferSize:      cfg.WebSocket.SendBufferSize,
		ReadLimitBytes:      cfg.WebSocket.ReadLimitBytes,
		PongWait:            cfg.WebSocket.PongWait,
		PingPeriod:          cfg.WebSocket.PingPeriod,
		WriteWait:           cfg.WebSocket.WriteWait,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		FrameLogging: slogging.WebSocketLoggingConfig{
			Enabled:        cfg.WebSocket.LogMessages,
			RedactTokens:   true,
			MaxMessageSize: cfg.WebSocket.MaxLoggedFrame,
		},
	}
}

// newApplication opens storage, builds the collaborators and mounts the router.
// Redis is optional; without it tokens cannot be revoked and membership is not cached.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	logger := slogging.Get()
	app := &application{started: time.Now()}

	tel, err := telemetry.NewService(ctx, telemetryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	app.telemetry = tel
	tracing := telemetryConfig(cfg).TracingEnabled()

	metrics, err := telemetry.NewChatMetrics(tel.Tracer(), tel.Meter())
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to create chat metrics: %w", err))
	}

	app.database, err = db.NewGormDB(db.GormConfig{
		Type:             db.DatabaseType(cfg.Database.Type),
		PostgresHost:     cfg.Database.Postgres.Host,
		PostgresPort:     cfg.Database.Postgres.Port,
		PostgresUser:     cfg.Database.Postgres.User,
		PostgresPassword: cfg.Database.Postgres.Password,
		PostgresDatabase: cfg.Database.Postgres.Database,
		PostgresSSLMode:  cfg.Database.Postgres.SSLMode,
		SQLitePath:       cfg.Database.SQLite.Path,
		Tracing:          tracing,
	})
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to open database: %w", err))
	}
	if err := app.database.AutoMigrate(models.AllModels()...); err != nil {
		return nil, app.abort(fmt.Errorf("failed to migrate database: %w", err))
	}

	var (
		blacklist *auth.TokenBlacklist
		revoker   api.TokenRevoker
	)
	if cfg.Database.Redis.Enabled {
		app.redis, err = db.NewRedisDB(db.RedisConfig{
			Host:     cfg.Database.Redis.Host,
			Port:     cfg.Database.Redis.Port,
			Password: cfg.Database.Redis.Password,
			DB:       cfg.Database.Redis.DB,
			Tracing:  tracing,
		})
		if err != nil {
			return nil, app.abort(fmt.Errorf("failed to connect to redis: %w", err))
		}
		blacklist = auth.NewTokenBlacklist(app.redis.GetClient())
		revoker = blacklist
	} else {
		logger.Warn("Redis is disabled: logout revocation and membership caching are off")
	}

	gdb := app.database.DB()
	users := api.NewGormUserStore(gdb)

	// a nil *TokenBlacklist must not reach the verifier as a non-nil interface
	var revocations auth.Revocations
	if blacklist != nil {
		revocations = blacklist
	}
	verifier, err := auth.NewJWTVerifier(auth.JWTConfig{
		Secret:        cfg.Auth.JWT.Secret,
		SigningMethod: cfg.Auth.JWT.SigningMethod,
	}, users, revocations)
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to create verifier: %w", err))
	}

	var cache *redis.Client
	if app.redis != nil {
		cache = app.redis.GetClient()
	}
	membership := api.NewGormMembershipStore(gdb, cache, cfg.Chat.MembershipCacheTTL)
	history := api.NewGormHistoryStore(gdb)

	hub, err := api.NewChatHub(api.HubDependencies{
		Verifier:   verifier,
		Membership: membership,
		History:    history,
		Directory:  users,
		Metrics:    metrics,
	}, hubConfig(cfg))
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to create chat hub: %w", err))
	}
	app.hub = hub

	health := api.NewHealthChecker(cfg.Chat.CollaboratorTimeout, hub)
	health.AddComponent("database", app.database)
	if app.redis != nil {
		health.AddComponent("redis", app.redis)
	}

	app.router = api.NewRouter(api.ServerDependencies{
		Hub:               hub,
		Verifier:          verifier,
		Users:             users,
		Membership:        membership,
		Events:            membership,
		Cache:             membership,
		History:           history,
		Reports:           api.NewGormReportStore(gdb),
		Revoker:           revoker,
		Health:            health,
		MetricsHandler:    tel.MetricsHandler(),
		ServiceName:       cfg.Telemetry.ServiceName,
		Tracing:           tracing,
		RESTHistoryLimit:  cfg.Chat.RESTHistoryLimit,
		InternalHookToken: cfg.Chat.InternalHookToken,
	})

	logger.Info("eventchat wired: database=%s redis=%t tracing=%t", cfg.Database.Type, app.redis != nil, tracing)
	return app, nil
}

// abort unwinds a partially wired application and returns err
func (a *application) abort(err error) error {
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if shutdownErr := a.telemetry.Shutdown(ctx); shutdownErr != nil {
			slogging.Get().Warn("Error flushing telemetry: %v", shutdownErr)
		}
		a.telemetry = nil
	}
	a.Close()
	return err
}

// Close releases storage handles. Telemetry is flushed by the shutdown path.
func (a *application) Close() {
	logger := slogging.Get()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("Error closing redis: %v", err)
		}
		a.redis = nil
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			logger.Warn("Error closing database: %v", err)
		}
		a.database = nil
	}
}
