package db

import (
	"context"
	"fmt"
	"time"

	"github.com/eventhub/eventchat/internal/slogging"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

// GormConfig holds the configuration for GORM database connection
type GormConfig struct {
	Type DatabaseType

	// PostgreSQL configuration
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string //nolint:gosec // connection password
	PostgresDatabase string
	PostgresSSLMode  string

	// SQLite configuration
	SQLitePath string // File path or ":memory:" for in-memory database

	// Tracing adds the otelgorm plugin so every query gets a span
	Tracing bool
}

// GormDB represents a GORM database connection that works with PostgreSQL and SQLite
type GormDB struct {
	db  *gorm.DB
	cfg GormConfig
}

// NewGormDB creates a new GORM database connection based on configuration
func NewGormDB(cfg GormConfig) (*GormDB, error) {
	log := slogging.Get()
	log.Debug("Initializing GORM connection for database type: %s", cfg.Type)

	var dialector gorm.Dialector
	switch cfg.Type {
	case DatabaseTypePostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser,
			cfg.PostgresPassword, cfg.PostgresDatabase, cfg.PostgresSSLMode,
		)
		dialector = postgres.Open(dsn)
		log.Debug("Using PostgreSQL dialector for %s:%s/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDatabase)

	case DatabaseTypeSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
		log.Debug("Using SQLite dialector for %s", cfg.SQLitePath)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(log),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: true,
	})
	if err != nil {
		log.Error("Failed to open GORM connection: %v", err)
		return nil, fmt.Errorf("failed to open gorm connection: %w", err)
	}

	if cfg.Tracing {
		if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(string(cfg.Type)))); err != nil {
			return nil, fmt.Errorf("failed to register otelgorm plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("Failed to get underlying sql.DB: %v", err)
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY and
	// keeps ":memory:" databases from splitting per connection.
	if cfg.Type == DatabaseTypeSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(4 * time.Minute)
		sqlDB.SetConnMaxIdleTime(30 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Error("Failed to ping database: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Debug("GORM connection established successfully")

	return &GormDB{db: db, cfg: cfg}, nil
}

// Close closes the database connection
func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("error closing database connection: %w", err)
	}
	slogging.Get().Debug("GORM connection closed successfully")
	return nil
}

// DB returns the GORM database instance
func (g *GormDB) DB() *gorm.DB {
	return g.db
}

// DatabaseType returns the type of database
func (g *GormDB) DatabaseType() DatabaseType {
	return g.cfg.Type
}

// Ping checks if the database connection is alive
func (g *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs GORM auto-migration for the given models
func (g *GormDB) AutoMigrate(models ...any) error {
	log := slogging.Get()
	log.Debug("Running GORM auto-migration for %d models", len(models))

	if err := g.db.AutoMigrate(models...); err != nil {
		log.Error("GORM auto-migration failed: %v", err)
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

// gormLogger adapts slogging to GORM's logger interface
type gormLogger struct {
	log *slogging.Logger
}

func newGormLogger(log *slogging.Logger) logger.Interface {
	return &gormLogger{log: log}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return l
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.log.Info(msg, data...)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.log.Warn(msg, data...)
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.log.Error(msg, data...)
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if err == nil && l.log.Level() > slogging.LogLevelDebug {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && err != gorm.ErrRecordNotFound {
		l.log.Error("GORM query error: %v [%s] (%d rows, %s)", err, sql, rows, elapsed)
	} else {
		l.log.Debug("GORM query: %s (%d rows, %s)", sql, rows, elapsed)
	}
}
