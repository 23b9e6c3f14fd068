package config

import (
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/eventhub/eventchat/internal/envutil"
	"github.com/eventhub/eventchat/internal/slogging"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Chat      ChatConfig      `yaml:"chat"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Secrets   SecretsConfig   `yaml:"secrets"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string        `yaml:"port" env:"SERVER_PORT"`
	Interface       string        `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     string         `yaml:"type" env:"DATABASE_TYPE"` // sqlite | postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     string `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" env:"POSTGRES_DATABASE"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSL_MODE"`
}

// DSN returns the libpq-style connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// RedisConfig holds Redis configuration. Redis backs the token blacklist and
// the membership cache; both are skipped when Enabled is false.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     string `yaml:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig holds JWT verification configuration
type JWTConfig struct {
	Secret            string `yaml:"secret" env:"JWT_SECRET"`
	SigningMethod     string `yaml:"signing_method" env:"JWT_SIGNING_METHOD"`
	ExpirationSeconds int    `yaml:"expiration_seconds" env:"JWT_EXPIRATION_SECONDS"`
}

// WebSocketConfig holds transport tuning
type WebSocketConfig struct {
	ReadLimitBytes int64         `yaml:"read_limit_bytes" env:"WEBSOCKET_READ_LIMIT_BYTES"`
	PongWait       time.Duration `yaml:"pong_wait" env:"WEBSOCKET_PONG_WAIT"`
	PingPeriod     time.Duration `yaml:"ping_period" env:"WEBSOCKET_PING_PERIOD"`
	WriteWait      time.Duration `yaml:"write_wait" env:"WEBSOCKET_WRITE_WAIT"`
	SendBufferSize int           `yaml:"send_buffer_size" env:"WEBSOCKET_SEND_BUFFER_SIZE"`
	LogMessages    bool          `yaml:"log_messages" env:"WEBSOCKET_LOG_MESSAGES"`
	MaxLoggedFrame int64         `yaml:"max_logged_frame" env:"WEBSOCKET_MAX_LOGGED_FRAME"`
}

// ChatConfig holds room behaviour settings
type ChatConfig struct {
	HistoryLimit        int           `yaml:"history_limit" env:"CHAT_HISTORY_LIMIT"`
	RESTHistoryLimit    int           `yaml:"rest_history_limit" env:"CHAT_REST_HISTORY_LIMIT"`
	MaxMessageLength    int           `yaml:"max_message_length" env:"CHAT_MAX_MESSAGE_LENGTH"`
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout" env:"CHAT_COLLABORATOR_TIMEOUT"`
	MembershipCacheTTL  time.Duration `yaml:"membership_cache_ttl" env:"CHAT_MEMBERSHIP_CACHE_TTL"`
	InternalHookToken   string        `yaml:"internal_hook_token" env:"CHAT_INTERNAL_HOOK_TOKEN"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level                       string `yaml:"level" env:"LOGGING_LEVEL"`
	IsDev                       bool   `yaml:"is_dev" env:"LOGGING_IS_DEV"`
	IsTest                      bool   `yaml:"is_test" env:"LOGGING_IS_TEST"`
	LogDir                      string `yaml:"log_dir" env:"LOGGING_LOG_DIR"`
	MaxAgeDays                  int    `yaml:"max_age_days" env:"LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB                   int    `yaml:"max_size_mb" env:"LOGGING_MAX_SIZE_MB"`
	MaxBackups                  int    `yaml:"max_backups" env:"LOGGING_MAX_BACKUPS"`
	AlsoLogToConsole            bool   `yaml:"also_log_to_console" env:"LOGGING_ALSO_LOG_TO_CONSOLE"`
	SuppressUnauthenticatedLogs bool   `yaml:"suppress_unauthenticated_logs" env:"LOGGING_SUPPRESS_UNAUTH_LOGS"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	TraceExporter  string `yaml:"trace_exporter" env:"OTEL_TRACE_EXPORTER"` // none | console | otlp
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure   bool   `yaml:"otlp_insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"OTEL_METRICS_ENABLED"`
	OTLPMetrics    bool   `yaml:"otlp_metrics" env:"OTEL_OTLP_METRICS"`
}

// SecretsConfig selects where credentials left empty above are resolved from
type SecretsConfig struct {
	Provider      string `yaml:"provider" env:"SECRETS_PROVIDER"` // "" | env | aws
	AWSRegion     string `yaml:"aws_region" env:"SECRETS_AWS_REGION"`
	AWSSecretName string `yaml:"aws_secret_name" env:"SECRETS_AWS_SECRET_NAME"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load(configFile string) (*Config, error) {
	config := getDefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from YAML: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("failed to override with environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "3000",
			Interface:       "0.0.0.0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "eventchat.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     "5432",
				User:     "postgres",
				Database: "eventchat",
				SSLMode:  "disable",
			},
			Redis: RedisConfig{
				Enabled: false,
				Host:    "localhost",
				Port:    "6379",
			},
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				SigningMethod:     "HS256",
				ExpirationSeconds: 7 * 24 * 3600,
			},
		},
		WebSocket: WebSocketConfig{
			ReadLimitBytes: 16 * 1024,
			PongWait:       60 * time.Second,
			PingPeriod:     54 * time.Second,
			WriteWait:      10 * time.Second,
			SendBufferSize: 256,
			MaxLoggedFrame: 4096,
		},
		Chat: ChatConfig{
			HistoryLimit:        50,
			RESTHistoryLimit:    100,
			MaxMessageLength:    1000,
			CollaboratorTimeout: 5 * time.Second,
			MembershipCacheTTL:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:                       "info",
			IsDev:                       true,
			LogDir:                      "logs",
			MaxAgeDays:                  7,
			MaxSizeMB:                   100,
			MaxBackups:                  10,
			AlsoLogToConsole:            true,
			SuppressUnauthenticatedLogs: false,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "eventchat",
			TraceExporter:  "none",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
			MetricsEnabled: true,
		},
	}
}

func loadFromYAML(config *Config, filename string) error {
	data, err := os.ReadFile(filename) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

func overrideWithEnv(config *Config) error {
	return overrideStructWithEnv(reflect.ValueOf(config).Elem())
}

// overrideStructWithEnv recursively overrides struct fields with environment variables
func overrideStructWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := overrideStructWithEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := envutil.Get(envTag, "")
		if envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field type
func setFieldFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", value)
		}
		field.SetBool(boolVal)
	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int value: %s", value)
		}
		field.SetInt(int64(intVal))
	case reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid int64 value: %s", value)
			}
			field.SetInt(intVal)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				slice = append(slice, trimmed)
			}
		}
		field.Set(reflect.ValueOf(slice))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateJWT,
		c.validateWebSocket,
		c.validateChat,
		c.validateTelemetry,
		c.validateSecrets,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Port == "" {
			return fmt.Errorf("postgres host and port are required")
		}
		if c.Database.Postgres.User == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("postgres user and database are required")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Database.Type)
	}

	if c.Database.Redis.Enabled && (c.Database.Redis.Host == "" || c.Database.Redis.Port == "") {
		return fmt.Errorf("redis host and port are required when redis is enabled")
	}
	return nil
}

func (c *Config) validateJWT() error {
	// an external provider may still supply the secret after Load
	if c.Auth.JWT.Secret == "" && c.Secrets.Provider == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Auth.JWT.SigningMethod != "HS256" {
		return fmt.Errorf("unsupported jwt signing method: %s", c.Auth.JWT.SigningMethod)
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket ping period must be shorter than pong wait")
	}
	if c.WebSocket.SendBufferSize <= 0 {
		return fmt.Errorf("websocket send buffer size must be greater than 0")
	}
	return nil
}

func (c *Config) validateChat() error {
	if c.Chat.HistoryLimit <= 0 || c.Chat.RESTHistoryLimit <= 0 {
		return fmt.Errorf("chat history limits must be greater than 0")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("chat max message length must be greater than 0")
	}
	if c.Chat.CollaboratorTimeout <= 0 {
		return fmt.Errorf("chat collaborator timeout must be greater than 0")
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	switch c.Telemetry.TraceExporter {
	case "", "none", "console", "otlp":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}
}

func (c *Config) validateSecrets() error {
	switch c.Secrets.Provider {
	case "", "env":
		return nil
	case "aws":
		if c.Secrets.AWSRegion == "" || c.Secrets.AWSSecretName == "" {
			return fmt.Errorf("aws secrets provider requires region and secret name")
		}
		return nil
	default:
		return fmt.Errorf("unsupported secrets provider: %s", c.Secrets.Provider)
	}
}

// IsTestMode returns true if running in test mode
func (c *Config) IsTestMode() bool {
	return c.Logging.IsTest || flag.Lookup("test.v") != nil
}

// GetLogLevel returns the parsed log level
func (c *Config) GetLogLevel() slogging.LogLevel {
	return slogging.ParseLogLevel(c.Logging.Level)
}

// GetJWTDuration returns the token lifetime used when minting dev tokens
func (c *Config) GetJWTDuration() time.Duration {
	return time.Duration(c.Auth.JWT.ExpirationSeconds) * time.Second
}

// ListenAddress returns interface:port
func (c *Config) ListenAddress() string {
	return c.Server.Interface + ":" + c.Server.Port
}
