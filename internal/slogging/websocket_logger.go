package slogging

import (
	"context"
	"encoding/json"
	"log/slog"
)

// WebSocketLoggingConfig holds configuration for WebSocket frame logging
type WebSocketLoggingConfig struct {
	Enabled        bool
	RedactTokens   bool
	MaxMessageSize int64 // frames larger than this are logged without content
}

// WSMessageDirection indicates the direction of the WebSocket message
type WSMessageDirection string

const (
	WSMessageInbound  WSMessageDirection = "INBOUND"
	WSMessageOutbound WSMessageDirection = "OUTBOUND"
)

// LogWebSocketMessage logs one frame at debug level with optional token redaction
func LogWebSocketMessage(direction WSMessageDirection, connID, userID, messageType string, data []byte, config WebSocketLoggingConfig) {
	if !config.Enabled {
		return
	}

	logger := Get()
	if logger.level > LogLevelDebug {
		return
	}

	attrs := []slog.Attr{
		slog.String("direction", string(direction)),
		slog.String("conn_id", connID),
		slog.String("user_id", userID),
		slog.String("message_type", messageType),
		slog.Int("size_bytes", len(data)),
	}

	if config.MaxMessageSize > 0 && int64(len(data)) > config.MaxMessageSize {
		attrs = append(attrs, slog.Bool("truncated", true))
		logger.slogger.LogAttrs(context.Background(), slog.LevelDebug, "WebSocket frame", attrs...)
		return
	}

	content := string(data)
	if config.RedactTokens {
		content = RedactWebSocketMessage(content)
	}
	attrs = append(attrs, slog.String("message_content", SanitizeLogMessage(content)))
	logger.slogger.LogAttrs(context.Background(), slog.LevelDebug, "WebSocket frame", attrs...)
}

// RedactWebSocketMessage applies redaction rules to a frame's JSON fields
func RedactWebSocketMessage(message string) string {
	if message == "" {
		return message
	}

	var frame map[string]any
	if err := json.Unmarshal([]byte(message), &frame); err == nil {
		config := DefaultRedactionConfig()
		if err := config.CompileRules(); err != nil {
			return message
		}
		if redacted, err := json.Marshal(redactJSONValue(frame, &config)); err == nil {
			return string(redacted)
		}
	}
	return RedactSensitiveInfo(message)
}

func redactJSONValue(value any, config *RedactionConfig) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			action, ok := config.match(key)
			if !ok {
				out[key] = redactJSONValue(item, config)
				continue
			}
			switch action {
			case RedactionOmit:
			case RedactionPartial:
				if s, isString := item.(string); isString {
					out[key] = partialRedactValue(s)
				} else {
					out[key] = "[REDACTED]"
				}
			default:
				out[key] = "[REDACTED]"
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactJSONValue(item, config)
		}
		return out
	default:
		return value
	}
}

// LogWebSocketConnection logs connection lifecycle events
func LogWebSocketConnection(event, connID, userID string, config WebSocketLoggingConfig) {
	if !config.Enabled {
		return
	}
	Get().slogger.LogAttrs(context.Background(), slog.LevelInfo, "WebSocket connection event",
		slog.String("event", event),
		slog.String("conn_id", connID),
		slog.String("user_id", userID),
	)
}
