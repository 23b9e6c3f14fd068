package slogging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

// RedactionAction defines how sensitive data should be handled
type RedactionAction string

const (
	// RedactionOmit removes the field entirely from logs
	RedactionOmit RedactionAction = "omit"
	// RedactionObfuscate replaces the value with [REDACTED]
	RedactionObfuscate RedactionAction = "obfuscate"
	// RedactionPartial shows first and last few characters with middle redacted
	RedactionPartial RedactionAction = "partial"
)

// RedactionRule defines a single redaction rule keyed on attribute name
type RedactionRule struct {
	FieldPattern    string          `yaml:"field_pattern" json:"field_pattern"`
	Action          RedactionAction `yaml:"action" json:"action"`
	compiledPattern *regexp.Regexp
}

// RedactionConfig holds all redaction rules
type RedactionConfig struct {
	Enabled bool            `yaml:"enabled" json:"enabled"`
	Rules   []RedactionRule `yaml:"rules" json:"rules"`
}

// DefaultRedactionConfig masks credentials carried on the auth frame and on REST headers
func DefaultRedactionConfig() RedactionConfig {
	return RedactionConfig{
		Enabled: true,
		Rules: []RedactionRule{
			{FieldPattern: "(?i)(authorization|bearer|token|jwt)", Action: RedactionPartial},
			{FieldPattern: "(?i)(password|secret|private_key)", Action: RedactionOmit},
			{FieldPattern: "(?i)(cookie|set-cookie)", Action: RedactionPartial},
		},
	}
}

// CompileRules compiles regex patterns for all rules
func (rc *RedactionConfig) CompileRules() error {
	for i := range rc.Rules {
		pattern, err := regexp.Compile(rc.Rules[i].FieldPattern)
		if err != nil {
			return fmt.Errorf("failed to compile redaction pattern '%s': %w", rc.Rules[i].FieldPattern, err)
		}
		rc.Rules[i].compiledPattern = pattern
	}
	return nil
}

func (rc *RedactionConfig) match(key string) (RedactionAction, bool) {
	idx := slices.IndexFunc(rc.Rules, func(rule RedactionRule) bool {
		return rule.compiledPattern != nil && rule.compiledPattern.MatchString(key)
	})
	if idx < 0 {
		return "", false
	}
	return rc.Rules[idx].Action, true
}

// partialRedactValue keeps a short prefix and suffix so tokens stay correlatable
func partialRedactValue(value string) string {
	if value == "" {
		return value
	}
	if len(value) <= 12 {
		return "[REDACTED]"
	}
	if strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return value[:7] + partialRedactValue(value[7:])
	}
	if strings.Count(value, ".") == 2 && strings.HasPrefix(value, "eyJ") {
		parts := strings.Split(value, ".")
		header, signature := parts[0], parts[2]
		if len(header) > 8 {
			header = header[:8] + "...REDACTED..."
		}
		if len(signature) > 4 {
			signature = "...REDACTED..." + signature[len(signature)-4:]
		}
		return header + ".REDACTED." + signature
	}

	visibleStart, visibleEnd := 6, 4
	if len(value) < visibleStart+visibleEnd+10 {
		visibleStart, visibleEnd = 3, 2
	}
	return value[:visibleStart] + "...REDACTED..." + value[len(value)-visibleEnd:]
}

// redactionHandler wraps another slog.Handler to apply redaction rules
type redactionHandler struct {
	handler slog.Handler
	config  RedactionConfig
}

// NewRedactionHandler creates a new redaction handler
func NewRedactionHandler(handler slog.Handler, config RedactionConfig) (slog.Handler, error) {
	if err := config.CompileRules(); err != nil {
		return nil, err
	}
	return &redactionHandler{handler: handler, config: config}, nil
}

func (h *redactionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *redactionHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, record)
	}

	redacted := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		if out, keep := h.redactAttribute(attr); keep {
			redacted.AddAttrs(out)
		}
		return true
	})
	return h.handler.Handle(ctx, redacted)
}

func (h *redactionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	kept := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		if out, keep := h.redactAttribute(attr); keep {
			kept = append(kept, out)
		}
	}
	return &redactionHandler{handler: h.handler.WithAttrs(kept), config: h.config}
}

func (h *redactionHandler) WithGroup(name string) slog.Handler {
	return &redactionHandler{handler: h.handler.WithGroup(name), config: h.config}
}

func (h *redactionHandler) redactAttribute(attr slog.Attr) (slog.Attr, bool) {
	if !h.config.Enabled {
		return attr, true
	}
	action, ok := h.config.match(attr.Key)
	if !ok {
		return attr, true
	}
	switch action {
	case RedactionOmit:
		return slog.Attr{}, false
	case RedactionObfuscate:
		return slog.String(attr.Key, "[REDACTED]"), true
	default:
		return slog.String(attr.Key, partialRedactValue(attr.Value.String())), true
	}
}

// SanitizeLogMessage removes newlines and other control characters from log messages
func SanitizeLogMessage(message string) string {
	message = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(message)
	return strings.TrimSpace(strings.Join(strings.Fields(message), " "))
}

// RedactSensitiveInfo masks a free-form string that looks like it carries a
// credential. It is the fallback for frames that are not valid JSON.
func RedactSensitiveInfo(input string) string {
	if input == "" {
		return input
	}
	config := DefaultRedactionConfig()
	if err := config.CompileRules(); err != nil {
		return input
	}
	action, ok := config.match(input)
	if !ok {
		return input
	}
	if action == RedactionPartial {
		return partialRedactValue(input)
	}
	return "[REDACTED]"
}
