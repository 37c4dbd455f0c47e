// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ConversationIDKey is the context key for the provider conversation ID
	ConversationIDKey contextKey = "conversation_id"
	// LookupIDKey is the context key for the lookup ID
	LookupIDKey contextKey = "lookup_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, conversation_id, and lookup_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if conversationID, ok := ctx.Value(ConversationIDKey).(string); ok && conversationID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("conversation_id", conversationID))}
	}

	if lookupID, ok := ctx.Value(LookupIDKey).(string); ok && lookupID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("lookup_id", lookupID))}
	}

	return newLogger
}

// WithConversationID returns a logger with the provider conversation ID attached.
func (l *Logger) WithConversationID(conversationID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("conversation_id", conversationID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// WebhookEvent logs a processed provider webhook delivery.
func (l *Logger) WebhookEvent(conversationID, event, canonicalEvent string, actionable bool) {
	l.Info("webhook_event",
		slog.String("conversation_id", conversationID),
		slog.String("event", event),
		slog.String("canonical_event", canonicalEvent),
		slog.Bool("actionable", actionable),
	)
}

// WebhookRejected logs a webhook delivery that was refused before processing.
func (l *Logger) WebhookRejected(reason string, err error) {
	if err != nil {
		l.Warn("webhook_rejected", slog.String("reason", reason), slog.String("error", err.Error()))
		return
	}
	l.Warn("webhook_rejected", slog.String("reason", reason))
}

// CallDispatch logs the outcome of an outbound call dispatch.
func (l *Logger) CallDispatch(lookupID, phoneNumber string, success bool, reason string) {
	if success {
		l.Info("call_dispatch",
			slog.String("lookup_id", lookupID),
			slog.String("phone_number", phoneNumber),
			slog.Bool("success", success),
		)
	} else {
		l.Warn("call_dispatch",
			slog.String("lookup_id", lookupID),
			slog.String("phone_number", phoneNumber),
			slog.Bool("success", success),
			slog.String("reason", reason),
		)
	}
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
