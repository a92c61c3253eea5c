// Package logging provides structured logging with trace ID propagation
// for every component of the routing core. There is no package-level
// singleton: callers construct a Logger and inject it explicitly.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried by this package.
type ContextKey string

const (
	// TraceIDKey is the context key for the per-request trace ID.
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for the routing request ID.
	RequestIDKey ContextKey = "request_id"
)

// Logger wraps logrus.Logger, stamping every entry with the owning
// component's name.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a Logger for the named component.
func New(component, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment
// variables, defaulting to "info" and "json".
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithContext returns a logrus.Entry stamped with the component name and
// any trace/request IDs present on ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}
	return entry
}

// WithFields returns a logrus.Entry stamped with the component name plus
// the given fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID reads the trace ID from ctx, if any.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID attaches a request ID to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID reads the request ID from ctx, if any.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogDecision logs the outcome of a routing decision.
func (l *Logger) LogDecision(ctx context.Context, requestID, agentID, strategy string, confidence float64, explore bool) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"request_id": requestID,
		"agent_id":   agentID,
		"strategy":   strategy,
		"confidence": confidence,
		"explore":    explore,
	}).Info("routing decision")
}

// LogFeedbackApplied logs a successful feedback application.
func (l *Logger) LogFeedbackApplied(ctx context.Context, decisionID string, reward, epsilon float64) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"decision_id": decisionID,
		"reward":      reward,
		"epsilon":     epsilon,
	}).Info("feedback applied")
}

// LogDropped logs a best-effort emission that was dropped (telemetry,
// log append) without failing the caller's operation.
func (l *Logger) LogDropped(ctx context.Context, sink string, err error) {
	entry := l.WithContext(ctx).WithField("sink", sink)
	if err != nil {
		entry = entry.WithField("error", err.Error())
	}
	entry.Warn("best-effort emission dropped")
}
