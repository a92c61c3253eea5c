package logging

import (
	"context"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		component string
		level     string
		format    string
	}{
		{"json logger", "registry", "info", "json"},
		{"text logger", "registry", "debug", "text"},
		{"invalid level falls back to info", "registry", "bogus", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.component, tt.level, tt.format)
			if logger == nil {
				t.Fatal("New() returned nil")
			}
			if logger.component != tt.component {
				t.Errorf("component = %v, want %v", logger.component, tt.component)
			}
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	logger := New("decide", "info", "json")
	ctx := WithTraceID(context.Background(), "trace-123")
	ctx = WithRequestID(ctx, "req-456")

	entry := logger.WithContext(ctx)
	if entry.Data["component"] != "decide" {
		t.Errorf("component field = %v, want decide", entry.Data["component"])
	}
	if entry.Data["trace_id"] != "trace-123" {
		t.Errorf("trace_id field = %v, want trace-123", entry.Data["trace_id"])
	}
	if entry.Data["request_id"] != "req-456" {
		t.Errorf("request_id field = %v, want req-456", entry.Data["request_id"])
	}
}

func TestTraceIDRoundTrip(t *testing.T) {
	id := NewTraceID()
	if id == "" {
		t.Fatal("NewTraceID() returned empty string")
	}
	ctx := WithTraceID(context.Background(), id)
	if got := GetTraceID(ctx); got != id {
		t.Errorf("GetTraceID() = %v, want %v", got, id)
	}
	if got := GetTraceID(context.Background()); got != "" {
		t.Errorf("GetTraceID() on bare context = %v, want empty", got)
	}
}

func TestLogDropped(t *testing.T) {
	logger := New("bus", "debug", "json")
	// Should not panic with or without an error.
	logger.LogDropped(context.Background(), "telemetry", errors.New("queue full"))
	logger.LogDropped(context.Background(), "telemetry", nil)
}
