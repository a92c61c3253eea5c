package ratelimit

import (
	"testing"
)

func TestNewAppliesFloors(t *testing.T) {
	rl := New(Config{})
	if !rl.Allow() {
		t.Fatal("expected first token to be available with default floors")
	}
}

func TestAllowExhaustsBurst(t *testing.T) {
	rl := New(Config{RequestsPerSecond: 1, Burst: 2})
	if !rl.Allow() {
		t.Fatal("expected first token")
	}
	if !rl.Allow() {
		t.Fatal("expected second token (burst)")
	}
	if rl.Allow() {
		t.Fatal("expected third immediate call to be denied")
	}
}

func TestReset(t *testing.T) {
	rl := New(Config{RequestsPerSecond: 1, Burst: 1})
	rl.Allow()
	if rl.Allow() {
		t.Fatal("bucket should be empty before reset")
	}
	rl.Reset()
	if !rl.Allow() {
		t.Fatal("expected a fresh token immediately after Reset")
	}
}
