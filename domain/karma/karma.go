// Package karma defines the per-agent cache entry the Karma Client
// manages (spec.md §3, §4.6).
package karma

import (
	"math"
	"time"
)

// Entry is a cached behavioral score for one agent. TTL-expired or
// drift-invalidated entries are treated as absent by the client.
type Entry struct {
	AgentID            string
	Score              float64 // in [0,1]
	CapturedAt         time.Time
	BaselinePerformance float64
	Window             []float64 // bounded sliding window, last K samples
}

// Normalized maps Score linearly from [0,1] to [-1,+1], the form the
// Q-Learning Updater's karma-smoothed reward blending consumes
// (spec.md §4.4).
func (e Entry) Normalized() float64 {
	return e.Score*2 - 1
}

// PushSample appends a new performance sample to the sliding window,
// evicting the oldest entry once the window exceeds windowSize.
func (e *Entry) PushSample(sample float64, windowSize int) {
	e.Window = append(e.Window, sample)
	if len(e.Window) > windowSize {
		e.Window = e.Window[len(e.Window)-windowSize:]
	}
}

// StdDev returns the population standard deviation of the sliding
// window, used by the drift test in §4.6.
func (e Entry) StdDev() float64 {
	n := len(e.Window)
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range e.Window {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range e.Window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(n)

	return math.Sqrt(variance)
}
