// Command demo wires a Core end to end without a network listener: it
// registers a handful of agents, issues routing decisions, applies
// feedback, and prints whatever the Telemetry Bus fans out. It exists
// to exercise the full pipeline in one process for local iteration
// (spec.md §4's component list), not as a production entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nexarouter/core/bus"
	"github.com/nexarouter/core/core"
	"github.com/nexarouter/core/domain/agent"
	"github.com/nexarouter/core/domain/feedback"
	"github.com/nexarouter/core/infrastructure/config"
	"github.com/nexarouter/core/infrastructure/logging"
	"github.com/nexarouter/core/routing/decide"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("demo", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	requests := flags.Int("requests", 5, "number of decide/feedback round trips to simulate")
	logLevel := flags.String("log-level", "info", "log level (debug, info, warn, error)")
	if err := flags.Parse(args); err != nil {
		return usageError(err)
	}

	log := logging.New("demo", *logLevel, "text")
	cfg := config.Default()

	c, err := core.New(cfg, nil, nil, log)
	if err != nil {
		return fmt.Errorf("construct core: %w", err)
	}
	defer func() {
		if cerr := c.Close(ctx); cerr != nil {
			log.LogDropped(ctx, "demo_shutdown", cerr)
		}
	}()

	seedAgents(c)

	sub, err := c.Bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to telemetry bus: %w", err)
	}
	defer sub.Unsubscribe()
	go printPackets(sub)

	for i := 0; i < *requests; i++ {
		if err := simulateOne(ctx, c, i); err != nil {
			log.LogDropped(ctx, "demo_round_trip", err)
		}
	}

	// give the bus goroutine a moment to drain before we print health
	// and exit; the subscription is unbuffered from the reader's side
	// once Unsubscribe runs.
	time.Sleep(50 * time.Millisecond)

	snap := c.Health.Snapshot()
	fmt.Printf("\nhealth: %s\n", snap.Status)
	for _, comp := range snap.Components {
		fmt.Printf("  %-10s %-10s %s\n", comp.Name, comp.Status, comp.Detail)
	}
	fmt.Printf("bus drops: %d\n", sub.Dropped())
	return nil
}

func seedAgents(c *core.Core) {
	agents := []agent.Agent{
		{ID: "nlp-a", Name: "NLP Agent A", Type: "nlp", Status: agent.StatusActive,
			Capabilities: []agent.Capability{{Name: "summarize"}}},
		{ID: "nlp-b", Name: "NLP Agent B", Type: "nlp", Status: agent.StatusActive,
			Capabilities: []agent.Capability{{Name: "summarize"}}},
		{ID: "vision-a", Name: "Vision Agent A", Type: "vision", Status: agent.StatusActive,
			Capabilities: []agent.Capability{{Name: "classify"}}},
	}
	for _, a := range agents {
		c.Registry.Register(a)
	}
}

func simulateOne(ctx context.Context, c *core.Core, i int) error {
	record, err := c.Decide.Decide(ctx, decide.Request{
		InputType: "nlp",
		Strategy:  decide.StrategyPerformanceBased,
		Context:   map[string]string{"round": fmt.Sprintf("%d", i)},
	})
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}
	fmt.Printf("decision %d: agent=%s confidence=%.3f\n", i, record.SelectedAgent, record.Confidence)

	accuracy := 0.8 + 0.02*float64(i%10)
	event := feedback.Event{
		ID:         fmt.Sprintf("demo-evt-%d", i),
		DecisionID: record.RequestID,
		Success:    i%4 != 0,
		LatencyMS:  80 + float64(i*3),
		Accuracy:   &accuracy,
		Timestamp:  time.Now(),
	}
	result, err := c.Feedback.Apply(ctx, event)
	if err != nil {
		return fmt.Errorf("apply feedback: %w", err)
	}
	fmt.Printf("feedback %d: duplicate=%v q_delta=%.4f\n", i, result.Duplicate, result.Update.QDelta)
	return nil
}

func printPackets(sub *bus.Subscription) {
	for pkt := range sub.Packets() {
		fmt.Printf("telemetry: type=%s destination=%s\n", pkt.Type, pkt.Metadata.Destination)
	}
}

func usageError(err error) error {
	return fmt.Errorf("usage: demo [-requests N] [-log-level level]: %w", err)
}
