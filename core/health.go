package core

import (
	"fmt"

	"github.com/nexarouter/core/health"
)

// registerHealthChecks wires one checker per wired component, matching
// spec.md §6.3's health contract: registry reachability, the karma
// admin toggle, bus subscriber saturation, and envelope failure rate.
func (c *Core) registerHealthChecks() {
	c.Health.Register("registry", func() (health.Status, string) {
		n := len(c.Registry.List(nil))
		return health.StatusHealthy, fmt.Sprintf("%d agents registered", n)
	})

	c.Health.Register("karma", func() (health.Status, string) {
		if !c.karmaEnabled.Load() {
			return health.StatusDegraded, "karma disabled by admin toggle"
		}
		return health.StatusHealthy, ""
	})

	c.Health.Register("bus", func() (health.Status, string) {
		count := c.Bus.SubscriberCount()
		if count >= c.cfg.Bus.MaxSubscribers {
			return health.StatusDegraded, fmt.Sprintf("%d/%d subscribers, at capacity", count, c.cfg.Bus.MaxSubscribers)
		}
		return health.StatusHealthy, fmt.Sprintf("%d subscribers", count)
	})

	c.Health.Register("envelope", func() (health.Status, string) {
		alerts := c.Envelope.Alerts()
		if len(alerts) == 0 {
			return health.StatusHealthy, ""
		}
		latest := alerts[len(alerts)-1]
		switch latest.Level {
		case "critical":
			return health.StatusUnhealthy, fmt.Sprintf("failure rate %.2f", latest.FailureRate)
		default:
			return health.StatusDegraded, fmt.Sprintf("failure rate %.2f", latest.FailureRate)
		}
	})
}
