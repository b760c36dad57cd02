package metrics

import (
	"context"
	"time"
)

// BudgetSource reports how many remediation actions each key may still take
type BudgetSource interface {
	Remaining(key string) int
}

// Collector periodically refreshes gauges that are derived rather than
// updated in place by the control loops
type Collector struct {
	budget   BudgetSource
	keys     []string
	interval time.Duration
}

// NewCollector creates a new metrics collector
func NewCollector(budget BudgetSource, keys []string, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		budget:   budget,
		keys:     keys,
		interval: interval,
	}
}

// Run collects immediately and then on every interval until ctx is done
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Collector) collect() {
	Uptime.Set(time.Since(StartTime()).Seconds())

	if c.budget == nil {
		return
	}
	for _, key := range c.keys {
		RestartBudget.WithLabelValues(key).Set(float64(c.budget.Remaining(key)))
	}
}
