package pipeline

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRetention is how long terminal runs stay in the registry.
const DefaultRetention = 24 * time.Hour

// StartJanitor schedules Cleanup(retention) on a cron spec such as "@every 10m".
// It replaces any janitor started earlier.
func (o *Orchestrator) StartJanitor(spec string, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultRetention
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if n := o.Cleanup(retention); n > 0 {
			o.logger.Info("evicted finished pipeline runs", "count", n, "retention", retention.String())
		}
	}); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrShuttingDown
	}
	previous := o.janitor
	o.janitor = c
	o.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	c.Start()
	return nil
}
