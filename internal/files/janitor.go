package files

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Janitor sweeps expired artifacts on a cron schedule, in addition to the
// sweep every upload runs.
type Janitor struct {
	cron *cron.Cron
}

// NewJanitor schedules svc.Sweep. Overlapping runs are skipped.
func NewJanitor(svc *Service, schedule string) (*Janitor, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		result := svc.Sweep(context.Background())
		svc.logger.Debug("Scheduled sweep finished", "removed", result.Removed, "failed", result.Failed)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return &Janitor{cron: c}, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and returns a context that is done once a running
// sweep has finished.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}
