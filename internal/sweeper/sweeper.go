// Package sweeper periodically purges registry entries whose channels no
// longer exist, so abandoned sessions never block a new report for long.
package sweeper

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/user/relatobot/internal/registry"
)

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Sweeper runs the stale-entry purge on a cron schedule.
type Sweeper struct {
	reg      *registry.Registry
	schedule string
	cron     *cron.Cron
}

// New creates a Sweeper. schedule is a cron expression, e.g. "@every 5m".
func New(reg *registry.Registry, schedule string) *Sweeper {
	return &Sweeper{
		reg:      reg,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the sweep job and starts the cron ticker.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if n := s.reg.PurgeStale(context.Background()); n > 0 {
			slog.Info("swept stale session entries", "count", n)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("sweeper started", "schedule", s.schedule)
	return nil
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}
