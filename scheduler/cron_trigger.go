package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"buildbank/logger"
)

// CronTrigger starts batch runs on a cron schedule (seconds field included).
// A tick that lands while a run is in flight is skipped.
type CronTrigger struct {
	cron     *cron.Cron
	manager  *RunManager
	schedule string
	log      *logger.Logger
}

func NewCronTrigger(schedule string, manager *RunManager, log *logger.Logger) *CronTrigger {
	return &CronTrigger{
		cron:     cron.New(cron.WithSeconds()),
		manager:  manager,
		schedule: schedule,
		log:      logger.OrNop(log),
	}
}

// Start registers the schedule and starts the cron loop.
func (t *CronTrigger) Start() error {
	if _, err := t.cron.AddFunc(t.schedule, t.trigger); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", t.schedule, err)
	}
	t.cron.Start()
	t.log.Info().Str("schedule", t.schedule).Msg("price update scheduled")
	return nil
}

// Stop halts the schedule. The returned context is done once a running
// trigger callback returns; runs it started keep going.
func (t *CronTrigger) Stop() context.Context {
	return t.cron.Stop()
}

func (t *CronTrigger) trigger() {
	err := t.manager.Start()
	switch {
	case errors.Is(err, ErrRunInProgress):
		t.log.Info().Msg("skipping scheduled price update, previous run still in progress")
	case err != nil:
		t.log.Error().Err(err).Msg("failed to start scheduled price update")
	}
}
