package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "remindcal/internal/log"
)

// DefaultTick is the due-check period.
const DefaultTick = time.Second

// Run drives Tick every period until ctx is cancelled. Periods below one
// second are rounded up to one second by the cron "@every" schedule.
// An overrunning tick delays the next one; ticks never overlap.
// Stopping cancels the timer only; alerts already handed to the sink are
// left alone.
func (s *Scheduler) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return invalid("tick", "must be positive")
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.DelayIfStillRunning(logger)),
	)
	if _, err := c.AddFunc("@every "+every.String(), func() {
		s.Tick(s.now())
	}); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}

	appLog.Info("reminder scheduler started", "every", every.String())
	c.Start()

	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	appLog.Info("reminder scheduler stopped")
	return nil
}

// cronLogger routes robfig/cron's internal logging into appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
