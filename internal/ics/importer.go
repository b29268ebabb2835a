package ics

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "remindcal/internal/log"
	"remindcal/internal/reminder"
)

// seenRetention keeps imported keys around after their reminder time so a
// late re-sync of the same feed does not bring them back.
const seenRetention = 24 * time.Hour

// Importer turns calendar occurrences into scheduler reminders.
//
// Each occurrence is imported at most once; removing an imported reminder
// from the scheduler does not make the next sync recreate it.
type Importer struct {
	sched   *reminder.Scheduler
	fetcher *Fetcher
	sources []Source
	horizon time.Duration

	mu   sync.Mutex
	seen map[string]time.Time // occurrence key -> remind time
}

// NewImporter creates an Importer for the given sources. Occurrences whose
// reminder falls within horizon of now are scheduled on each sync.
func NewImporter(s *reminder.Scheduler, f *Fetcher, sources []Source, horizon time.Duration) *Importer {
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	return &Importer{
		sched:   s,
		fetcher: f,
		sources: sources,
		horizon: horizon,
		seen:    make(map[string]time.Time),
	}
}

// Sync fetches every source and schedules new occurrences. It returns the
// number of reminders added; per-source failures are joined into err.
func (im *Importer) Sync(ctx context.Context) (int, error) {
	results, errs := im.fetcher.FetchAll(ctx, im.sources)

	added := 0
	for _, res := range results {
		n, err := im.importBody(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
		}
		added += n
	}
	im.prune()

	appLog.Info("ics sync completed", "sources", len(im.sources), "added", added, "errors", len(errs))
	return added, errors.Join(errs...)
}

// ImportFile schedules occurrences from a single .ics file on the Fetcher's
// filesystem. The source ID is derived from the file name.
func (im *Importer) ImportFile(path string) (int, error) {
	id := "file:" + filepath.Base(path)
	res, err := im.fetcher.FetchOne(context.Background(), Source{ID: id, URL: "file://" + path})
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return im.importBody(res.Source, res.Body)
}

func (im *Importer) importBody(src Source, body []byte) (int, error) {
	events, err := ParseICS(src, body)
	if err != nil {
		return 0, err
	}

	now := im.sched.Now()
	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: im.sched.Location(),
		RangeStart:      now,
		RangeEnd:        now.Add(im.horizon),
		CatchUp:         true,
	})
	if err != nil {
		return 0, fmt.Errorf("expand %s: %w", src.ID, err)
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	added := 0
	for _, occ := range res.Occurrences {
		key := occ.Key()
		if _, ok := im.seen[key]; ok {
			continue
		}
		id, err := im.sched.AddFrom(src.ID, occ.Title(), occ.RemindAt)
		if err != nil {
			appLog.Error("ics occurrence not scheduled", err, "id", src.ID, "uid", occ.UID)
			continue
		}
		im.seen[key] = occ.RemindAt
		added++
		appLog.Debug("ics occurrence scheduled", "id", src.ID, "uid", occ.UID, "reminder", id, "at", occ.RemindAt)
	}
	return added, nil
}

func (im *Importer) prune() {
	cutoff := im.sched.Now().Add(-seenRetention)
	im.mu.Lock()
	defer im.mu.Unlock()
	for k, at := range im.seen {
		if at.Before(cutoff) {
			delete(im.seen, k)
		}
	}
}

// Run syncs once immediately, then on every firing of the cron spec until
// ctx is cancelled.
func (im *Importer) Run(ctx context.Context, spec string) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(im.sched.Location()),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	runSync := func() {
		if _, err := im.Sync(ctx); err != nil {
			appLog.Error("ics sync failed", err)
		}
	}
	if _, err := c.AddFunc(spec, runSync); err != nil {
		return fmt.Errorf("invalid import schedule %q: %w", spec, err)
	}

	runSync()
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("ics cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("ics cron: "+msg, err, keysAndValues...)
}
