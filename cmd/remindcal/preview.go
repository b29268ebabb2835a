package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"remindcal/internal/ics"
	appLog "remindcal/internal/log"
	"remindcal/internal/reminder"
)

// preview runs one import pass into a scheduler that never ticks and
// prints what would be scheduled. Nothing is alerted.
func preview(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	loc, err := conf.Location()
	if err != nil {
		return err
	}
	sources := icsSources(conf)
	if len(sources) == 0 {
		return errors.New("no ICS sources configured")
	}

	sched := reminder.New(nil, reminder.WithLocation(loc))
	fetcher := ics.NewFetcher(afero.NewOsFs(), conf.Import.CacheDir, nil)
	horizon := time.Duration(conf.Import.HorizonDays) * 24 * time.Hour
	importer := ics.NewImporter(sched, fetcher, sources, horizon)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := importer.Sync(ctx)
	if err != nil {
		// Partial results are still worth printing.
		appLog.Warn("preview: some sources failed", "err", err)
	}

	body, err := ics.Export(sched.List(), "remindcal preview")
	if err != nil {
		return err
	}
	appLog.Info("preview complete", "reminders", n)
	_, err = c.App.Writer.Write(body)
	return err
}
