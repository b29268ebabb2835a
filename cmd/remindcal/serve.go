package main

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"remindcal/internal/alert"
	"remindcal/internal/ics"
	appLog "remindcal/internal/log"
	"remindcal/internal/model"
	"remindcal/internal/reminder"
	"remindcal/internal/web"
)

func serve(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	loc, err := conf.Location()
	if err != nil {
		return err
	}
	sources := icsSources(conf)

	appLog.Info("remindcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"tick", conf.Tick.String(),
		"alert_platform", conf.Alert.Platform,
		"sound", conf.Alert.Sound.Kind,
		"ics_count", len(sources),
		"watch_dir", conf.Import.WatchDir,
	)

	ctx, cancel := signalContext()
	defer cancel()

	hub := web.NewHub(loc)
	dispatcher := alert.Build(conf.Alert, "http://"+conf.Listen+"/", loc, hub)
	dispatcher.Start(ctx)
	if conf.Alert.Platform == "desktop" {
		// Desktop permission is a bus check with no prompt, so decide it
		// up front instead of waiting for the first reminder.
		go func() {
			if _, err := dispatcher.RequestPermission(ctx); err != nil {
				appLog.Warn("desktop notifications unavailable; using fallback", "err", err)
			}
		}()
	}
	defer func() {
		dispatcher.Stop()
		dispatcher.Close()
	}()

	sched := reminder.New(dispatcher,
		reminder.WithLocation(loc),
		reminder.WithListener(func(ev model.Event) {
			appLog.Info("reminder fired", "id", ev.ID, "title", ev.Title, "source", ev.Source)
		}),
	)

	fetcher := ics.NewFetcher(afero.NewOsFs(), conf.Import.CacheDir, nil)
	horizon := time.Duration(conf.Import.HorizonDays) * 24 * time.Hour
	importer := ics.NewImporter(sched, fetcher, sources, horizon)

	bg := &background{cancel: cancel}
	bg.Go("scheduler", true, func() error { return sched.Run(ctx, conf.Tick.Std()) })
	if len(sources) > 0 {
		bg.Go("ics import", false, func() error { return importer.Run(ctx, conf.Import.Cron) })
	}
	if conf.Import.WatchDir != "" {
		bg.Go("ics watch", false, func() error { return importer.Watch(ctx, conf.Import.WatchDir) })
	}

	srv := web.NewServer(sched, dispatcher, hub)
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		appLog.Warn("systemd notify failed", "err", err)
	} else if ok {
		appLog.Debug("systemd notified ready")
	}

	err = web.StartServer(ctx, conf.Listen, srv.Handler())
	cancel()
	bg.Wait()
	appLog.Info("remindcal exiting")
	return err
}

// background runs the long-lived loops of serve. Only a critical loop
// failing shuts the process down; the others log and leave the rest
// running.
type background struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (b *background) Go(name string, critical bool, fn func() error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := fn()
		switch {
		case err == nil:
		case critical:
			appLog.Error(name+" stopped with error; shutting down", err)
			b.cancel()
		default:
			appLog.Error(name+" stopped with error", err)
		}
	}()
}

func (b *background) Wait() { b.wg.Wait() }
