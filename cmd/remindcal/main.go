package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"remindcal/internal/config"
	"remindcal/internal/ics"
	appLog "remindcal/internal/log"
)

const version = "0.1.0"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		appLog.Error("remindcal failed", err)
		os.Exit(1)
	}
}

func newApp(w io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "remindcal"
	app.HelpName = "remindcal"
	app.Usage = "one-shot event reminders with a local web view"
	app.Version = version
	app.Writer = w
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "./remindcal.yaml",
			Usage: "path to config file (created with defaults if missing)",
		},
		cli.StringFlag{
			Name:  "listen, l",
			Usage: "HTTP listen address (overrides config if set)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (overrides config if set)",
		},
	}
	app.Action = serve
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the scheduler, calendar import and web view",
			Action: serve,
		},
		{
			Name:   "preview",
			Usage:  "import the configured calendars once and print the reminders as .ics",
			Action: preview,
		},
	}
	return app
}

// loadConfig loads the config file named by the global flags and applies
// flag overrides and logging settings.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.GlobalString("config")
	conf, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if listen := c.GlobalString("listen"); listen != "" {
		conf.Listen = listen
	}
	if lvl := c.GlobalString("log-level"); lvl != "" {
		conf.Log.Level = lvl
	}
	appLog.Configure(appLog.ParseLevel(conf.Log.Level), conf.Log.Format, os.Stderr)
	return conf, nil
}

// icsSources builds ICS sources from config, skipping entries without URL.
func icsSources(conf *config.Config) []ics.Source {
	sources := make([]ics.Source, 0, len(conf.Import.ICS))
	for _, csrc := range conf.Import.ICS {
		if csrc.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: csrc.SourceID(), URL: csrc.URL})
	}
	return sources
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
