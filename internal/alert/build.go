package alert

import (
	"os"
	"time"

	"remindcal/internal/config"
	appLog "remindcal/internal/log"
)

// Build wires a Dispatcher from configuration. pageURL is the web view's
// address, used by the browser platform. Extra fallbacks (such as the web
// view's alert hub) are shown after the log fallback.
func Build(cfg config.AlertConfig, pageURL string, loc *time.Location, extra ...Fallback) *Dispatcher {
	var platform Notifier
	switch cfg.Platform {
	case "desktop":
		platform = NewDesktopNotifier("remindcal", loc)
	case "browser":
		platform = NewBrowserNotifier(cfg.BrowserDevtoolsURL, pageURL, loc)
	}

	var sound Sound
	switch cfg.Sound.Kind {
	case "bell":
		sound = BellSound{W: os.Stdout}
	case "buzzer":
		sound = NewBuzzerSound(cfg.Sound.GPIOPin, cfg.Sound.Pulse.Std())
	}

	fallbacks := append([]Fallback{LogFallback{Location: loc}}, extra...)

	appLog.Info("alert sink configured",
		"platform", cfg.Platform,
		"sound", cfg.Sound.Kind,
		"queue_size", cfg.QueueSize,
		"fallbacks", len(fallbacks),
	)

	return NewDispatcher(DispatcherConfig{
		QueueSize:     cfg.QueueSize,
		SoundInterval: cfg.Sound.MinInterval.Std(),
		Location:      loc,
	}, platform, sound, fallbacks...)
}

// Close releases platform resources held by the dispatcher's notifier.
func (d *Dispatcher) Close() {
	if c, ok := d.platform.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
