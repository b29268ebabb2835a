// Package alert renders due reminders to the user.
//
// The Dispatcher is the scheduler's sink. It never blocks the tick: events
// are queued and delivered on a worker goroutine, which plays a sound and
// then shows either the platform alert (when permission is granted) or the
// in-process fallbacks. Every failure is logged and swallowed here.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	appLog "remindcal/internal/log"
	"remindcal/internal/model"
	"remindcal/internal/reminder"
)

// Permission is the user-granted state of the platform alert capability.
type Permission int

const (
	PermissionDefault Permission = iota // not yet requested
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Notifier is a platform-level visible/audible alert.
type Notifier interface {
	Permission(ctx context.Context) Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, ev model.Event) error
}

// Sound plays a short audible cue.
type Sound interface {
	Play(ctx context.Context) error
}

// Fallback shows an in-process message when the platform alert is not
// available.
type Fallback interface {
	Show(ctx context.Context, ev model.Event) error
}

// FallbackFunc adapts a function to Fallback.
type FallbackFunc func(ctx context.Context, ev model.Event) error

func (f FallbackFunc) Show(ctx context.Context, ev model.Event) error { return f(ctx, ev) }

var errQueueFull = errors.New("alert queue full")

type DispatcherConfig struct {
	// QueueSize bounds pending alerts. Zero means 64.
	QueueSize int
	// SoundInterval is the minimum gap between two sounds. Zero disables
	// rate limiting.
	SoundInterval time.Duration
	// Timeout bounds a single delivery. Zero means 10s.
	Timeout time.Duration
	// Location renders times in alert bodies. Nil means time.Local.
	Location *time.Location
}

type Dispatcher struct {
	cfg       DispatcherConfig
	platform  Notifier
	sound     Sound
	fallbacks []Fallback
	limiter   *rate.Limiter

	queue chan model.Event

	// mu orders enqueues against Stop so nothing lands after the drain.
	mu      sync.Mutex
	stopped bool

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

var _ reminder.Sink = (*Dispatcher)(nil)

// NewDispatcher builds a Dispatcher. platform and sound may be nil.
func NewDispatcher(cfg DispatcherConfig, platform Notifier, sound Sound, fallbacks ...Fallback) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	d := &Dispatcher{
		cfg:       cfg,
		platform:  platform,
		sound:     sound,
		fallbacks: fallbacks,
		queue:     make(chan model.Event, cfg.QueueSize),
	}
	if cfg.SoundInterval > 0 {
		d.limiter = rate.NewLimiter(rate.Every(cfg.SoundInterval), 1)
	}
	return d
}

// Notify queues ev and returns immediately. A full or stopped dispatcher
// drops the alert and logs it.
func (d *Dispatcher) Notify(ev model.Event) {
	d.enqueue(ev)
}

// enqueue reports whether ev was queued. A queued alert is always
// delivered, by the worker or by Stop.
func (d *Dispatcher) enqueue(ev model.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		appLog.Warn("alert dispatcher stopped; dropping alert", "id", ev.ID, "title", ev.Title)
		return false
	}
	select {
	case d.queue <- ev:
		return true
	default:
		appLog.Error("dropping alert", fmt.Errorf("%w: %w", reminder.ErrAlertDispatch, errQueueFull),
			"id", ev.ID, "title", ev.Title, "queue_size", d.cfg.QueueSize)
		return false
	}
}

// Start runs the delivery worker until Stop is called or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		ctx, d.cancel = context.WithCancel(ctx)
		d.wg.Add(1)
		go d.loop(ctx)
	})
}

// Stop halts the worker and delivers whatever is still queued. Alerts
// already in flight are not cancelled.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		if d.cancel != nil {
			d.cancel()
		}
		d.wg.Wait()
		for {
			select {
			case ev := <-d.queue:
				d.deliver(context.Background(), ev)
			default:
				return
			}
		}
	})
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			// Detached so a shutdown does not cut a visible alert short.
			d.deliver(context.WithoutCancel(ctx), ev)
		}
	}
}

// Permission reports the platform permission; no platform means denied.
func (d *Dispatcher) Permission(ctx context.Context) Permission {
	if d.platform == nil {
		return PermissionDenied
	}
	return d.platform.Permission(ctx)
}

// RequestPermission asks the platform for alert permission.
func (d *Dispatcher) RequestPermission(ctx context.Context) (Permission, error) {
	if d.platform == nil {
		return PermissionDenied, reminder.ErrPermissionUnavailable
	}
	p, err := d.platform.RequestPermission(ctx)
	if err != nil {
		return p, err
	}
	appLog.Info("alert permission", "state", p.String())
	return p, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev model.Event) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("alert delivery panicked", fmt.Errorf("%w: %v", reminder.ErrAlertDispatch, r), "id", ev.ID)
		}
	}()

	d.playSound(ctx, ev)

	if d.platform != nil {
		switch perm := d.platform.Permission(ctx); perm {
		case PermissionGranted:
			err := d.platform.Show(ctx, ev)
			if err == nil {
				appLog.Info("platform alert shown", "id", ev.ID, "title", ev.Title)
				return
			}
			appLog.Error("platform alert failed; using fallback", fmt.Errorf("%w: %w", reminder.ErrAlertDispatch, err), "id", ev.ID)
		default:
			appLog.Debug("platform alert unavailable; using fallback", "id", ev.ID, "permission", perm.String())
		}
	}

	for _, fb := range d.fallbacks {
		if err := fb.Show(ctx, ev); err != nil {
			appLog.Error("fallback alert failed", fmt.Errorf("%w: %w", reminder.ErrAlertDispatch, err), "id", ev.ID)
		}
	}
}

func (d *Dispatcher) playSound(ctx context.Context, ev model.Event) {
	if d.sound == nil {
		return
	}
	if d.limiter != nil && !d.limiter.Allow() {
		appLog.Debug("sound rate-limited", "id", ev.ID)
		return
	}
	if err := d.sound.Play(ctx); err != nil {
		appLog.Error("sound playback failed", fmt.Errorf("%w: %w", reminder.ErrAlertDispatch, err), "id", ev.ID)
	}
}

// Body is the alert text shown under the title.
func Body(ev model.Event, loc *time.Location) string {
	return "Starts now - " + model.FormatLocal(ev.ScheduledAt, loc)
}

// FallbackText is the in-page message for a due reminder.
func FallbackText(ev model.Event) string {
	return "⏰ " + ev.Title + " - it's time!"
}
