// Package reminder owns the reminder collection and the periodic due-check.
//
// A Scheduler holds events keyed by ID. Tick compares each unfired event's
// ScheduledAt with the supplied time and hands every due event to the Sink
// exactly once. Events fire at most one tick period late and never early.
package reminder

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "remindcal/internal/log"
	"remindcal/internal/model"
)

// maxIDAttempts bounds retries when the generator returns an existing ID.
const maxIDAttempts = 3

// Sink receives due events. Notify must return promptly and must not
// panic; anything slow belongs on the sink's own goroutine.
type Sink interface {
	Notify(ev model.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev model.Event)

func (f SinkFunc) Notify(ev model.Event) { f(ev) }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides time.Now (used by Run).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithIDGenerator overrides the default UUID-based generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Scheduler) { s.newID = gen }
}

// WithLocation sets the zone used to resolve date/time parts.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithListener registers a callback invoked for every fired event, after
// the sink.
func WithListener(fn func(model.Event)) Option {
	return func(s *Scheduler) { s.listeners = append(s.listeners, fn) }
}

type entry struct {
	ev  model.Event
	seq uint64 // insertion order, breaks ScheduledAt ties
}

// Scheduler is safe for concurrent use. The HTTP view calls Add/Remove/List
// from its own goroutines while Run drives Tick.
type Scheduler struct {
	mu     sync.Mutex
	events map[string]*entry
	seq    uint64

	// tickMu serializes whole Tick passes, including sink dispatch.
	tickMu sync.Mutex

	sink      Sink
	now       func() time.Time
	newID     func() string
	loc       *time.Location
	listeners []func(model.Event)
}

// New constructs a Scheduler. A nil sink discards alerts.
func New(sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		events: make(map[string]*entry),
		sink:   sink,
		now:    time.Now,
		newID:  NewID,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = SinkFunc(func(model.Event) {})
	}
	return s
}

// NewID returns a collision-resistant event ID.
func NewID() string {
	return "ev_" + uuid.NewString()
}

// Location is the zone used to resolve date/time parts and render times.
func (s *Scheduler) Location() *time.Location { return s.loc }

// Now returns the scheduler's clock reading.
func (s *Scheduler) Now() time.Time { return s.now() }

// Add inserts a new unfired event and returns its ID.
func (s *Scheduler) Add(title string, at time.Time) (string, error) {
	return s.AddFrom("", title, at)
}

// AddParts builds the instant from 12-hour clock parts in the scheduler's
// location, then adds the event.
func (s *Scheduler) AddParts(title string, p TimeParts) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", invalid("title", "is required")
	}
	at, err := BuildTime(p, s.loc)
	if err != nil {
		return "", err
	}
	return s.AddFrom("", title, at)
}

// AddFrom is Add for events that originate from an imported calendar.
func (s *Scheduler) AddFrom(source, title string, at time.Time) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "is required")
	}
	if at.IsZero() {
		return "", invalid("scheduled_at", "is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := s.newID()
		if id == "" {
			continue
		}
		if _, exists := s.events[id]; exists {
			appLog.Warn("event id collision; regenerating", "id", id, "attempt", attempt+1)
			continue
		}
		s.seq++
		s.events[id] = &entry{
			ev: model.Event{
				ID:          id,
				Title:       title,
				ScheduledAt: at,
				Source:      source,
			},
			seq: s.seq,
		}
		appLog.Debug("event added", "id", id, "scheduled_at", at.Format(time.RFC3339), "source", source)
		return id, nil
	}
	return "", fmt.Errorf("add %q: %w", title, ErrIDCollision)
}

// Remove deletes the event if present and reports whether it existed.
// Removing an unfired event guarantees it never alerts.
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return false
	}
	delete(s.events, id)
	appLog.Debug("event removed", "id", id)
	return true
}

func (s *Scheduler) Get(id string) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, false
	}
	return e.ev, true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// List returns a snapshot ordered by ScheduledAt, ties in insertion order.
func (s *Scheduler) List() []model.Event {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.events))
	for _, e := range s.events {
		entries = append(entries, e)
	}
	out := snapshot(entries)
	s.mu.Unlock()
	return out
}

// Tick fires every unfired event with ScheduledAt <= now, in ScheduledAt
// order, and returns them. Each event is marked notified before its sink
// call, so it can never fire twice.
func (s *Scheduler) Tick(now time.Time) []model.Event {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	due := make([]*entry, 0)
	for _, e := range s.events {
		if e.ev.Due(now) {
			e.ev.Notified = true
			due = append(due, e)
		}
	}
	fired := snapshot(due)
	s.mu.Unlock()

	for _, ev := range fired {
		s.dispatch(ev)
	}
	if len(fired) > 0 {
		appLog.Debug("tick fired events", "count", len(fired), "now", now.Format(time.RFC3339))
	}
	return fired
}

// dispatch isolates one event's alert so that a misbehaving sink cannot
// keep other due events in the same tick from firing.
func (s *Scheduler) dispatch(ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("alert sink panicked", fmt.Errorf("%w: %v", ErrAlertDispatch, r), "id", ev.ID)
		}
	}()
	s.sink.Notify(ev)
	for _, fn := range s.listeners {
		fn(ev)
	}
}

func snapshot(entries []*entry) []model.Event {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ev.ScheduledAt.Equal(b.ev.ScheduledAt) {
			return a.ev.ScheduledAt.Before(b.ev.ScheduledAt)
		}
		return a.seq < b.seq
	})
	out := make([]model.Event, len(entries))
	for i, e := range entries {
		out[i] = e.ev
	}
	return out
}
