package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"remindcal/internal/alert"
	"remindcal/internal/ics"
	appLog "remindcal/internal/log"
	"remindcal/internal/model"
	"remindcal/internal/reminder"
)

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 64 << 10

// eventDTO is a JSON-friendly view of a reminder.
type eventDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Display     string    `json:"display"`
	Notified    bool      `json:"notified"`
	Source      string    `json:"source,omitempty"`
}

// eventsResponse is the JSON response shape for GET /api/events.
type eventsResponse struct {
	Events   []eventDTO `json:"events"`
	Timezone string     `json:"timezone"`
}

// createRequest accepts either form parts or an absolute scheduled_at.
type createRequest struct {
	Title string `json:"title"`
	reminder.TimeParts
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type timeResponse struct {
	Now time.Time `json:"now"`
	reminder.TimeParts
	Timezone string `json:"timezone"`
}

type permissionResponse struct {
	Permission string `json:"permission"`
}

func (s *Server) toDTO(ev model.Event) eventDTO {
	loc := s.sched.Location()
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		ScheduledAt: ev.ScheduledAt.In(loc),
		Display:     model.FormatLocal(ev.ScheduledAt, loc),
		Notified:    ev.Notified,
		Source:      ev.Source,
	}
}

// handleListEvents returns every reminder in firing order.
func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	list := s.sched.List()
	dtos := make([]eventDTO, 0, len(list))
	for _, ev := range list {
		dtos = append(dtos, s.toDTO(ev))
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:   dtos,
		Timezone: s.sched.Location().String(),
	})
}

// handleCreateEvent adds a reminder.
//
// POST /api/events
//
//	{"title": "Dinner", "date": "2025-03-14", "hour": 7, "minute": 30, "meridiem": "PM"}
//	{"title": "Dinner", "scheduled_at": "2025-03-14T19:30:00-05:00"}
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{Error: "malformed JSON body", Field: "body"})
		return
	}

	var (
		id  string
		err error
	)
	if req.ScheduledAt != nil {
		id, err = s.sched.Add(req.Title, *req.ScheduledAt)
	} else {
		id, err = s.sched.AddParts(req.Title, req.TimeParts)
	}
	if err != nil {
		var ie *reminder.InputError
		if errors.As(err, &ie) {
			writeJSON(w, http.StatusBadRequest, errResp{Error: ie.Error(), Field: ie.Field})
			return
		}
		appLog.Error("api add event failed", err)
		writeError(w, http.StatusInternalServerError, "failed to add event")
		return
	}

	appLog.Info("reminder added", "id", id, "title", req.Title)
	s.maybeRequestPermission()

	ev, _ := s.sched.Get(id)
	writeJSON(w, http.StatusCreated, s.toDTO(ev))
}

// maybeRequestPermission asks for the platform alert permission the first
// time a reminder is added while the state is still undecided.
func (s *Server) maybeRequestPermission() {
	if s.perms == nil || !s.requesting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.requesting.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), s.permissionTimeout)
		defer cancel()
		if s.perms.Permission(ctx) != alert.PermissionDefault {
			return
		}
		p, err := s.perms.RequestPermission(ctx)
		if err != nil {
			appLog.Warn("alert permission request failed", "err", err)
			return
		}
		appLog.Info("alert permission decided", "permission", p.String())
	}()
}

// handleDeleteEvent removes a reminder. Unknown IDs are not an error.
func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.sched.Remove(id) {
		appLog.Info("reminder removed", "id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport serves every reminder as an iCalendar document.
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	body, err := ics.Export(s.sched.List(), "remindcal")
	if err != nil {
		appLog.Error("api export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export events")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="remindcal.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleTime returns the current time split into form parts, used to
// prefill the add form.
func (s *Server) handleTime(w http.ResponseWriter, _ *http.Request) {
	loc := s.sched.Location()
	now := s.sched.Now().In(loc)
	writeJSON(w, http.StatusOK, timeResponse{
		Now:       now,
		TimeParts: reminder.SplitTime(now, loc),
		Timezone:  loc.String(),
	})
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	p := alert.PermissionDenied
	if s.perms != nil {
		p = s.perms.Permission(r.Context())
	}
	writeJSON(w, http.StatusOK, permissionResponse{Permission: p.String()})
}

func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	if s.perms == nil {
		writeError(w, http.StatusServiceUnavailable, reminder.ErrPermissionUnavailable.Error())
		return
	}
	p, err := s.perms.RequestPermission(r.Context())
	if err != nil {
		if errors.Is(err, reminder.ErrPermissionUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, errResp{Error: err.Error()})
			return
		}
		appLog.Error("api permission request failed", err)
		writeError(w, http.StatusInternalServerError, "permission request failed")
		return
	}
	writeJSON(w, http.StatusOK, permissionResponse{Permission: p.String()})
}
