package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"remindcal/internal/alert"
	appLog "remindcal/internal/log"
	"remindcal/internal/model"
)

// clientBuffer is how many alerts a slow page may fall behind before
// messages to it are dropped.
const clientBuffer = 16

// alertMessage is what the page receives for each fired reminder.
type alertMessage struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Display string `json:"display"`
	Message string `json:"message"`
}

// Hub fans fired reminders out to every open page over WebSocket. It is an
// alert.Fallback, so pages show an in-page toast when the platform alert
// is unavailable.
type Hub struct {
	loc *time.Location

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

var _ alert.Fallback = (*Hub)(nil)

func NewHub(loc *time.Location) *Hub {
	return &Hub{loc: loc, clients: make(map[chan []byte]struct{})}
}

// Show broadcasts ev to all connected pages. Pages that are not keeping up
// miss the message.
func (h *Hub) Show(_ context.Context, ev model.Event) error {
	data, err := json.Marshal(alertMessage{
		ID:      ev.ID,
		Title:   ev.Title,
		Display: model.FormatLocal(ev.ScheduledAt, h.loc),
		Message: alert.FallbackText(ev),
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			appLog.Warn("alert stream client lagging; message dropped", "id", ev.ID)
		}
	}
	return nil
}

// Clients reports the number of connected pages.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// ServeHTTP upgrades GET /api/alerts to a WebSocket and streams alerts
// until the page goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		appLog.Warn("alert stream upgrade failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// The page never sends; CloseRead handles pings and the close frame.
	ctx := conn.CloseRead(r.Context())
	appLog.Debug("alert stream client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				appLog.Debug("alert stream write failed", "err", err)
				return
			}
		}
	}
}
