package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	appLog "remindcal/internal/log"
	"remindcal/internal/model"
	"remindcal/internal/reminder"
)

const (
	notificationsName   = "org.freedesktop.Notifications"
	notificationsPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsNotify = notificationsName + ".Notify"
	nameHasOwner        = "org.freedesktop.DBus.NameHasOwner"

	urgencyCritical byte = 2
)

// DesktopNotifier raises freedesktop notifications over the session bus.
//
// Permission maps onto the bus state: default until the first check,
// granted when a notification daemon owns org.freedesktop.Notifications,
// denied when the bus is unreachable or nobody owns the name.
type DesktopNotifier struct {
	appName string
	loc     *time.Location

	mu   sync.Mutex
	conn *dbus.Conn
	perm Permission
	// replaces keeps one desktop notification per reminder.
	replaces map[string]uint32

	connect func() (*dbus.Conn, error)
}

func NewDesktopNotifier(appName string, loc *time.Location) *DesktopNotifier {
	return &DesktopNotifier{
		appName:  appName,
		loc:      loc,
		perm:     PermissionDefault,
		replaces: make(map[string]uint32),
		connect: func() (*dbus.Conn, error) {
			return dbus.ConnectSessionBus()
		},
	}
}

func (n *DesktopNotifier) Permission(_ context.Context) Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.perm
}

// RequestPermission checks the session bus for a notification daemon.
func (n *DesktopNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	conn, err := n.connLocked()
	if err != nil {
		n.perm = PermissionDenied
		return n.perm, fmt.Errorf("%w: session bus: %v", reminder.ErrPermissionUnavailable, err)
	}

	var owned bool
	if err := conn.BusObject().CallWithContext(ctx, nameHasOwner, 0, notificationsName).Store(&owned); err != nil {
		n.perm = PermissionDenied
		return n.perm, fmt.Errorf("%w: %v", reminder.ErrPermissionUnavailable, err)
	}
	if !owned {
		n.perm = PermissionDenied
		return n.perm, fmt.Errorf("%w: no notification daemon on the session bus", reminder.ErrPermissionUnavailable)
	}
	n.perm = PermissionGranted
	return n.perm, nil
}

func (n *DesktopNotifier) Show(ctx context.Context, ev model.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	conn, err := n.connLocked()
	if err != nil {
		return err
	}

	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(urgencyCritical),
		"category": dbus.MakeVariant("x-remindcal.reminder"),
	}
	obj := conn.Object(notificationsName, notificationsPath)
	call := obj.CallWithContext(ctx, notificationsNotify, 0,
		n.appName,
		n.replaces[ev.ID],
		"alarm-symbolic",
		ev.Title,
		Body(ev, n.loc),
		[]string{},
		hints,
		int32(-1),
	)
	if call.Err != nil {
		// The daemon may have gone away; reconnect on the next alert.
		n.closeLocked()
		return fmt.Errorf("desktop notify: %w", call.Err)
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("desktop notify reply: %w", err)
	}
	n.replaces[ev.ID] = id
	return nil
}

// Close releases the bus connection.
func (n *DesktopNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closeLocked()
	return nil
}

func (n *DesktopNotifier) connLocked() (*dbus.Conn, error) {
	if n.conn != nil && n.conn.Connected() {
		return n.conn, nil
	}
	conn, err := n.connect()
	if err != nil {
		return nil, err
	}
	n.conn = conn
	return conn, nil
}

func (n *DesktopNotifier) closeLocked() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Close(); err != nil {
		appLog.Debug("closing session bus", "err", err)
	}
	n.conn = nil
}
