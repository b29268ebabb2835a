package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	appLog "remindcal/internal/log"
	"remindcal/internal/model"
	"remindcal/internal/reminder"
)

const permissionExpr = `typeof Notification === "undefined" ? "unsupported" : Notification.permission`

const requestPermissionExpr = `typeof Notification === "undefined"
	? Promise.resolve("unsupported")
	: Notification.requestPermission()`

// BrowserNotifier shows Web Notifications inside a running Chrome that was
// started with --remote-debugging-port. It opens a tab on pageURL (the web
// view) so notifications come from that origin and the browser's own
// permission prompt and site settings apply.
type BrowserNotifier struct {
	devtoolsURL string
	pageURL     string
	loc         *time.Location

	mu        sync.Mutex
	tab       context.Context
	cancelTab context.CancelFunc

	// eval runs a JS expression in the tab and decodes the result into res.
	eval func(ctx context.Context, expr string, await bool, res any) error
}

func NewBrowserNotifier(devtoolsURL, pageURL string, loc *time.Location) *BrowserNotifier {
	b := &BrowserNotifier{devtoolsURL: devtoolsURL, pageURL: pageURL, loc: loc}
	b.eval = b.evaluate
	return b
}

func (b *BrowserNotifier) Permission(ctx context.Context) Permission {
	var state string
	if err := b.eval(ctx, permissionExpr, false, &state); err != nil {
		appLog.Debug("browser permission check failed", "err", err)
		return PermissionDenied
	}
	return parseBrowserPermission(state)
}

func (b *BrowserNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	var state string
	if err := b.eval(ctx, requestPermissionExpr, true, &state); err != nil {
		return PermissionDenied, fmt.Errorf("%w: %v", reminder.ErrPermissionUnavailable, err)
	}
	p := parseBrowserPermission(state)
	if p != PermissionGranted {
		return p, fmt.Errorf("%w: browser reports %q", reminder.ErrPermissionUnavailable, state)
	}
	return p, nil
}

func (b *BrowserNotifier) Show(ctx context.Context, ev model.Event) error {
	expr, err := notificationExpr(ev, b.loc)
	if err != nil {
		return err
	}
	var ok bool
	if err := b.eval(ctx, expr, false, &ok); err != nil {
		return fmt.Errorf("browser notify: %w", err)
	}
	if !ok {
		return errors.New("browser notify: notification not created")
	}
	return nil
}

// Close closes the tab it opened; the browser keeps running.
func (b *BrowserNotifier) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelTab != nil {
		b.cancelTab()
		b.tab, b.cancelTab = nil, nil
	}
	return nil
}

func parseBrowserPermission(state string) Permission {
	switch state {
	case "granted":
		return PermissionGranted
	case "default":
		return PermissionDefault
	default:
		// "denied" and "unsupported"
		return PermissionDenied
	}
}

// notificationExpr builds the JS that raises one notification. The tag is
// the reminder ID so a repeated alert replaces the previous one.
func notificationExpr(ev model.Event, loc *time.Location) (string, error) {
	title, err := json.Marshal(ev.Title)
	if err != nil {
		return "", err
	}
	opts, err := json.Marshal(map[string]any{
		"body":     Body(ev, loc),
		"tag":      ev.ID,
		"renotify": true,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(function (t, o) {
	if (typeof Notification === "undefined" || Notification.permission !== "granted") { return false; }
	const n = new Notification(t, o);
	n.onclick = () => { window.focus(); n.close(); };
	return true;
})(%s, %s)`, title, opts), nil
}

func (b *BrowserNotifier) evaluate(ctx context.Context, expr string, await bool, res any) error {
	tab, err := b.attach()
	if err != nil {
		return err
	}

	// Derive from the tab so chromedp finds its target, and honour ctx's
	// deadline without closing the tab.
	runCtx, cancel := context.WithCancel(tab)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	opt := func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(await)
	}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, res, opt)); err != nil {
		if tab.Err() != nil {
			b.Close()
		}
		return err
	}
	return nil
}

func (b *BrowserNotifier) attach() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tab != nil && b.tab.Err() == nil {
		return b.tab, nil
	}
	if b.devtoolsURL == "" {
		return nil, errors.New("browser devtools URL is not configured")
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), b.devtoolsURL)
	tab, cancelTab := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tab, chromedp.Navigate(b.pageURL)); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("attach to browser: %w", err)
	}
	b.tab = tab
	b.cancelTab = func() {
		cancelTab()
		cancelAlloc()
	}
	appLog.Info("attached to browser", "devtools", b.devtoolsURL, "page", b.pageURL)
	return tab, nil
}
