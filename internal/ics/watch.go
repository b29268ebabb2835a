package ics

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "remindcal/internal/log"
)

// watchDebounce lets editors finish writing before a file is imported.
const watchDebounce = 250 * time.Millisecond

// Watch imports every *.ics file already in dir, then imports files that are
// created or rewritten there until ctx is cancelled.
func (im *Importer) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.ics"))
	for _, path := range matches {
		im.importLogged(path)
	}

	var (
		timerMu sync.Mutex
		timers  = make(map[string]*time.Timer)
	)
	debounce := func(path string) {
		timerMu.Lock()
		defer timerMu.Unlock()
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(watchDebounce, func() {
			timerMu.Lock()
			delete(timers, path)
			timerMu.Unlock()
			im.importLogged(path)
		})
	}
	defer func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		for _, t := range timers {
			t.Stop()
		}
	}()

	appLog.Info("ics watch started", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".ics") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				debounce(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// keep watching
			appLog.Warn("ics watch error", "err", err)
		}
	}
}

func (im *Importer) importLogged(path string) {
	n, err := im.ImportFile(path)
	if err != nil {
		appLog.Error("ics file import failed", err, "path", path)
		return
	}
	appLog.Info("ics file imported", "path", path, "added", n)
}
