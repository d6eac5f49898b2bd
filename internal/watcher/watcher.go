// Package watcher runs callbacks when record documents change on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Watch is given a non-positive debounce.
const DefaultDebounce = 500 * time.Millisecond

// ChangeCallback receives the sorted keys of the documents that changed
// since the previous call.
type ChangeCallback func(keys []string)

// Watch starts an fsnotify watcher on dir and processes change events until
// ctx is cancelled. Events for files ending in ext are collected and handed
// to cb once no further event arrived for the debounce interval.
//
// Temporary files left by atomic writes and reserved documents (leading "_")
// are ignored. Writes made by cb itself produce new events; callers must
// make cb converge, e.g. by writing only when something changed.
func Watch(ctx context.Context, dir, ext string, debounce time.Duration, logger *slog.Logger, cb ChangeCallback) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", dir))

	var timer *time.Timer
	var timerCh <-chan time.Time
	pending := make(map[string]struct{})

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped", slog.String("root", dir))
			return nil

		case <-timerCh:
			timer, timerCh = nil, nil
			if len(pending) == 0 {
				continue
			}
			keys := make([]string, 0, len(pending))
			for k := range pending {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			clear(pending)
			logger.Debug("watcher: changes settled",
				slog.String("root", dir),
				slog.Int("count", len(keys)))
			cb(keys)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key, ok := documentKey(ev.Name, ext)
			if !ok {
				continue
			}
			logger.Debug("watcher: event",
				slog.String("key", key),
				slog.String("op", ev.Op.String()))
			pending[key] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// documentKey maps a file path to its document key, reporting false for
// files that are not record documents.
func documentKey(path, ext string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ext) || strings.HasPrefix(name, ".") {
		return "", false
	}
	key := strings.TrimSuffix(name, ext)
	if key == "" || strings.HasPrefix(key, "_") {
		return "", false
	}
	return key, true
}
