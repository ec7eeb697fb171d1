package audit

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TamperAlert describes an out-of-band modification to the active log file
// observed between appends: something other than this Logger truncated,
// removed, or replaced it.
type TamperAlert struct {
	Path string
	Op   string
	At   time.Time
}

// Watcher watches the active log file for external tampering between
// appends: a best-effort live signal layered on top of the offline chain
// verifier, which can only detect tampering after the fact. Rotation
// (rotateIfNeededLocked renaming path -> path.1 and reopening) is the
// Logger's own doing and is not reported as tampering.
type Watcher struct {
	fsw   *fsnotify.Watcher
	alert chan TamperAlert
	done  chan struct{}
}

// WatchForTampering starts watching l's active log file. Call Close to stop.
// Alerts arrive on the returned channel; callers should select on it
// alongside their own shutdown signal, since it is never closed while the
// watcher is running.
func (l *Logger) WatchForTampering() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("audit: starting file watcher: %w", err)
	}
	if err := fsw.Add(l.path); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("audit: watching %s: %w", l.path, err)
	}

	w := &Watcher{
		fsw:   fsw,
		alert: make(chan TamperAlert, 8),
		done:  make(chan struct{}),
	}

	go w.run(l)
	return w, nil
}

func (w *Watcher) run(l *Logger) {
	defer close(w.alert)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.isSelfRotation(l, ev) {
				continue
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				select {
				case w.alert <- TamperAlert{Path: ev.Name, Op: ev.Op.String(), At: time.Now()}:
				default:
				}
				_ = l.Log(EventLiveTamperAlert, fmt.Sprintf("external %s on %s", ev.Op, ev.Name), nil)
			}
		case <-w.done:
			return
		}
	}
}

// isSelfRotation reports whether ev corresponds to the Logger's own
// in-progress rotateIfNeededLocked rename, which briefly removes path before
// recreating it and should not be reported as tampering.
func (w *Watcher) isSelfRotation(l *Logger, ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Remove == 0 && ev.Op&fsnotify.Rename == 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := os.Stat(l.path)
	return err == nil && l.f != nil
}

// Alerts returns the channel live tamper alerts arrive on.
func (w *Watcher) Alerts() <-chan TamperAlert { return w.alert }

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
