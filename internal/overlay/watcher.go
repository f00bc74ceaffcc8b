package overlay

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/clayshell/clayshell/internal/logging"
	"github.com/clayshell/clayshell/internal/platform"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// debounceQuiet is the quiet period a burst of file events must survive
// before the pending action fires.
const debounceQuiet = 500 * time.Millisecond

// Action is the hot-reload action kind held in the debounce slot.
type Action int

const (
	// ActionNone means no action is pending.
	ActionNone Action = iota

	// ActionPatch hot-swaps the style resource in place, keeping the
	// UI's in-memory state.
	ActionPatch

	// ActionReload forces a full cache-bypassing reload.
	ActionReload
)

func (a Action) String() string {
	switch a {
	case ActionPatch:
		return "patch"
	case ActionReload:
		return "reload"
	default:
		return "none"
	}
}

// Watcher watches the overlay root and the plugin directory for edits and
// fires exactly one debounced action per burst. Both watched directories
// share a single pending-timer slot: a new event cancels and replaces the
// timer, and a reload classification upgrades a pending patch before it
// fires.
type Watcher struct {
	overlay *Overlay
	fire    func(Action)
	fsw     *fsnotify.Watcher
	warning string

	mu      sync.Mutex
	pending Action
	timer   *time.Timer

	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching. fire is invoked from a timer goroutine once
// per settled burst; the caller hands it off to its own loop. An error
// here disables hot reload only; on-disk editing and next-restart sync
// stay fully functional.
func NewWatcher(o *Overlay, fire func(Action)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(o.Root()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if err := fsw.Add(o.PluginDir()); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		overlay: o,
		fire:    fire,
		fsw:     fsw,
		warning: platform.CheckFsnotifySupport(o.Root()),
		closeCh: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Warning returns a human-readable caveat when the overlay sits on a
// filesystem with unreliable change notification, or "".
func (w *Watcher) Warning() string { return w.warning }

// Close stops the watcher and cancels any pending action. Safe to call
// multiple times.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		close(w.closeCh)
		_ = w.fsw.Close()
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.pending = ActionNone
		w.mu.Unlock()
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.closeCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			name := filepath.Base(event.Name)
			if !w.qualifies(name) {
				continue
			}
			w.schedule(classify(name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			watchLog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// qualifies filters events to the editable file names plus any script or
// style resource; everything else (sidecars, guidance edits, temp files
// without a recognized extension) is ignored.
func (w *Watcher) qualifies(name string) bool {
	for _, editable := range EditableFiles {
		if name == editable {
			return true
		}
	}
	switch filepath.Ext(name) {
	case ".js", ".css":
		return true
	}
	return false
}

// classify maps a changed file to its action: only the core style resource
// can be patched in place, everything else needs a reload.
func classify(name string) Action {
	if name == StyleFile {
		return ActionPatch
	}
	return ActionReload
}

// schedule writes the candidate action into the shared slot and re-arms
// the single timer. At most one timer is pending at any instant; a reload
// never downgrades to a patch.
func (w *Watcher) schedule(action Action) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if action > w.pending {
		w.pending = action
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceQuiet, w.fireNow)
	watchLog.Debug("reload_scheduled", slog.String("action", w.pending.String()))
}

// fireNow drains the slot and fires. Runs on the timer goroutine; an event
// arriving while it executes simply schedules the next cycle.
func (w *Watcher) fireNow() {
	w.mu.Lock()
	action := w.pending
	w.pending = ActionNone
	w.timer = nil
	w.mu.Unlock()

	if action == ActionNone {
		return
	}
	select {
	case <-w.closeCh:
		return
	default:
	}
	watchLog.Info("reload_fired", slog.String("action", action.String()))
	w.fire(action)
}
