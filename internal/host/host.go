// Package host composes the session registry, the source overlay, and the
// state store behind the boundary the UI collaborator calls.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/clayshell/clayshell/internal/logging"
	"github.com/clayshell/clayshell/internal/overlay"
	"github.com/clayshell/clayshell/internal/session"
	"github.com/clayshell/clayshell/internal/state"
)

var hostLog = logging.ForComponent(logging.CompHost)

// ErrClosed is returned for boundary calls after shutdown began.
var ErrClosed = errors.New("host is closed")

// reloadGrace is the fixed pause between pushing requestSaveState and
// forcing the reload. There is no acknowledgment handshake: a UI that
// cannot persist within the grace period loses unsaved state.
const reloadGrace = 300 * time.Millisecond

// pickerTimeout bounds how long a native directory-picker dialog may sit
// open before the call reports none.
const pickerTimeout = 5 * time.Minute

// UI is the push side of the boundary: fire-and-forget signals to the UI
// collaborator. All methods are invoked from the host loop and must not
// block for long.
type UI interface {
	Output(id string, data []byte)
	HotReloadStyle()
	RequestSaveState()
	ForceReload()
}

// Config wires a Host's collaborators.
type Config struct {
	Overlay       *overlay.Overlay
	Store         *state.Store
	PickerCommand string
}

// Host runs the single cooperative event loop. Process output, process
// exits, debounce fires, and session boundary calls all execute as posted
// closures on one goroutine, so the registry and activity windows need no
// locking. Handlers must not block: a stalled handler stalls every
// session's output delivery.
type Host struct {
	cfg      Config
	registry *session.Registry
	watcher  *overlay.Watcher

	uiMu sync.RWMutex
	ui   UI

	events    chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates the host, starts its loop, and arms the hot-reload watcher.
// Watcher setup failure is non-fatal: it disables hot reload only, leaving
// on-disk editing and next-restart sync functional.
func New(cfg Config) *Host {
	h := &Host{
		cfg:    cfg,
		events: make(chan func(), 256),
		closed: make(chan struct{}),
	}
	h.registry = session.NewRegistry(h.onOutput, h.onExit)
	go h.loop()

	watcher, err := overlay.NewWatcher(cfg.Overlay, h.onReloadAction)
	if err != nil {
		hostLog.Warn("hot_reload_disabled", slog.String("error", err.Error()))
	} else {
		h.watcher = watcher
		if warning := watcher.Warning(); warning != "" {
			hostLog.Warn("hot_reload_degraded", slog.String("warning", warning))
		}
	}
	return h
}

// SetUI attaches the push-signal sink. Pushes before attachment are
// dropped.
func (h *Host) SetUI(ui UI) {
	h.uiMu.Lock()
	h.ui = ui
	h.uiMu.Unlock()
}

func (h *Host) currentUI() UI {
	h.uiMu.RLock()
	defer h.uiMu.RUnlock()
	return h.ui
}

func (h *Host) loop() {
	for {
		select {
		case <-h.closed:
			return
		case fn := <-h.events:
			fn()
		}
	}
}

// post queues fn onto the loop; false when the host is closed.
func (h *Host) post(fn func()) bool {
	select {
	case <-h.closed:
		return false
	case h.events <- fn:
		return true
	}
}

// call runs fn on the loop and waits for it; false when the host closed
// before fn could run.
func (h *Host) call(fn func()) bool {
	done := make(chan struct{})
	if !h.post(func() {
		fn()
		close(done)
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-h.closed:
		return false
	}
}

// onOutput runs on a session's pump goroutine; the work happens on the
// loop. Events for ids destroyed in the meantime fall through as no-ops.
func (h *Host) onOutput(id string, data []byte) {
	h.post(func() {
		h.registry.NoteOutput(id, len(data))
		if ui := h.currentUI(); ui != nil {
			ui.Output(id, data)
		}
	})
}

func (h *Host) onExit(id string) {
	h.post(func() {
		h.registry.NoteExit(id)
	})
}

// onReloadAction receives the settled debounce action. A patch swaps the
// style in place; a reload asks the UI to persist, waits the grace period
// off-loop, then forces the cache-bypassing reload.
func (h *Host) onReloadAction(action overlay.Action) {
	h.post(func() {
		ui := h.currentUI()
		if ui == nil {
			return
		}
		switch action {
		case overlay.ActionPatch:
			ui.HotReloadStyle()
		case overlay.ActionReload:
			ui.RequestSaveState()
			time.AfterFunc(reloadGrace, func() {
				h.post(func() {
					if ui := h.currentUI(); ui != nil {
						ui.ForceReload()
					}
				})
			})
		}
	})
}

// CreateSession spawns a session. Duplicate live ids report
// session.ErrDuplicateSession; failure to spawn at all is the one hard
// error surfaced to the caller.
func (h *Host) CreateSession(id, workingDir string, resume bool) error {
	var err error
	if !h.call(func() { err = h.registry.Create(id, workingDir, resume) }) {
		return ErrClosed
	}
	return err
}

// SendInput writes bytes to a session's input stream; no-op when the id is
// absent or exited.
func (h *Host) SendInput(id string, data []byte) {
	h.post(func() { h.registry.SendInput(id, data) })
}

// Resize adjusts a session's PTY size; failures are swallowed.
func (h *Host) Resize(id string, cols, rows int) {
	h.post(func() { h.registry.Resize(id, cols, rows) })
}

// DestroySession terminates best-effort and forgets the id.
func (h *Host) DestroySession(id string) {
	h.post(func() { h.registry.Destroy(id) })
}

// IsActive reports whether a session is actively producing output.
func (h *Host) IsActive(id string) bool {
	var active bool
	h.call(func() { active = h.registry.IsActive(id) })
	return active
}

// SaveState persists the UI's opaque snapshot. File I/O runs on the caller
// goroutine, never on the loop.
func (h *Host) SaveState(snapshot json.RawMessage) bool {
	return h.cfg.Store.Save(snapshot)
}

// LoadState returns the persisted snapshot, or ok=false when absent.
func (h *Host) LoadState() (json.RawMessage, bool) {
	return h.cfg.Store.Load()
}

// ListPlugins enumerates user-dropped overlay plugins.
func (h *Host) ListPlugins() overlay.Plugins {
	return h.cfg.Overlay.ListPlugins()
}

// ResetEditableSource restores the bundled editable UI files.
func (h *Host) ResetEditableSource() bool {
	return h.logOverlayOp("reset_editable", h.cfg.Overlay.ResetEditableSource)
}

// ResetGuidance deletes and regenerates the guidance document.
func (h *Host) ResetGuidance() bool {
	return h.logOverlayOp("reset_guidance", h.cfg.Overlay.ResetGuidance)
}

// NukeOverlay resets everything including plugins.
func (h *Host) NukeOverlay() bool {
	return h.logOverlayOp("nuke_overlay", h.cfg.Overlay.Nuke)
}

func (h *Host) logOverlayOp(name string, op func() error) bool {
	if err := op(); err != nil {
		hostLog.Warn("overlay_op_failed", slog.String("op", name), slog.String("error", err.Error()))
		return false
	}
	return true
}

// PickDirectory runs the configured native directory-picker command and
// returns the chosen path, or ok=false when the user cancelled or the
// picker is unavailable. Runs on the caller goroutine: dialogs block.
func (h *Host) PickDirectory(ctx context.Context) (string, bool) {
	fields := strings.Fields(h.cfg.PickerCommand)
	if len(fields) == 0 {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, pickerTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, fields[0], fields[1:]...).Output()
	if err != nil {
		hostLog.Debug("picker_failed", slog.String("error", err.Error()))
		return "", false
	}
	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", false
	}
	return path, true
}

// WatcherActive reports whether hot reload is armed.
func (h *Host) WatcherActive() bool { return h.watcher != nil }

// Close shuts down in order: stop watching, ask the UI to persist, give it
// the grace period, terminate sessions, stop the loop. Safe to call more
// than once; boundary calls afterwards are no-ops or ErrClosed.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		if h.watcher != nil {
			h.watcher.Close()
		}
		h.call(func() {
			if ui := h.currentUI(); ui != nil {
				ui.RequestSaveState()
			}
		})
		time.Sleep(reloadGrace)
		h.call(func() { h.registry.Shutdown() })
		close(h.closed)
	})
}
