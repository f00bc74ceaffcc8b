package session

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrDuplicateSession is returned by Create when the id already names a
// live session.
var ErrDuplicateSession = errors.New("session id already in use")

// Registry owns the map of live sessions. It is not internally locked: the
// host confines every call to its single event loop, and the per-session
// read pumps only touch the registry indirectly, by posting events back to
// that loop.
type Registry struct {
	sessions map[string]*Instance

	// onOutput and onExit are invoked from per-session pump goroutines;
	// the host forwards them onto its loop.
	onOutput func(id string, data []byte)
	onExit   func(id string)
}

// NewRegistry creates an empty registry. The callbacks receive raw pump
// events and must hand them off without blocking for long.
func NewRegistry(onOutput func(id string, data []byte), onExit func(id string)) *Registry {
	return &Registry{
		sessions: make(map[string]*Instance),
		onOutput: onOutput,
		onExit:   onExit,
	}
}

// Create spawns a new session process for id in workingDir. A dead entry
// under the same id is replaced; a live one rejects the call with
// ErrDuplicateSession. Output events for the id start flowing immediately.
func (r *Registry) Create(id, workingDir string, resume bool) error {
	if existing, ok := r.sessions[id]; ok && existing.alive {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}

	spec := BuildLaunchSpec(workingDir, resume)
	inst, err := spawn(id, spec, r.onOutput, r.onExit)
	if err != nil {
		return fmt.Errorf("spawn session %s: %w", id, err)
	}

	r.sessions[id] = inst
	sessionLog.Info("session_created",
		slog.String("id", id),
		slog.String("dir", workingDir),
		slog.Bool("resume", resume),
	)
	return nil
}

// SendInput writes bytes to the session's input stream. Absent or exited
// sessions make this a no-op, not an error.
func (r *Registry) SendInput(id string, data []byte) {
	inst, ok := r.sessions[id]
	if !ok || !inst.alive {
		return
	}
	if err := inst.writeInput(data); err != nil {
		sessionLog.Debug("session_input_failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// Resize adjusts the session's PTY size. No-op when absent or exited;
// resize failures on an already-dead process are swallowed.
func (r *Registry) Resize(id string, cols, rows int) {
	inst, ok := r.sessions[id]
	if !ok || !inst.alive {
		return
	}
	if err := inst.resize(cols, rows); err != nil {
		sessionLog.Debug("session_resize_failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// Destroy terminates the session best-effort and removes it from the
// registry unconditionally. Destruction is registry bookkeeping, not a
// wait for process death; a late exit event for the removed id is ignored.
func (r *Registry) Destroy(id string) {
	inst, ok := r.sessions[id]
	if !ok {
		return
	}
	inst.terminate()
	delete(r.sessions, id)
	sessionLog.Info("session_destroyed", slog.String("id", id))
}

// IsActive reports whether the session is actively producing output.
// Absent and exited sessions report false.
func (r *Registry) IsActive(id string) bool {
	inst, ok := r.sessions[id]
	if !ok || !inst.alive {
		return false
	}
	return inst.activity.Active()
}

// NoteOutput feeds n output bytes into the session's activity window.
// Called by the host loop for each output event; unknown ids (already
// destroyed) are ignored.
func (r *Registry) NoteOutput(id string, n int) {
	if inst, ok := r.sessions[id]; ok {
		inst.activity.Record(n)
	}
}

// NoteExit marks the session as exited. The entry stays queryable until an
// explicit Destroy; exit events for destroyed ids are ignored.
func (r *Registry) NoteExit(id string) {
	inst, ok := r.sessions[id]
	if !ok {
		return
	}
	inst.alive = false
	sessionLog.Info("session_exited", slog.String("id", id))
}

// Shutdown terminates every live session best-effort and clears the map.
func (r *Registry) Shutdown() {
	for id, inst := range r.sessions {
		inst.terminate()
		delete(r.sessions, id)
	}
}

// Len returns the number of registered sessions, live or exited.
func (r *Registry) Len() int {
	return len(r.sessions)
}
