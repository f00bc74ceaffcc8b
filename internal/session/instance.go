package session

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/time/rate"

	"github.com/clayshell/clayshell/internal/logging"
)

var sessionLog = logging.ForComponent(logging.CompSession)

// chunkLogLimiter throttles per-chunk debug logging; assistant output can
// arrive at thousands of chunks per second.
var chunkLogLimiter = rate.Sometimes{Interval: 5 * time.Second}

// Instance is one live PTY-backed session: the spawned process, its PTY
// master, and the rolling activity window. All fields except the read pump
// are confined to the owner's event loop.
type Instance struct {
	ID string

	cmd      *exec.Cmd
	ptmx     *os.File
	alive    bool
	activity *ActivityDetector
}

// spawn starts the process described by spec on a fresh PTY and begins the
// read pump. onOutput receives ordered output chunks; onExit fires once
// when the process ends. Both are invoked from the pump goroutine.
func spawn(id string, spec LaunchSpec, onOutput func(id string, data []byte), onExit func(id string)) (*Instance, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:       id,
		cmd:      cmd,
		ptmx:     ptmx,
		alive:    true,
		activity: NewActivityDetector(),
	}

	go inst.readPump(onOutput, onExit)
	return inst, nil
}

// readPump delivers PTY output in emission order until the process ends.
// One goroutine per session, single consumer downstream.
func (i *Instance) readPump(onOutput func(id string, data []byte), onExit func(id string)) {
	buf := make([]byte, 4096)
	for {
		n, err := i.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunkLogLimiter.Do(func() {
				sessionLog.Debug("session_output", slog.String("id", i.ID), slog.Int("bytes", n))
			})
			onOutput(i.ID, chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				sessionLog.Debug("session_read_ended", slog.String("id", i.ID), slog.String("error", err.Error()))
			}
			break
		}
	}

	_ = i.cmd.Wait()
	onExit(i.ID)
}

// writeInput writes bytes to the process's input stream.
func (i *Instance) writeInput(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := i.ptmx.Write(data)
	return err
}

// resize changes the PTY window size. Failures on a dead PTY are the
// caller's to swallow.
func (i *Instance) resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	return pty.Setsize(i.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// terminate sends a best-effort terminate signal and closes the PTY.
// It does not wait for the process to die; the read pump observes the
// close and reports the exit on its own.
func (i *Instance) terminate() {
	if i.cmd != nil && i.cmd.Process != nil {
		if err := i.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			sessionLog.Debug("session_terminate_signal_failed", slog.String("id", i.ID), slog.String("error", err.Error()))
		}
	}
	if i.ptmx != nil {
		_ = i.ptmx.Close()
	}
}
