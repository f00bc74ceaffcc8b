package session

import "time"

// Activity classification. A session is "working" when the assistant is
// streaming a response, which shows up as a sustained burst of output.
// The small periodic redraw traffic of an idle interactive screen stays
// under the byte threshold.
const (
	// activityWindow is the rolling window length. The window resets
	// lazily: the first output event arriving after the window expired
	// starts a fresh one. No timer drives the reset.
	activityWindow = 2000 * time.Millisecond

	// activityThreshold is the byte count a window must exceed before the
	// session counts as active.
	activityThreshold = 500

	// activityMaxAge is the staleness cutoff. A window older than this
	// reports inactive even when no new event has arrived to reset it.
	// This check, not the reset, drives the active-to-idle transition for
	// a session that simply went quiet.
	activityMaxAge = 3000 * time.Millisecond
)

// ActivityDetector classifies one session as actively producing output
// versus idle, from a rolling-window byte count. Not safe for concurrent
// use; the host confines each detector to its event loop.
type ActivityDetector struct {
	now           func() time.Time
	bytesInWindow int
	windowStart   time.Time
}

// NewActivityDetector returns a detector using the wall clock.
func NewActivityDetector() *ActivityDetector {
	return &ActivityDetector{now: time.Now}
}

// Record notes n bytes of session output.
func (d *ActivityDetector) Record(n int) {
	now := d.now()
	if now.Sub(d.windowStart) > activityWindow {
		d.bytesInWindow = 0
		d.windowStart = now
	}
	d.bytesInWindow += n
}

// Active reports whether the current window crossed the byte threshold and
// is still fresh.
func (d *ActivityDetector) Active() bool {
	return d.bytesInWindow > activityThreshold && d.now().Sub(d.windowStart) < activityMaxAge
}
