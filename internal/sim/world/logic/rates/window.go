// Package rates limits how often something may happen within a window of frames.
package rates

// Window counts events in a fixed window that restarts once it has elapsed.
type Window struct {
	Start uint64
	Count int

	// Suppressed counts events refused since the last allowed one.
	Suppressed int
}

// Allow records an event at frame now. It reports whether the event fits in
// the window and, if not, how many frames remain until the window restarts.
// A zero window or non-positive max allows everything.
func (w *Window) Allow(now, window uint64, max int) (ok bool, cooldown uint64) {
	if window == 0 || max <= 0 {
		return true, 0
	}
	if now < w.Start || now-w.Start >= window {
		w.Start = now
		w.Count = 0
	}
	w.Count++
	if w.Count <= max {
		return true, 0
	}
	w.Suppressed++
	return false, (w.Start + window) - now
}

// TakeSuppressed returns and resets the refused count.
func (w *Window) TakeSuppressed() int {
	n := w.Suppressed
	w.Suppressed = 0
	return n
}
