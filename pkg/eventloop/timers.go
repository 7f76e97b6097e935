package eventloop

import "time"

// Watchdog is the supervisor's alarm. Its expiry is handled exactly like a
// SIGALRM, so the loop wakes up periodically even if no signal arrives.
type Watchdog struct {
	timer *time.Timer
	// arms counts every Arm call.
	arms int
}

// NewWatchdog creates a new (disarmed) watchdog.
func NewWatchdog() *Watchdog {
	return &Watchdog{}
}

// Arm starts the watchdog with the given duration.
// If already armed, it is stopped and re-armed.
func (w *Watchdog) Arm(d time.Duration) {
	w.Stop()
	w.timer = time.NewTimer(d)
	w.arms++
}

// Stop disarms the watchdog.
func (w *Watchdog) Stop() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// expired records that the timer channel was drained.
func (w *Watchdog) expired() {
	w.timer = nil
}

// Chan returns the timer channel, or nil if not armed.
func (w *Watchdog) Chan() <-chan time.Time {
	if w.timer != nil {
		return w.timer.C
	}
	return nil
}
