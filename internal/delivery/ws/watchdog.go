package ws

import "time"

type armedTimer struct {
	timer *time.Timer
	gen   uint64
}

// InactivityWatchdog demotes a user to away after a fixed silence
// window. Timers are per-user, not per-connection, consistent with the
// collapsed presence model.
//
// Arm and Disarm must be called from the hub loop. Expiry fires on a
// timer goroutine and only invokes the expire callback, which is
// expected to re-enter the loop and check Expired before acting: a
// newer Arm or a Disarm bumps the generation and invalidates any
// expiry already in flight.
type InactivityWatchdog struct {
	timeout time.Duration
	expire  func(userID string, gen uint64)
	armed   map[string]armedTimer
	nextGen uint64
}

// NewInactivityWatchdog creates a watchdog with the given silence
// window. expire is called with the arming generation when it elapses.
func NewInactivityWatchdog(timeout time.Duration, expire func(userID string, gen uint64)) *InactivityWatchdog {
	return &InactivityWatchdog{
		timeout: timeout,
		expire:  expire,
		armed:   make(map[string]armedTimer),
	}
}

// Arm cancels any existing timer for userID and schedules a new one.
func (w *InactivityWatchdog) Arm(userID string) {
	if prev, ok := w.armed[userID]; ok {
		prev.timer.Stop()
	}
	w.nextGen++
	gen := w.nextGen
	w.armed[userID] = armedTimer{
		timer: time.AfterFunc(w.timeout, func() { w.expire(userID, gen) }),
		gen:   gen,
	}
}

// Disarm cancels without rescheduling. Used on disconnect. Safe to
// call for users that were never armed.
func (w *InactivityWatchdog) Disarm(userID string) {
	if prev, ok := w.armed[userID]; ok {
		prev.timer.Stop()
		delete(w.armed, userID)
	}
}

// Expired reports whether the expiry identified by gen is still the
// current arming for userID, clearing the entry when it is. A stale
// generation means the user was re-armed or disarmed after this timer
// was scheduled, so the expiry must be ignored.
func (w *InactivityWatchdog) Expired(userID string, gen uint64) bool {
	cur, ok := w.armed[userID]
	if !ok || cur.gen != gen {
		return false
	}
	delete(w.armed, userID)
	return true
}
