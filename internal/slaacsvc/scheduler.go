package slaacsvc

import "time"

// Canceler cancels a previously armed one-shot timer.  Canceling an
// already-fired or already-canceled Canceler is a no-op.
type Canceler interface {
	Cancel()
}

// Scheduler arms and cancels the one-shot timers driving the engine: the
// expiry sweep, the solicitation retry, and the first-RA timeout.  Each role
// holds at most one armed Canceler at a time; re-arming always cancels the
// prior one first, per spec.md §5.
//
// Implementations must be safe for concurrent use, since timer callbacks run
// on their own goroutine.
type Scheduler interface {
	// ArmSeconds schedules cb to run after delay seconds.  delay of zero
	// fires as soon as possible.
	ArmSeconds(delay uint32, cb func()) (c Canceler)
}

// realScheduler is the [Scheduler] backed by the Go runtime's timers.
type realScheduler struct{}

// NewScheduler returns the real wall-clock-driven [Scheduler].
func NewScheduler() (s Scheduler) { return realScheduler{} }

// type check
var _ Scheduler = realScheduler{}

// ArmSeconds implements the [Scheduler] interface for realScheduler.
func (realScheduler) ArmSeconds(delay uint32, cb func()) (c Canceler) {
	t := time.AfterFunc(time.Duration(delay)*time.Second, cb)

	return timerCanceler{t: t}
}

// timerCanceler adapts a *[time.Timer] to [Canceler].
type timerCanceler struct {
	t *time.Timer
}

// Cancel implements the [Canceler] interface for timerCanceler.
func (c timerCanceler) Cancel() { c.t.Stop() }

// rearm cancels *cur if non-nil and stores the result of arming cb after
// delay seconds into *cur.  It is the "re-arming always cancels first"
// idiom used by the sweeper, the pacer, and the first-RA timeout.
func rearm(s Scheduler, cur *Canceler, delay uint32, cb func()) {
	if *cur != nil {
		(*cur).Cancel()
		*cur = nil
	}

	*cur = s.ArmSeconds(delay, cb)
}

// cancel cancels *cur if non-nil and clears it.
func cancel(cur *Canceler) {
	if *cur != nil {
		(*cur).Cancel()
		*cur = nil
	}
}
