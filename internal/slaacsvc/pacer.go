package slaacsvc

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// pacer is the C4 Solicitation Pacer: it bounds the number of Router
// Solicitations sent in a burst, spaces them by the configured interval, and
// debounces duplicate transport send errors, per spec.md §4.4.
//
// sendTick is armed directly as a [Scheduler] callback, so it runs on
// whatever goroutine the scheduler uses (a real timer goroutine under
// [realScheduler]) rather than on a caller already holding the engine's
// lock. mu is the owning [Engine]'s mutex; sendTick takes it itself so that
// it never races with Engine methods that read or write the pacer's fields
// (solicit, stop, lastErrorMessage) under that same lock.
type pacer struct {
	logger    *slog.Logger
	transport Transport
	platform  Platform
	scheduler Scheduler
	mu        *sync.Mutex

	solicitationCount int32
	interval          int32 // seconds

	solicitationsLeft int32
	lastRS            int64 // monotonic seconds; math.MinInt64 means "never"
	sendTimer         Canceler
	lastErrorMessage  string
}

// newPacer returns a pacer ready to be driven by solicit. mu must be the
// mutex the owning [Engine] holds around every other access to the pacer's
// fields.
func newPacer(logger *slog.Logger, transport Transport, platform Platform, scheduler Scheduler, count int32, interval int32, mu *sync.Mutex) (p *pacer) {
	return &pacer{
		logger:    logger,
		transport: transport,
		platform:  platform,
		scheduler: scheduler,
		mu:        mu,

		solicitationCount: count,
		interval:          interval,
		lastRS:            math.MinInt64,
	}
}

// solicit schedules a Router Solicitation burst.  A concurrent call while a
// send timer is already pending is a no-op, per P6.
func (p *pacer) solicit(now Seconds) {
	if p.sendTimer != nil {
		return
	}

	delay := clampDelay(p.lastRS+int64(p.interval)-int64(now), 0, math.MaxInt32)
	p.solicitationsLeft = p.solicitationCount

	rearm(p.scheduler, &p.sendTimer, uint32(delay), p.sendTick)
}

// sendTick is the pacer's timer callback.  It invokes the transport, logs
// and debounces send failures, and reschedules itself until the burst is
// exhausted.  It takes the engine's lock itself, since the scheduler invokes
// it directly rather than through an Engine method.
func (p *pacer) sendTick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	cancel(&p.sendTimer)

	release, err := p.platform.EnterNamespace()
	if err != nil {
		p.logger.Debug("entering namespace for solicitation", slogutil.KeyError, err)

		return
	}
	defer release()

	ctx := context.Background()
	if sendErr := p.transport.SendRS(ctx); sendErr != nil {
		p.logSendError(sendErr)
	} else {
		p.solicitationsLeft--
		p.lastErrorMessage = ""
	}

	p.lastRS = int64(p.platform.Now())

	if p.solicitationsLeft > 0 {
		rearm(p.scheduler, &p.sendTimer, uint32(p.interval), p.sendTick)
	}
}

// logSendError debounces repeated identical transport errors: a new message
// logs at warn, a repeat of the same message logs at debug.
func (p *pacer) logSendError(err error) {
	msg := err.Error()
	if msg == p.lastErrorMessage {
		p.logger.Debug("sending router solicitation", slogutil.KeyError, err)

		return
	}

	p.lastErrorMessage = msg
	p.logger.Warn("sending router solicitation", slogutil.KeyError, err)
}

// stop cancels any pending send timer, for use on teardown.
func (p *pacer) stop() { cancel(&p.sendTimer) }

// clampDelay clamps v into [lo, hi] and returns it as a non-negative
// uint32-representable value.
func clampDelay(v, lo, hi int64) (res int64) {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
