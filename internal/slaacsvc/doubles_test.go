package slaacsvc

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// fakeCanceler is a no-op [Canceler] that records whether it was canceled.
type fakeCanceler struct {
	canceled *bool
}

func (c fakeCanceler) Cancel() { *c.canceled = true }

// fakeScheduler is a synchronous [Scheduler]: the outermost ArmSeconds call
// runs cb, and every callback armed while it runs, before returning,
// recording each requested delay. A callback armed from inside another one
// runs after that one returns rather than nested in it, as a real timer fires
// on its own goroutine, so callbacks that take the engine's lock do not
// deadlock. This drives the engine deterministically in tests without any
// real time passing.
type fakeScheduler struct {
	delays  []uint32
	queue   []func()
	running bool
}

// type check
var _ Scheduler = (*fakeScheduler)(nil)

func (s *fakeScheduler) ArmSeconds(delay uint32, cb func()) (c Canceler) {
	s.delays = append(s.delays, delay)

	canceled := false
	s.queue = append(s.queue, func() {
		if !canceled {
			cb()
		}
	})

	if !s.running {
		s.running = true
		for len(s.queue) > 0 {
			next := s.queue[0]
			s.queue = s.queue[1:]
			next()
		}
		s.running = false
	}

	return fakeCanceler{canceled: &canceled}
}

// recordingScheduler arms timers without running them, so a test can invoke
// the callback on its own schedule.
type recordingScheduler struct {
	armed []struct {
		delay uint32
		cb    func()
	}
}

// type check
var _ Scheduler = (*recordingScheduler)(nil)

func (s *recordingScheduler) ArmSeconds(delay uint32, cb func()) (c Canceler) {
	s.armed = append(s.armed, struct {
		delay uint32
		cb    func()
	}{delay: delay, cb: cb})

	canceled := false

	return fakeCanceler{canceled: &canceled}
}

// last returns the callback most recently armed.
func (s *recordingScheduler) last() (cb func()) {
	return s.armed[len(s.armed)-1].cb
}

// fakePlatform is a [Platform] with a settable clock and no real namespace
// switching.
type fakePlatform struct {
	now Seconds
}

// type check
var _ Platform = (*fakePlatform)(nil)

func (p *fakePlatform) Now() (now Seconds) { return p.now }

func (p *fakePlatform) EnterNamespace() (release func(), err error) {
	return func() {}, nil
}

// fakeTransport is a [Transport] whose SendRS result and call count are
// controlled by the test.
type fakeTransport struct {
	sendErr   error
	sendCalls int
	started   chan struct{}
}

// type check
var _ Transport = (*fakeTransport)(nil)

func (t *fakeTransport) Start(ctx context.Context) (err error) {
	if t.started != nil {
		close(t.started)
	}

	<-ctx.Done()

	return nil
}

func (t *fakeTransport) SendRS(ctx context.Context) (err error) {
	t.sendCalls++

	return t.sendErr
}

// discardLogger returns a logger that drops everything, for tests that
// don't assert on log output.
func discardLogger() (l *slog.Logger) { return slogutil.NewDiscardLogger() }
