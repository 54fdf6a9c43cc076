package slaacsvc

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_Solicit_SendsOnce(t *testing.T) {
	transport := &fakeTransport{}
	platform := &fakePlatform{now: 0}
	sched := &fakeScheduler{}

	p := newPacer(discardLogger(), transport, platform, sched, 1, 4, &sync.Mutex{})
	p.solicit(0)

	assert.Equal(t, 1, transport.sendCalls)
	assert.Zero(t, p.solicitationsLeft)
}

func TestPacer_Solicit_Burst(t *testing.T) {
	transport := &fakeTransport{}
	platform := &fakePlatform{now: 0}
	sched := &fakeScheduler{}

	p := newPacer(discardLogger(), transport, platform, sched, 3, 4, &sync.Mutex{})
	p.solicit(0)

	assert.Equal(t, 3, transport.sendCalls)
	assert.Zero(t, p.solicitationsLeft)
}

func TestPacer_Solicit_ConcurrentCallIsNoop(t *testing.T) {
	transport := &fakeTransport{}
	platform := &fakePlatform{now: 0}
	sched := &recordingScheduler{}

	p := newPacer(discardLogger(), transport, platform, sched, 3, 4, &sync.Mutex{})
	p.solicit(0)
	require.NotNil(t, p.sendTimer)

	// A second solicit call while the timer is still pending must not
	// re-arm or reset the burst counter.
	p.solicitationsLeft = 99
	p.solicit(0)
	assert.EqualValues(t, 99, p.solicitationsLeft)
	assert.Len(t, sched.armed, 1)
}

func TestPacer_Solicit_DelayRespectsLastRS(t *testing.T) {
	transport := &fakeTransport{}
	platform := &fakePlatform{now: 10}
	sched := &recordingScheduler{}

	p := newPacer(discardLogger(), transport, platform, sched, 1, 4, &sync.Mutex{})
	p.lastRS = 9

	p.solicit(10)
	require.Len(t, sched.armed, 1)
	assert.EqualValues(t, 3, sched.armed[0].delay, "next solicitation should wait until lastRS+interval")
}

func TestPacer_Solicit_NoNegativeDelay(t *testing.T) {
	transport := &fakeTransport{}
	platform := &fakePlatform{now: 100}
	sched := &recordingScheduler{}

	p := newPacer(discardLogger(), transport, platform, sched, 1, 4, &sync.Mutex{})
	p.lastRS = 0

	p.solicit(100)
	require.Len(t, sched.armed, 1)
	assert.Zero(t, sched.armed[0].delay)
}

func TestPacer_LogSendError_Debounces(t *testing.T) {
	transport := &fakeTransport{sendErr: assertError("boom")}
	platform := &fakePlatform{now: 0}
	sched := &recordingScheduler{}

	p := newPacer(discardLogger(), transport, platform, sched, 2, 4, &sync.Mutex{})
	p.solicit(0)
	require.Len(t, sched.armed, 1)

	// Drive the first attempt, then the second, reusing the same error.
	sched.last()()
	require.Len(t, sched.armed, 2)
	sched.last()()

	assert.Equal(t, 2, transport.sendCalls)
	assert.Equal(t, "boom", p.lastErrorMessage)
}

func TestPacer_Stop(t *testing.T) {
	transport := &fakeTransport{}
	platform := &fakePlatform{now: 0}
	sched := &recordingScheduler{}

	p := newPacer(discardLogger(), transport, platform, sched, 1, 4, &sync.Mutex{})
	p.solicit(0)
	require.NotNil(t, p.sendTimer)

	canceled := p.sendTimer.(fakeCanceler).canceled
	p.stop()
	assert.True(t, *canceled)
	assert.Nil(t, p.sendTimer)
}

func TestClampDelay(t *testing.T) {
	assert.EqualValues(t, 0, clampDelay(-5, 0, math.MaxInt32))
	assert.EqualValues(t, 10, clampDelay(10, 0, math.MaxInt32))
	assert.EqualValues(t, math.MaxInt32, clampDelay(math.MaxInt64, 0, math.MaxInt32))
}

// assertError is a trivial error type for tests that just need a stable
// message, avoiding a dependency on errors.New for a single test file.
type assertError string

func (e assertError) Error() (s string) { return string(e) }
