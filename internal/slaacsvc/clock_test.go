package slaacsvc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpiry(t *testing.T) {
	exp, infinite := expiry(100, 50)
	assert.False(t, infinite)
	assert.EqualValues(t, 150, exp)

	_, infinite = expiry(100, InfiniteLifetime)
	assert.True(t, infinite)
}

func TestExpired(t *testing.T) {
	assert.True(t, expired(150, 100, 50))
	assert.True(t, expired(200, 100, 50))
	assert.False(t, expired(149, 100, 50))
	assert.False(t, expired(math.MaxUint32, 100, InfiniteLifetime))
}

func TestFoldDeadline(t *testing.T) {
	assert.EqualValues(t, noNextEvent, foldDeadline(noNextEvent, 100, true))
	assert.EqualValues(t, 100, foldDeadline(noNextEvent, 100, false))
	assert.EqualValues(t, 50, foldDeadline(50, 100, false))
	assert.EqualValues(t, 50, foldDeadline(100, 50, false))
}

func TestClockFunc(t *testing.T) {
	var c Clock = ClockFunc(func() Seconds { return 42 })
	assert.EqualValues(t, 42, c.Now())
}

func TestRealScheduler(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{})

	canceler := s.ArmSeconds(0, func() { close(done) })
	<-done

	// Canceling after firing must not panic.
	canceler.Cancel()
}
