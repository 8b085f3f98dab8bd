package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock_AdvanceFiresExpiredTimers(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	var fired []string
	c.AfterFunc(time.Second, func() { fired = append(fired, "one") })
	c.AfterFunc(3*time.Second, func() { fired = append(fired, "three") })

	assert.Equal(t, 2, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"one"}, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"one", "three"}, fired)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, start.Add(6*time.Second), c.Now())
}

func TestMockClock_StoppedTimerDoesNotFire(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestMockClock_Since(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewMockClock(start)
	c.Advance(250 * time.Millisecond)

	assert.Equal(t, 250*time.Millisecond, c.Since(start))
}

func TestRealClock(t *testing.T) {
	c := NewRealClock()
	before := c.Now()

	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.GreaterOrEqual(t, c.Since(before), time.Millisecond)
}
