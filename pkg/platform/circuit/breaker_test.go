package circuit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func failTimes(b *Breaker, n int) (opened int) {
	for i := 0; i < n; i++ {
		if _, change := b.RecordFailure(); change.Opened {
			opened++
		}
	}
	return opened
}

func TestDefaultsMatchEventPublisher(t *testing.T) {
	clock := newFakeClock()
	b := New("kafka-audit", WithClock(clock.Now))
	assert.Equal(t, "kafka-audit", b.Name())
	assert.Equal(t, "closed", b.State().String())

	assert.Zero(t, failTimes(b, 4), "four broker errors are still surfaced to the caller")
	assert.False(t, b.IsOpen())

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	assert.False(t, b.Allow())
	clock.Advance(999 * time.Millisecond)
	assert.False(t, b.Allow())
	clock.Advance(time.Millisecond)
	assert.True(t, b.Allow())

	for i := 0; i < 2; i++ {
		usePrimary, change := b.RecordSuccess()
		assert.False(t, usePrimary, "success %d while recovering still goes to the fallback", i+1)
		assert.False(t, change.Closed)
	}
	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.True(t, b.Allow())
}

func TestSuccessBreaksFailureStreak(t *testing.T) {
	b := New("t", WithFailureThreshold(3))

	failTimes(b, 2)
	b.RecordSuccess()
	assert.Zero(t, failTimes(b, 2))
	assert.False(t, b.IsOpen())
	assert.Equal(t, 1, failTimes(b, 1))
}

func TestFailureWhileRecoveringRestartsSuccessCount(t *testing.T) {
	b := New("t", WithFailureThreshold(1), WithSuccessThreshold(2), WithRetryInterval(0))
	require.Equal(t, 1, failTimes(b, 1))

	b.RecordSuccess()
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")

	usePrimary, _ := b.RecordSuccess()
	assert.False(t, usePrimary)
	usePrimary, change2 := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change2.Closed)
}

func TestAllowAdmitsOneCallPerInterval(t *testing.T) {
	clock := newFakeClock()
	b := New("t", WithFailureThreshold(1), WithRetryInterval(time.Minute), WithClock(clock.Now))
	failTimes(b, 1)
	clock.Advance(time.Minute)

	const goroutines = 50
	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	clock.Advance(30 * time.Second)
	assert.False(t, b.Allow())
	clock.Advance(30 * time.Second)
	assert.True(t, b.Allow())
}

func TestZeroRetryIntervalAdmitsEveryCall(t *testing.T) {
	b := New("t", WithFailureThreshold(1), WithRetryInterval(0))
	failTimes(b, 1)

	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow())
	}
}

func TestInvalidOptionsKeepDefaults(t *testing.T) {
	b := New("t", WithFailureThreshold(0), WithSuccessThreshold(-1), WithRetryInterval(-time.Second), WithClock(nil))

	assert.Zero(t, failTimes(b, 4))
	assert.Equal(t, 1, failTimes(b, 1))
	assert.False(t, b.Allow())
}

func TestResetClosesAndClearsCounters(t *testing.T) {
	b := New("t", WithFailureThreshold(2))
	failTimes(b, 2)
	require.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
	assert.Zero(t, failTimes(b, 1))
}

func TestConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("t", WithFailureThreshold(10))

	const goroutines = 50
	var wg sync.WaitGroup
	var opened atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opened.Load())
	assert.True(t, b.IsOpen())
}
