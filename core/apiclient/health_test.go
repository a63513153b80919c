package apiclient

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type breakerEvent struct {
	resource string
	open     bool
}

type recordingObserver struct {
	nopObserver
	mu       sync.Mutex
	breakers []breakerEvent
	failures []string
	sources  []Source
}

func (o *recordingObserver) ObserveBreaker(rt string, open bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.breakers = append(o.breakers, breakerEvent{rt, open})
}

func (o *recordingObserver) ObserveFailure(rt, kind string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, rt+":"+kind)
}

func (o *recordingObserver) ObserveRequest(_ string, src Source, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources = append(o.sources, src)
}

func (o *recordingObserver) breakerEvents() []breakerEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]breakerEvent(nil), o.breakers...)
}

func TestHealthRegistry_threshold(t *testing.T) {
	obs := new(recordingObserver)
	h := NewHealthRegistry(3, time.Hour, obs)

	for i := 1; i <= 2; i++ {
		if h.RecordFailure("courses") {
			t.Fatalf("RecordFailure() #%d tripped the breaker", i)
		}
		assert.False(t, h.ShouldUseFallback("courses"))
	}
	assert.True(t, h.RecordFailure("courses"))
	assert.True(t, h.ShouldUseFallback("courses"))

	// a 4th failure keeps it open without re-arming
	assert.False(t, h.RecordFailure("courses"))
	assert.True(t, h.ShouldUseFallback("courses"))

	rh, ok := h.Snapshot("courses")
	assert.True(t, ok)
	assert.Equal(t, 4, rh.FailCount)
	assert.False(t, rh.LastFailTime.IsZero())

	assert.False(t, h.ShouldUseFallback("materials"), "resources are independent")
	assert.Equal(t, []breakerEvent{{"courses", true}}, obs.breakerEvents())
}

func TestHealthRegistry_timedReset(t *testing.T) {
	obs := new(recordingObserver)
	h := NewHealthRegistry(3, 30*time.Millisecond, obs)
	for i := 0; i < 3; i++ {
		h.RecordFailure("users")
	}
	assert.True(t, h.ShouldUseFallback("users"))

	assert.Eventually(t, func() bool { return !h.ShouldUseFallback("users") }, time.Second, 5*time.Millisecond)
	rh, _ := h.Snapshot("users")
	assert.Equal(t, 0, rh.FailCount)
	assert.Len(t, h.All(), 1, "entries are reset in place, never deleted")
	assert.Eventually(t, func() bool { return len(obs.breakerEvents()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestHealthRegistry_defaults(t *testing.T) {
	h := NewHealthRegistry(0, 0, nil)
	assert.Equal(t, defaultFailureThreshold, h.threshold)
	assert.Equal(t, defaultCooldown, h.cooldown)

	_, ok := h.Snapshot("unknown")
	assert.False(t, ok)
}
