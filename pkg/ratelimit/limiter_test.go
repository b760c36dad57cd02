package ratelimit

import (
	"sync"
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
	return &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(offset time.Duration, base time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = base.Add(offset)
}

type memPersister struct {
	mu    sync.Mutex
	saved map[string][]time.Time
}

func (m *memPersister) SaveRemediations(key string, stamps []time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(stamps) == 0 {
		delete(m.saved, key)
		return nil
	}
	m.saved[key] = append([]time.Time(nil), stamps...)
	return nil
}

func (m *memPersister) LoadRemediations() (map[string][]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]time.Time, len(m.saved))
	for k, v := range m.saved {
		out[k] = v
	}
	return out, nil
}

func TestTryConsume_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	base := clock.Now()
	l := New(3, WithClock(clock.Now))

	tests := []struct {
		at   time.Duration
		want bool
	}{
		{0, true},
		{1 * time.Second, true},
		{2 * time.Second, true},
		{3601 * time.Second, true},
	}

	for _, tt := range tests {
		clock.Set(tt.at, base)
		assert.Equal(t, tt.want, l.TryConsume("pihole_primary"), "call at %s", tt.at)
	}
}

func TestTryConsume_RefusesAtCeiling(t *testing.T) {
	clock := newFakeClock()
	base := clock.Now()
	l := New(3, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		clock.Set(time.Duration(i)*time.Minute, base)
		require.True(t, l.TryConsume("keepalived"))
	}

	clock.Set(10*time.Minute, base)
	assert.False(t, l.TryConsume("keepalived"))
	assert.False(t, l.TryConsume("keepalived"))
	assert.Equal(t, 0, l.Remaining("keepalived"))

	// Independent key is unaffected
	assert.True(t, l.TryConsume("unbound"))
	assert.Equal(t, 2, l.Remaining("unbound"))

	// First stamp ages out exactly one horizon later
	clock.Set(time.Hour, base)
	assert.Equal(t, 1, l.Remaining("keepalived"))
	assert.True(t, l.TryConsume("keepalived"))
	assert.False(t, l.TryConsume("keepalived"))
}

func TestTryConsume_Concurrent(t *testing.T) {
	l := New(3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryConsume("pihole_secondary") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
}

func TestNew_MinimumCeiling(t *testing.T) {
	l := New(0)
	assert.Equal(t, 1, l.Ceiling())
}

func TestWithStore_SurvivesRestart(t *testing.T) {
	clock := newFakeClock()
	base := clock.Now()
	store := &memPersister{saved: make(map[string][]time.Time)}

	first := New(2, WithClock(clock.Now), WithStore(store))
	require.True(t, first.TryConsume("unbound"))
	clock.Set(time.Minute, base)
	require.True(t, first.TryConsume("unbound"))

	second := New(2, WithClock(clock.Now), WithStore(store))
	assert.False(t, second.TryConsume("unbound"))

	clock.Set(2*time.Hour, base)
	assert.Equal(t, 2, second.Remaining("unbound"))
	assert.NotContains(t, store.saved, "unbound")
}

func TestSnapshot(t *testing.T) {
	clock := newFakeClock()
	base := clock.Now()
	l := New(3, WithClock(clock.Now))

	l.TryConsume("pihole_primary")
	clock.Set(5*time.Minute, base)
	l.TryConsume("pihole_primary")

	snap := l.Snapshot()
	require.Contains(t, snap, "pihole_primary")
	assert.Equal(t, 2, snap["pihole_primary"].Used)
	assert.Equal(t, 3, snap["pihole_primary"].Ceiling)
	assert.True(t, snap["pihole_primary"].NextReset.Equal(base.Add(time.Hour)))

	clock.Set(3*time.Hour, base)
	assert.Empty(t, l.Snapshot())
}
