package ratelimit

import (
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/log"
	"github.com/rs/zerolog"
)

// DefaultHorizon is the trailing window over which consumptions are counted
const DefaultHorizon = time.Hour

// Persister stores the per-key timestamps after every successful consume
type Persister interface {
	SaveRemediations(key string, stamps []time.Time) error
	LoadRemediations() (map[string][]time.Time, error)
}

// Limiter caps remediation actions per key within a trailing horizon.
// Expired timestamps are pruned lazily on each call.
type Limiter struct {
	mu      sync.Mutex
	records map[string][]time.Time
	ceiling int
	horizon time.Duration
	now     func() time.Time
	store   Persister
	logger  zerolog.Logger
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithHorizon overrides the one-hour window
func WithHorizon(d time.Duration) Option {
	return func(l *Limiter) { l.horizon = d }
}

// WithStore persists records so the ceiling survives a process restart
func WithStore(p Persister) Option {
	return func(l *Limiter) { l.store = p }
}

// New creates a limiter allowing ceiling consumptions per key per horizon
func New(ceiling int, opts ...Option) *Limiter {
	if ceiling < 1 {
		ceiling = 1
	}
	l := &Limiter{
		records: make(map[string][]time.Time),
		ceiling: ceiling,
		horizon: DefaultHorizon,
		now:     time.Now,
		logger:  log.WithComponent("ratelimit"),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.store != nil {
		if loaded, err := l.store.LoadRemediations(); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to load persisted restart history")
		} else {
			for key, stamps := range loaded {
				l.records[key] = stamps
			}
		}
	}
	return l
}

// TryConsume records one action for key and returns true if the key is still
// strictly below its ceiling. It never blocks beyond the internal lock.
func (l *Limiter) TryConsume(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	live := l.prune(key, now)
	if len(live) >= l.ceiling {
		return false
	}

	live = append(live, now)
	l.records[key] = live
	l.persist(key, live)
	return true
}

// Remaining returns how many consumptions key may still take right now
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.ceiling - len(l.prune(key, l.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Ceiling returns the configured maximum per horizon
func (l *Limiter) Ceiling() int {
	return l.ceiling
}

// Usage is a snapshot of one key's window
type Usage struct {
	Used      int       `json:"used"`
	Ceiling   int       `json:"ceiling"`
	NextReset time.Time `json:"next_reset,omitempty"`
}

// Snapshot returns current usage for every key with live records
func (l *Limiter) Snapshot() map[string]Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make(map[string]Usage, len(l.records))
	for key := range l.records {
		live := l.prune(key, now)
		if len(live) == 0 {
			continue
		}
		out[key] = Usage{
			Used:      len(live),
			Ceiling:   l.ceiling,
			NextReset: live[0].Add(l.horizon),
		}
	}
	return out
}

// prune drops timestamps at or beyond the horizon. Caller holds mu.
func (l *Limiter) prune(key string, now time.Time) []time.Time {
	stamps := l.records[key]
	cutoff := now.Add(-l.horizon)

	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}

	live := stamps[i:]
	if len(live) == 0 {
		delete(l.records, key)
		l.persist(key, nil)
		return nil
	}
	l.records[key] = live
	return live
}

func (l *Limiter) persist(key string, stamps []time.Time) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveRemediations(key, stamps); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist restart history")
	}
}
