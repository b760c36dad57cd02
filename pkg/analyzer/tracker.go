package analyzer

import (
	"sync"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
)

// Risk is the failure risk computed after an observation
type Risk struct {
	Rate     float64             `json:"rate_per_minute"`
	Recent   int                 `json:"recent"`
	Burst    int                 `json:"burst"`
	Dominant types.ErrorCategory `json:"dominant,omitempty"`
}

// Thresholds parameterize risk evaluation
type Thresholds struct {
	Warning     float64
	Critical    float64
	Window      time.Duration
	BurstWindow time.Duration
	Cooldown    time.Duration
}

// Tracker holds the bounded observation history and prediction cooldowns of
// one container.
type Tracker struct {
	container string
	mu        sync.Mutex
	history   []types.ErrorObservation // ring buffer
	seqs      []uint64                 // arrival order of each history slot
	seq       uint64
	next      int
	full      bool
	counters  map[types.ErrorCategory]int
	lastFired map[types.ErrorCategory]time.Time
	lastRisk  Risk
}

// NewTracker creates a tracker keeping at most capacity observations
func NewTracker(container string, capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Tracker{
		container: container,
		history:   make([]types.ErrorObservation, capacity),
		seqs:      make([]uint64, capacity),
		counters:  make(map[types.ErrorCategory]int),
		lastFired: make(map[types.ErrorCategory]time.Time),
	}
}

// Observe appends obs, recomputes risk and decides whether a prediction
// fires. A firing prediction is recorded for the cooldown before returning.
func (t *Tracker) Observe(obs types.ErrorObservation, th Thresholds) (Risk, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	t.history[t.next] = obs
	t.seqs[t.next] = t.seq
	t.next = (t.next + 1) % len(t.history)
	if t.next == 0 {
		t.full = true
	}
	t.counters[obs.Category]++

	risk := t.riskLocked(obs.Timestamp, th)
	t.lastRisk = risk

	if risk.Recent == 0 {
		return risk, false
	}

	fire := risk.Rate >= th.Critical ||
		(risk.Rate >= th.Warning && float64(risk.Burst) >= th.Warning)
	if !fire {
		return risk, false
	}

	if last, ok := t.lastFired[risk.Dominant]; ok && obs.Timestamp.Sub(last) < th.Cooldown {
		return risk, false
	}
	t.lastFired[risk.Dominant] = obs.Timestamp
	return risk, true
}

func (t *Tracker) riskLocked(now time.Time, th Thresholds) Risk {
	windowStart := now.Add(-th.Window)
	burstStart := now.Add(-th.BurstWindow)

	var (
		risk     Risk
		earliest time.Time
		counts   = make(map[types.ErrorCategory]int)
		latest   = make(map[types.ErrorCategory]time.Time)
		lastSeq  = make(map[types.ErrorCategory]uint64)
	)

	t.eachSeq(func(o types.ErrorObservation, seq uint64) {
		if o.Timestamp.Before(windowStart) || o.Timestamp.After(now) {
			return
		}
		risk.Recent++
		if earliest.IsZero() || o.Timestamp.Before(earliest) {
			earliest = o.Timestamp
		}
		if !o.Timestamp.Before(burstStart) {
			risk.Burst++
		}
		counts[o.Category]++
		if !o.Timestamp.Before(latest[o.Category]) {
			latest[o.Category] = o.Timestamp
			lastSeq[o.Category] = seq
		}
	})

	if risk.Recent == 0 {
		return risk
	}

	span := now.Sub(earliest).Seconds()
	if span > th.Window.Seconds() {
		span = th.Window.Seconds()
	}
	if span < 1 {
		span = 1
	}
	risk.Rate = float64(risk.Recent) / span * 60

	// Ties go to the most recent timestamp, then to the later arrival
	for cat, n := range counts {
		d := risk.Dominant
		switch {
		case d == "",
			n > counts[d],
			n == counts[d] && latest[cat].After(latest[d]),
			n == counts[d] && latest[cat].Equal(latest[d]) && lastSeq[cat] > lastSeq[d]:
			risk.Dominant = cat
		}
	}

	return risk
}

// each visits stored observations oldest first. Caller holds mu.
func (t *Tracker) each(fn func(types.ErrorObservation)) {
	t.eachSeq(func(o types.ErrorObservation, _ uint64) { fn(o) })
}

func (t *Tracker) eachSeq(fn func(types.ErrorObservation, uint64)) {
	if t.full {
		for i := t.next; i < len(t.history); i++ {
			fn(t.history[i], t.seqs[i])
		}
	}
	for i := 0; i < t.next; i++ {
		fn(t.history[i], t.seqs[i])
	}
}

// Len returns the number of stored observations
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		return len(t.history)
	}
	return t.next
}

// TrackerSnapshot is a read-only view of a tracker for status endpoints
type TrackerSnapshot struct {
	Container    string                       `json:"container"`
	Observations int                          `json:"observations"`
	Counters     map[types.ErrorCategory]int  `json:"counters"`
	Risk         Risk                         `json:"risk"`
	Predictions  []types.PredictionCacheEntry `json:"predictions,omitempty"`
	Latest       *types.ErrorObservation      `json:"latest,omitempty"`
}

// Snapshot copies the tracker state
func (t *Tracker) Snapshot() TrackerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := TrackerSnapshot{
		Container: t.container,
		Counters:  make(map[types.ErrorCategory]int, len(t.counters)),
		Risk:      t.lastRisk,
	}
	for k, v := range t.counters {
		s.Counters[k] = v
	}
	for cat, at := range t.lastFired {
		s.Predictions = append(s.Predictions, types.PredictionCacheEntry{
			Container: t.container,
			Category:  cat,
			LastFired: at,
		})
	}
	t.each(func(o types.ErrorObservation) {
		s.Observations++
		latest := o
		s.Latest = &latest
	})
	return s
}
