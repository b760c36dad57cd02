package reconciler

import "sync"

// failureTracker counts consecutive failures per runtime operation and
// escalates once when a count reaches the threshold.
type failureTracker struct {
	mu        sync.Mutex
	threshold int
	counts    map[string]int
	escalated map[string]bool
}

func newFailureTracker(threshold int) *failureTracker {
	return &failureTracker{
		threshold: threshold,
		counts:    make(map[string]int),
		escalated: make(map[string]bool),
	}
}

// failure records a failure of op. escalate is true only on the call that
// reaches the threshold.
func (t *failureTracker) failure(op string) (count int, escalate bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[op]++
	count = t.counts[op]
	if count >= t.threshold && !t.escalated[op] {
		t.escalated[op] = true
		return count, true
	}
	return count, false
}

// success resets op and reports whether it had been escalated
func (t *failureTracker) success(op string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	was := t.escalated[op]
	delete(t.counts, op)
	delete(t.escalated, op)
	return was
}

func (t *failureTracker) anyEscalated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.escalated) > 0
}
