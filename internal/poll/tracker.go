package poll

import (
	"sync"
	"time"
)

// defaultCapacity bounds the processed-id set kept per source. Oldest
// ids fall out first once the bound is hit; a source would need that
// many new items between two polls for an already-processed item to be
// seen as new again.
const defaultCapacity = 10000

// Tracker remembers which item ids have been processed per source and
// when each source was last polled. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]map[string]struct{}
	order    map[string][]string
	lastPoll map[string]time.Time
}

// NewTracker returns a tracker with the given per-source id capacity.
// capacity <= 0 selects the default.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Tracker{
		capacity: capacity,
		seen:     make(map[string]map[string]struct{}),
		order:    make(map[string][]string),
		lastPoll: make(map[string]time.Time),
	}
}

// Seen reports whether the item id has been processed for source.
func (t *Tracker) Seen(source, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[source][id]
	return ok
}

// MarkProcessed records ids as processed for source, evicting the oldest
// entries when the capacity bound is exceeded. Marking an id twice is a
// no-op.
func (t *Tracker) MarkProcessed(source string, ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.seen[source]
	if set == nil {
		set = make(map[string]struct{})
		t.seen[source] = set
	}
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		t.order[source] = append(t.order[source], id)
	}
	for len(set) > t.capacity {
		oldest := t.order[source][0]
		t.order[source] = t.order[source][1:]
		delete(set, oldest)
	}
}

// ProcessedCount returns how many ids are currently tracked for source.
func (t *Tracker) ProcessedCount(source string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen[source])
}

// DuePoll reports whether source's interval has elapsed since its last
// recorded poll. A source never polled is always due.
func (t *Tracker) DuePoll(source string, interval time.Duration, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastPoll[source]
	if !ok {
		return true
	}
	return now.Sub(last) >= interval
}

// RecordPoll stamps source's last successful poll at now. Callers must
// not record failed fetches, a failed poll retries on the next tick.
func (t *Tracker) RecordPoll(source string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastPoll[source] = now
}
