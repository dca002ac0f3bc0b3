package poll

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// maxContext is how many already-processed items ride along with a
	// batch to give the decision step recent history.
	maxContext = 5
	// maxNewItems caps how many unprocessed items a single batch may
	// carry. Anything beyond the cap stays unmarked and is picked up by
	// a later poll.
	maxNewItems = 3
	// tickInterval is how often the poller wakes up to check which
	// sources are due.
	tickInterval = time.Second
)

// Poller owns the sleep-and-tick loop. Sources are polled in the order
// given, which callers arrange by descending task weight.
type Poller struct {
	sources []Source
	tracker *Tracker
	decide  DecideFunc
	log     zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewPoller wires sources to a tracker and a decision function.
func NewPoller(sources []Source, tracker *Tracker, decide DecideFunc, log zerolog.Logger) *Poller {
	return &Poller{
		sources: sources,
		tracker: tracker,
		decide:  decide,
		log:     log,
		now:     time.Now,
	}
}

// Run ticks until ctx is cancelled. Cancellation is only observed
// between ticks, so a batch in flight always runs to completion.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info().Int("sources", len(p.sources)).Msg("poller started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller stopped")
			return ctx.Err()
		case <-time.After(tickInterval):
			p.Tick(ctx)
		}
	}
}

// Tick polls every source whose interval has elapsed. One source failing
// never blocks the others.
func (p *Poller) Tick(ctx context.Context) {
	now := p.now()
	for _, src := range p.sources {
		if !p.tracker.DuePoll(src.Name(), src.Interval(), now) {
			continue
		}
		p.pollSource(ctx, src, now)
	}
}

// pollSource runs one fetch-dedup-decide cycle for a single source.
func (p *Poller) pollSource(ctx context.Context, src Source, now time.Time) {
	log := p.log.With().Str("source", src.Name()).Logger()

	items, err := src.Fetch(ctx)
	if err != nil {
		// Last poll stays untouched, next tick retries.
		log.Error().Err(err).Msg("fetch failed")
		return
	}
	p.tracker.RecordPoll(src.Name(), now)

	var fresh, seen []Item
	for _, it := range items {
		if !it.Valid() || !src.Include(it) {
			continue
		}
		if p.tracker.Seen(src.Name(), it.ID) {
			seen = append(seen, it)
		} else {
			fresh = append(fresh, it)
		}
	}
	if len(fresh) == 0 {
		log.Debug().Int("fetched", len(items)).Msg("no new items")
		return
	}

	sortByTime(fresh)
	if len(fresh) > maxNewItems {
		fresh = fresh[:maxNewItems]
	}

	// Context must be strictly older than every new item so the batch
	// reads as history followed by what just happened.
	oldestNew := fresh[0].Timestamp
	var contextItems []Item
	for _, it := range seen {
		if it.Timestamp.Before(oldestNew) {
			contextItems = append(contextItems, it)
		}
	}
	sortByTime(contextItems)
	if len(contextItems) > maxContext {
		contextItems = contextItems[len(contextItems)-maxContext:]
	}

	batch := Batch{
		ID:     uuid.NewString(),
		Source: src.Name(),
	}
	for _, it := range contextItems {
		batch.Items = append(batch.Items, BatchItem{Item: it})
	}
	for _, it := range fresh {
		batch.Items = append(batch.Items, BatchItem{Item: it, IsNew: true})
	}

	log.Info().
		Str("batch", batch.ID).
		Int("new", len(fresh)).
		Int("context", len(contextItems)).
		Msg("dispatching batch")

	outcome, err := p.decide(ctx, batch)
	if err != nil {
		// All-or-nothing: no item of a failed batch is marked, the whole
		// batch comes back on the next poll.
		log.Error().Err(err).Str("batch", batch.ID).Msg("batch processing failed")
		return
	}

	ids := make([]string, 0, len(fresh))
	for _, it := range fresh {
		ids = append(ids, it.ID)
	}
	p.tracker.MarkProcessed(src.Name(), ids...)
	log.Debug().Str("batch", batch.ID).Int("marked", len(ids)).Msg("batch processed")

	if sink, ok := src.(Sink); ok {
		for _, it := range fresh {
			if err := sink.Store(ctx, it, outcome); err != nil {
				log.Error().Err(err).Str("item", it.ID).Msg("store failed")
			}
		}
	}
}

func sortByTime(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
}
