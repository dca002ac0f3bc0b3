// Package poll drives the agent's main loop: it polls message sources on
// their configured intervals, deduplicates what comes back, assembles
// context-plus-new batches and hands them to a decision function.
package poll

import (
	"context"
	"time"
)

// Item is one message or event fetched from a source, normalized so the
// rest of the pipeline does not care where it came from.
type Item struct {
	ID        string
	Author    string
	Content   string
	Source    string
	Timestamp time.Time
	IsBot     bool
}

// Valid reports whether the item carries enough to be processed at all.
func (it Item) Valid() bool {
	return it.ID != "" && it.Content != ""
}

// BatchItem is an item tagged with whether it is new in this batch or
// carried along as already-processed context.
type BatchItem struct {
	Item
	IsNew bool
}

// Batch is what a single poll of a single source produces: up to
// maxContext previously processed items followed by up to maxNewItems
// unprocessed ones, all in ascending timestamp order.
type Batch struct {
	ID     string
	Source string
	Items  []BatchItem
}

// NewItems returns only the unprocessed items of the batch.
func (b Batch) NewItems() []Item {
	var out []Item
	for _, bi := range b.Items {
		if bi.IsNew {
			out = append(out, bi.Item)
		}
	}
	return out
}

// Source produces items when polled. Fetch returns the source's current
// view (newest or oldest first, the poller sorts); Include filters items
// before dedup so bot echo or off-topic chatter never counts as new.
type Source interface {
	Name() string
	Interval() time.Duration
	Fetch(ctx context.Context) ([]Item, error)
	Include(Item) bool
}

// Sink is an optional Source extension. Sources that implement it get
// every successfully processed new item handed back for persistence.
type Sink interface {
	Store(ctx context.Context, item Item, outcome string) error
}

// DecideFunc consumes a batch and returns the reasoning outcome. An error
// means the batch was not processed and its items must stay unmarked.
type DecideFunc func(ctx context.Context, batch Batch) (string, error)
