package sources

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/poll"
	"github.com/cowpoke-labs/chairman/internal/snapshot"
	"github.com/cowpoke-labs/chairman/internal/store"
)

// maxBodyChars truncates long proposal bodies before they reach the
// prompt.
const maxBodyChars = 4000

// SnapshotSource polls a Snapshot space for active proposals. It also
// implements poll.Sink: each processed proposal is archived together
// with the reasoning outcome.
type SnapshotSource struct {
	manager   *connection.Manager
	proposals *store.ProposalStore
	spaceID   string
	interval  time.Duration
	fetchN    int

	mu   sync.Mutex
	meta map[string]proposalMeta // by proposal ID, filled on fetch
}

// proposalMeta keeps the fields the archive needs but the prompt text
// mangles.
type proposalMeta struct {
	title string
	state string
}

type SnapshotOptions struct {
	Manager   *connection.Manager
	Proposals *store.ProposalStore
	SpaceID   string
	Interval  time.Duration
	FetchN    int
}

func NewSnapshot(opts SnapshotOptions) *SnapshotSource {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.FetchN <= 0 {
		opts.FetchN = 10
	}
	return &SnapshotSource{
		manager:   opts.Manager,
		proposals: opts.Proposals,
		spaceID:   opts.SpaceID,
		interval:  opts.Interval,
		fetchN:    opts.FetchN,
		meta:      make(map[string]proposalMeta),
	}
}

func (s *SnapshotSource) Name() string            { return "snapshot" }
func (s *SnapshotSource) Interval() time.Duration { return s.interval }

func (s *SnapshotSource) Fetch(ctx context.Context) ([]poll.Item, error) {
	result, err := s.manager.Perform(ctx, "snapshot", "get-proposals", connection.Params{
		"space_id": s.spaceID,
		"state":    "active",
		"first":    s.fetchN,
	})
	if err != nil {
		return nil, err
	}
	props, ok := result.([]snapshot.Proposal)
	if !ok {
		return nil, fmt.Errorf("unexpected get-proposals result %T", result)
	}

	items := make([]poll.Item, 0, len(props))
	for _, p := range props {
		body := truncate(p.Body, maxBodyChars)
		s.mu.Lock()
		s.meta[p.ID] = proposalMeta{title: p.Title, state: p.State}
		s.mu.Unlock()
		items = append(items, poll.Item{
			ID:        p.ID,
			Author:    p.Space.Name,
			Content:   fmt.Sprintf("Proposal: %s\nState: %s\n\n%s", p.Title, p.State, body),
			Source:    s.Name(),
			Timestamp: time.Unix(p.Start, 0),
		})
	}
	return items, nil
}

// Include keeps everything; the state filter already happened in the
// query.
func (s *SnapshotSource) Include(poll.Item) bool { return true }

// Store archives the reasoning outcome for a processed proposal.
// Implements poll.Sink.
func (s *SnapshotSource) Store(_ context.Context, it poll.Item, outcome string) error {
	if s.proposals == nil {
		return nil
	}
	s.mu.Lock()
	m := s.meta[it.ID]
	delete(s.meta, it.ID)
	s.mu.Unlock()
	return s.proposals.Append(store.Record{
		ID:          it.ID,
		Title:       m.title,
		State:       m.state,
		Space:       s.spaceID,
		Analysis:    outcome,
		ProcessedAt: time.Now().Unix(),
	})
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
