package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/forum"
	"github.com/cowpoke-labs/chairman/internal/poll"
)

// ForumSource polls the governance forum's latest-topics page. Topics
// carry no timestamp on the listing, so items share the fetch time and
// keep listing order.
type ForumSource struct {
	manager  *connection.Manager
	category string
	interval time.Duration
	limit    int

	now func() time.Time
}

type ForumOptions struct {
	Manager  *connection.Manager
	Category string
	Interval time.Duration
	Limit    int
}

func NewForum(opts ForumOptions) *ForumSource {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	return &ForumSource{
		manager:  opts.Manager,
		category: opts.Category,
		interval: opts.Interval,
		limit:    opts.Limit,
		now:      time.Now,
	}
}

func (s *ForumSource) Name() string            { return "cowforum" }
func (s *ForumSource) Interval() time.Duration { return s.interval }

func (s *ForumSource) Fetch(ctx context.Context) ([]poll.Item, error) {
	result, err := s.manager.Perform(ctx, "cowforum", "get-forum-updates", connection.Params{
		"category": s.category,
		"limit":    s.limit,
	})
	if err != nil {
		return nil, err
	}
	posts, ok := result.([]forum.Post)
	if !ok {
		return nil, fmt.Errorf("unexpected get-forum-updates result %T", result)
	}

	fetched := s.now()
	items := make([]poll.Item, 0, len(posts))
	for i, p := range posts {
		items = append(items, poll.Item{
			ID:      p.ID,
			Author:  p.Category,
			Content: fmt.Sprintf("Forum topic: %s\nURL: %s", p.Title, p.URL),
			Source:  s.Name(),
			// Preserve listing order within the same fetch.
			Timestamp: fetched.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return items, nil
}

func (s *ForumSource) Include(poll.Item) bool { return true }
