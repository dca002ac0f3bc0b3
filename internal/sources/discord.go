// Package sources adapts the external-service connections into poll
// sources. Every fetch goes through the connection manager so declared
// parameters are validated on the agent's own calls too.
package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/discord"
	"github.com/cowpoke-labs/chairman/internal/poll"
)

// DiscordSource polls one channel for new messages.
type DiscordSource struct {
	manager   *connection.Manager
	channelID string
	interval  time.Duration

	triggerWords []string
	ignoreBots   bool
	fetchLimit   int
}

type DiscordOptions struct {
	Manager      *connection.Manager
	ChannelID    string
	Interval     time.Duration
	TriggerWords []string
	IgnoreBots   bool
	FetchLimit   int
}

func NewDiscord(opts DiscordOptions) *DiscordSource {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 20
	}
	return &DiscordSource{
		manager:      opts.Manager,
		channelID:    opts.ChannelID,
		interval:     opts.Interval,
		triggerWords: opts.TriggerWords,
		ignoreBots:   opts.IgnoreBots,
		fetchLimit:   opts.FetchLimit,
	}
}

func (s *DiscordSource) Name() string            { return "discord" }
func (s *DiscordSource) Interval() time.Duration { return s.interval }

func (s *DiscordSource) Fetch(ctx context.Context) ([]poll.Item, error) {
	result, err := s.manager.Perform(ctx, "discord", "read-messages", connection.Params{
		"channel_id": s.channelID,
		"limit":      s.fetchLimit,
	})
	if err != nil {
		return nil, err
	}
	msgs, ok := result.([]discord.Message)
	if !ok {
		return nil, fmt.Errorf("unexpected read-messages result %T", result)
	}

	items := make([]poll.Item, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, poll.Item{
			ID:        m.ID,
			Author:    m.Author,
			Content:   m.Content,
			Source:    s.Name(),
			Timestamp: m.Timestamp,
			IsBot:     m.IsBot,
		})
	}
	return items, nil
}

// Include drops bot messages when configured and, when trigger words
// are set, anything that mentions none of them.
func (s *DiscordSource) Include(it poll.Item) bool {
	if s.ignoreBots && it.IsBot {
		return false
	}
	if len(s.triggerWords) == 0 {
		return true
	}
	content := strings.ToLower(it.Content)
	for _, w := range s.triggerWords {
		if strings.Contains(content, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
