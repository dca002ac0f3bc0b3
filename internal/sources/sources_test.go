package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/forum"
	"github.com/cowpoke-labs/chairman/internal/poll"
	"github.com/cowpoke-labs/chairman/internal/snapshot"
	"github.com/cowpoke-labs/chairman/internal/store"
)

func TestDiscordInclude(t *testing.T) {
	src := NewDiscord(DiscordOptions{
		TriggerWords: []string{"Treasury", "proposal"},
		IgnoreBots:   true,
	})

	tests := []struct {
		name string
		item poll.Item
		want bool
	}{
		{"bot message", poll.Item{Content: "the treasury grew", IsBot: true}, false},
		{"trigger word, any case", poll.Item{Content: "check the TREASURY"}, true},
		{"second trigger word", poll.Item{Content: "new proposal up"}, true},
		{"no trigger word", poll.Item{Content: "good morning"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, src.Include(tt.item))
		})
	}

	t.Run("no trigger words keeps everything", func(t *testing.T) {
		open := NewDiscord(DiscordOptions{})
		assert.True(t, open.Include(poll.Item{Content: "good morning"}))
	})
}

// snapshotManager registers the snapshot client's connection against a
// stub hub that serves one proposal with the given body.
func snapshotManager(t *testing.T, body string) *connection.Manager {
	t.Helper()
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"data": map[string]any{"proposals": []map[string]any{{
			"id": "0xp1", "title": "Raise solver rewards", "body": body,
			"state": "active", "start": 1740000000, "end": 1740600000,
			"space": map[string]any{"id": "cow.eth", "name": "CoW DAO"},
		}}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(hub.Close)

	conn, err := snapshot.NewWithURL(hub.URL).Connection()
	require.NoError(t, err)

	manager := connection.NewManager(zerolog.Nop())
	require.NoError(t, manager.Register(conn))
	return manager
}

func TestSnapshotStoreArchivesOutcome(t *testing.T) {
	proposals, err := store.Open(filepath.Join(t.TempDir(), "proposals.json"))
	require.NoError(t, err)

	src := NewSnapshot(SnapshotOptions{
		Manager:   snapshotManager(t, "Long text"),
		Proposals: proposals,
		SpaceID:   "cow.eth",
	})

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, src.Store(context.Background(), items[0], "Low treasury impact."))

	recs := proposals.All()
	require.Len(t, recs, 1)
	assert.Equal(t, "0xp1", recs[0].ID)
	assert.Equal(t, "Raise solver rewards", recs[0].Title)
	assert.Equal(t, "active", recs[0].State)
	assert.Equal(t, "cow.eth", recs[0].Space)
	assert.Equal(t, "Low treasury impact.", recs[0].Analysis)

	// Reprocessing the same proposal never duplicates the archive.
	require.NoError(t, src.Store(context.Background(), items[0], "Different outcome."))
	assert.Equal(t, 1, proposals.Len())
}

func TestSnapshotBodyTruncationKeepsRunesWhole(t *testing.T) {
	// The leading byte shifts every two-byte rune so the cut point
	// lands mid-rune.
	body := "a" + strings.Repeat("é", maxBodyChars)
	src := NewSnapshot(SnapshotOptions{
		Manager: snapshotManager(t, body),
		SpaceID: "cow.eth",
	})

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, utf8.ValidString(items[0].Content))
	assert.Contains(t, items[0].Content, "…")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short stays whole", "abc", 10, "abc"},
		{"exact fit stays whole", "abcde", 5, "abcde"},
		{"ascii cut", "abcdef", 3, "abc…"},
		{"backs off a split rune", "aéz", 2, "a…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

const forumListingHTML = `<html><body>
<div class="latest-topic-list">
  <div class="latest-topic-list-item" data-topic-id="101">
    <a class="title" href="/t/first-listed/101">First listed</a>
    <span class="badge-category__name">Proposals</span>
  </div>
  <div class="latest-topic-list-item" data-topic-id="102">
    <a class="title" href="/t/second-listed/102">Second listed</a>
    <span class="badge-category__name">Proposals</span>
  </div>
</div>
</body></html>`

// forumManager registers the forum client's own connection, backed by a
// stub rendering service, so Fetch exercises the real declaration.
func forumManager(t *testing.T, forumURL string) *connection.Manager {
	t.Helper()
	browser := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(forumListingHTML))
	}))
	t.Cleanup(browser.Close)

	conn, err := forum.New(forumURL, browser.URL).Connection()
	require.NoError(t, err)

	manager := connection.NewManager(zerolog.Nop())
	require.NoError(t, manager.Register(conn))
	return manager
}

func TestForumFetchPreservesListingOrder(t *testing.T) {
	src := NewForum(ForumOptions{Manager: forumManager(t, "https://forum.example.org")})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "101", items[0].ID)
	assert.True(t, items[0].Timestamp.Before(items[1].Timestamp))
	assert.Contains(t, items[0].Content, "https://forum.example.org/t/first-listed/101")
}

func TestForumFetchReachesRegisteredConnection(t *testing.T) {
	manager := forumManager(t, "https://forum.example.org")
	src := NewForum(ForumOptions{Manager: manager, Category: "Proposals"})

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "cowforum", src.Name())
	assert.Equal(t, "cowforum", items[0].Source)
}
