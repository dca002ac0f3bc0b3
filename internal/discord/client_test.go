package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/channels/555/messages", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bot tok", r.Header.Get("Authorization"))

		w.Write([]byte(`[
			{"id": "9", "content": "newest", "timestamp": "2026-03-01T12:00:05Z",
			 "author": {"id": "1", "username": "alice", "bot": false}},
			{"id": "8", "content": "from a bot", "timestamp": "2026-03-01T12:00:00Z",
			 "author": {"id": "2", "username": "helper", "bot": true}}
		]`))
	}))
	defer srv.Close()

	msgs, err := NewWithBaseURL("tok", srv.URL).ReadMessages(context.Background(), "555", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "9", msgs[0].ID)
	assert.Equal(t, "alice", msgs[0].Author)
	assert.False(t, msgs[0].IsBot)
	assert.Equal(t, 2026, msgs[0].Timestamp.Year())
	assert.True(t, msgs[1].IsBot)
}

func TestPostMessage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/555/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id": "10"}`))
	}))
	defer srv.Close()

	err := NewWithBaseURL("tok", srv.URL).PostMessage(context.Background(), "555", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got["content"])
}

func TestAPIErrorsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "Missing Access"}`))
	}))
	defer srv.Close()

	_, err := NewWithBaseURL("tok", srv.URL).ReadMessages(context.Background(), "555", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
