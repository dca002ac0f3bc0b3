// Package discord is a minimal Discord REST client covering the two
// operations the agent needs: reading recent channel messages and posting.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cowpoke-labs/chairman/internal/connection"
)

const defaultBaseURL = "https://discord.com/api/v10"

type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func New(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithBaseURL is used by tests to point the client at a local server.
func NewWithBaseURL(token, baseURL string) *Client {
	c := New(token)
	c.baseURL = baseURL
	return c
}

// Message is one channel message as the agent sees it.
type Message struct {
	ID        string
	Author    string
	Content   string
	Timestamp time.Time
	IsBot     bool
}

type wireMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Author    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Bot      bool   `json:"bot"`
	} `json:"author"`
}

// do sends one Discord REST request and decodes the response into result
// (nil to ignore the body).
func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal discord request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read discord response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord API error %d: %s", resp.StatusCode, string(respBody))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode discord response: %w", err)
		}
	}
	return nil
}

// ReadMessages fetches up to limit recent messages from the channel.
// Discord returns newest first; callers re-sort as needed.
func (c *Client) ReadMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	path := fmt.Sprintf("/channels/%s/messages?limit=%s", channelID, url.QueryEscape(fmt.Sprint(limit)))

	var raw []wireMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		ts, _ := time.Parse(time.RFC3339, m.Timestamp)
		out = append(out, Message{
			ID:        m.ID,
			Author:    m.Author.Username,
			Content:   m.Content,
			Timestamp: ts,
			IsBot:     m.Author.Bot,
		})
	}
	return out, nil
}

// PostMessage sends text to the channel.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/messages", channelID),
		map[string]any{"content": text}, nil)
}

// Connection declares the discord actions for the dispatch layer.
func (c *Client) Connection() (*connection.Connection, error) {
	return connection.New("discord",
		connection.Action{
			Name:        "read-messages",
			Description: "Read recent messages from a Discord channel",
			Parameters: []connection.Parameter{
				{Name: "channel_id", Required: true, Type: connection.TypeString, Description: "Channel to read from"},
				{Name: "limit", Required: false, Type: connection.TypeInt, Description: "Maximum messages to fetch"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.ReadMessages(ctx, params.String("channel_id", ""), params.Int("limit", 50))
			},
		},
		connection.Action{
			Name:        "post-message",
			Description: "Post a message to a Discord channel",
			Parameters: []connection.Parameter{
				{Name: "channel_id", Required: true, Type: connection.TypeString, Description: "Channel to post to"},
				{Name: "text", Required: true, Type: connection.TypeString, Description: "Message text"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return nil, c.PostMessage(ctx, params.String("channel_id", ""), params.String("text", ""))
			},
		},
	)
}
