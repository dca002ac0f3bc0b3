// Package forum scrapes the Discourse forum through a headless-browser
// content service and parses the rendered HTML with goquery.
package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cowpoke-labs/chairman/internal/connection"
)

type Client struct {
	forumURL   string // e.g. https://forum.cow.fi
	browserURL string // headless content endpoint, e.g. http://localhost:3000/content
	httpClient *http.Client
}

func New(forumURL, browserURL string) *Client {
	return &Client{
		forumURL:   strings.TrimRight(forumURL, "/"),
		browserURL: browserURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Post is one topic from the forum's latest list.
type Post struct {
	ID       string
	Title    string
	URL      string
	Category string
	Activity string
}

// Article is a fully fetched forum page.
type Article struct {
	Title    string
	Content  string
	Metadata map[string]string
}

// render asks the browser service for the fully rendered HTML of url,
// waiting on selector when given.
func (c *Client) render(ctx context.Context, url, selector string) (string, error) {
	payload := map[string]any{
		"url":            url,
		"waitForTimeout": 3000,
		"bestAttempt":    true,
	}
	if selector != "" {
		payload["waitForSelector"] = map[string]any{
			"selector": selector,
			"timeout":  5000,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal browser request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.browserURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build browser request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("browser request failed: %w", err)
	}
	defer resp.Body.Close()

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read browser response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("browser service error %d: %s", resp.StatusCode, string(html))
	}
	if len(html) == 0 {
		return "", fmt.Errorf("empty response from browser service")
	}
	return string(html), nil
}

// GetUpdates scrapes the latest-topic list, optionally filtered by category.
func (c *Client) GetUpdates(ctx context.Context, category string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 10
	}

	html, err := c.render(ctx, c.forumURL, ".latest-topic-list")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse forum page: %w", err)
	}

	container := doc.Find("div.latest-topic-list")
	if container.Length() == 0 {
		return nil, fmt.Errorf("topic list not found in forum page")
	}

	var posts []Post
	container.Find("div.latest-topic-list-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := s.Find("a.title")
		p := Post{
			ID:       s.AttrOr("data-topic-id", ""),
			Title:    strings.TrimSpace(title.Text()),
			URL:      c.absoluteURL(title.AttrOr("href", "")),
			Category: strings.TrimSpace(s.Find("span.badge-category__name").Text()),
			Activity: strings.TrimSpace(s.Find("a.post-activity").Text()),
		}
		if p.ID == "" || p.Title == "" {
			return true
		}
		if category != "" && !strings.EqualFold(p.Category, category) {
			return true
		}
		posts = append(posts, p)
		return len(posts) < limit
	})

	return posts, nil
}

// GetArticle fetches one topic page and extracts title, post bodies and
// basic metadata.
func (c *Client) GetArticle(ctx context.Context, url string) (*Article, error) {
	html, err := c.render(ctx, url, ".topic-post")
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse article page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1 .fancy-title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	var parts []string
	doc.Find("div.cooked").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return nil, fmt.Errorf("no post content found at %s", url)
	}

	meta := map[string]string{"url": url}
	if author := strings.TrimSpace(doc.Find(".topic-post .username").First().Text()); author != "" {
		meta["author"] = author
	}
	if created, ok := doc.Find(".topic-post .post-date span").First().Attr("title"); ok {
		meta["created"] = created
	}

	return &Article{
		Title:    title,
		Content:  strings.Join(parts, "\n\n---\n\n"),
		Metadata: meta,
	}, nil
}

func (c *Client) absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return c.forumURL + href
}

// Connection declares the forum actions for the dispatch layer.
func (c *Client) Connection() (*connection.Connection, error) {
	return connection.New("cowforum",
		connection.Action{
			Name:        "get-forum-updates",
			Description: "Get the latest forum topics",
			Parameters: []connection.Parameter{
				{Name: "category", Required: false, Type: connection.TypeString, Description: "Category name filter"},
				{Name: "limit", Required: false, Type: connection.TypeInt, Description: "Maximum topics to return"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.GetUpdates(ctx, params.String("category", ""), params.Int("limit", 10))
			},
		},
		connection.Action{
			Name:        "get-forum-article",
			Description: "Fetch the full content of a forum article",
			Parameters: []connection.Parameter{
				{Name: "url", Required: true, Type: connection.TypeString, Description: "Full URL of the article"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.GetArticle(ctx, params.String("url", ""))
			},
		},
	)
}
