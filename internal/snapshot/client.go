// Package snapshot queries the Snapshot governance hub over GraphQL.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cowpoke-labs/chairman/internal/connection"
)

const defaultHubURL = "https://hub.snapshot.org/graphql"

type Client struct {
	url        string
	httpClient *http.Client
}

func New() *Client {
	return &Client{
		url: defaultHubURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewWithURL is used by tests to point the client at a local server.
func NewWithURL(url string) *Client {
	c := New()
	c.url = url
	return c
}

// Proposal carries the fields the agent consumes.
type Proposal struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	State string `json:"state"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
	Space struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"space"`
}

// Vote is a single cast vote on a proposal.
type Vote struct {
	ID      string  `json:"id"`
	Voter   string  `json:"voter"`
	Choice  any     `json:"choice"`
	VP      float64 `json:"vp"`
	Reason  string  `json:"reason"`
	Created int64   `json:"created"`
}

// Space is the subset of space metadata the agent uses.
type Space struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	About   string   `json:"about"`
	Network string   `json:"network"`
	Symbol  string   `json:"symbol"`
	Members []string `json:"members"`
}

// query executes one GraphQL request and decodes data into result.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, result any) error {
	payload := map[string]any{"query": query, "variables": variables}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build snapshot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read snapshot response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("snapshot API error %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode snapshot response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("snapshot GraphQL error: %s", envelope.Errors[0].Message)
	}
	if result != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, result); err != nil {
			return fmt.Errorf("decode snapshot data: %w", err)
		}
	}
	return nil
}

const proposalsQuery = `
query Proposals($space: String!, $state: String!, $first: Int!) {
    proposals(
        where: { space: $space, state: $state }
        first: $first
        skip: 0
    ) {
        id
        title
        body
        start
        end
        state
        space { id name }
    }
}`

// GetProposals lists proposals for a space filtered by state.
func (c *Client) GetProposals(ctx context.Context, spaceID, state string, first int) ([]Proposal, error) {
	if state == "" {
		state = "all"
	}
	if first <= 0 {
		first = 20
	}
	var data struct {
		Proposals []Proposal `json:"proposals"`
	}
	err := c.query(ctx, proposalsQuery, map[string]any{
		"space": spaceID, "state": state, "first": first,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.Proposals, nil
}

const votesQuery = `
query Votes($proposal: String!, $first: Int!) {
    votes(where: { proposal: $proposal } first: $first) {
        id
        voter
        choice
        vp
        reason
        created
    }
}`

// GetVotes lists votes cast on a proposal.
func (c *Client) GetVotes(ctx context.Context, proposalID string, first int) ([]Vote, error) {
	if first <= 0 {
		first = 1000
	}
	var data struct {
		Votes []Vote `json:"votes"`
	}
	err := c.query(ctx, votesQuery, map[string]any{
		"proposal": proposalID, "first": first,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.Votes, nil
}

const spaceQuery = `
query Space($id: String!) {
    space(id: $id) {
        id
        name
        about
        network
        symbol
        members
    }
}`

// GetSpace fetches a single space by id.
func (c *Client) GetSpace(ctx context.Context, spaceID string) (*Space, error) {
	var data struct {
		Space *Space `json:"space"`
	}
	if err := c.query(ctx, spaceQuery, map[string]any{"id": spaceID}, &data); err != nil {
		return nil, err
	}
	if data.Space == nil {
		return nil, fmt.Errorf("space %q not found", spaceID)
	}
	return data.Space, nil
}

// Connection declares the snapshot actions for the dispatch layer.
func (c *Client) Connection() (*connection.Connection, error) {
	return connection.New("snapshot",
		connection.Action{
			Name:        "get-proposals",
			Description: "Get proposals for a Snapshot space",
			Parameters: []connection.Parameter{
				{Name: "space_id", Required: true, Type: connection.TypeString, Description: "Space identifier, e.g. cow.eth"},
				{Name: "state", Required: false, Type: connection.TypeString, Description: "Proposal state filter"},
				{Name: "first", Required: false, Type: connection.TypeInt, Description: "Number of proposals to fetch"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.GetProposals(ctx, params.String("space_id", ""), params.String("state", "all"), params.Int("first", 20))
			},
		},
		connection.Action{
			Name:        "get-votes",
			Description: "Get votes for a proposal",
			Parameters: []connection.Parameter{
				{Name: "proposal_id", Required: true, Type: connection.TypeString, Description: "Proposal identifier"},
				{Name: "first", Required: false, Type: connection.TypeInt, Description: "Number of votes to fetch"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.GetVotes(ctx, params.String("proposal_id", ""), params.Int("first", 1000))
			},
		},
		connection.Action{
			Name:        "get-space",
			Description: "Get information about a Snapshot space",
			Parameters: []connection.Parameter{
				{Name: "space_id", Required: true, Type: connection.TypeString, Description: "Space identifier"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.GetSpace(ctx, params.String("space_id", ""))
			},
		},
	)
}
