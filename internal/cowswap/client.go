// Package cowswap talks to the swap service's HTTP API for creating,
// signing and listing CoW Protocol orders.
package cowswap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cowpoke-labs/chairman/internal/connection"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Order is one swap order as reported by the service.
type Order struct {
	ID         string `json:"orderId"`
	Status     string `json:"status"`
	SellToken  string `json:"sellToken"`
	BuyToken   string `json:"buyToken"`
	SellAmount string `json:"sellAmount"`
	BuyAmount  string `json:"buyAmount"`
}

func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal cowswap request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build cowswap request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cowswap %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read cowswap response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cowswap API error %d: %s", resp.StatusCode, string(respBody))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode cowswap response: %w", err)
		}
	}
	return nil
}

// CreateSwapOrder creates a new buy or sell order for the token.
func (c *Client) CreateSwapOrder(ctx context.Context, amount, tokenAddress, operation string) (*Order, error) {
	if operation != "buy" && operation != "sell" {
		return nil, fmt.Errorf("invalid operation %q: must be buy or sell", operation)
	}
	var out Order
	payload := map[string]string{
		"amount":       amount,
		"tokenAddress": tokenAddress,
		"operation":    operation,
	}
	if err := c.do(ctx, http.MethodPost, "/cowswap/create", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignSwapOrder signs an existing order by id.
func (c *Client) SignSwapOrder(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	payload := map[string]string{"orderId": orderID}
	if err := c.do(ctx, http.MethodPost, "/cowswap/sign_order", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrders lists all orders known to the service.
func (c *Client) GetOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/cowswap/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Connection declares the cowswap actions for the dispatch layer.
func (c *Client) Connection() (*connection.Connection, error) {
	return connection.New("cowswap",
		connection.Action{
			Name:        "create-swap-order",
			Description: "Create a new swap order",
			Parameters: []connection.Parameter{
				{Name: "amount", Required: true, Type: connection.TypeString, Description: "Amount to swap"},
				{Name: "token_address", Required: true, Type: connection.TypeString, Description: "Token address to swap"},
				{Name: "operation", Required: true, Type: connection.TypeString, Description: "Operation type (buy/sell)"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.CreateSwapOrder(ctx,
					params.String("amount", ""), params.String("token_address", ""), params.String("operation", ""))
			},
		},
		connection.Action{
			Name:        "sign-swap-order",
			Description: "Sign an existing swap order",
			Parameters: []connection.Parameter{
				{Name: "order_id", Required: true, Type: connection.TypeString, Description: "Order ID to sign"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.SignSwapOrder(ctx, params.String("order_id", ""))
			},
		},
		connection.Action{
			Name:        "get-orders",
			Description: "Get all orders",
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.GetOrders(ctx)
			},
		},
	)
}
