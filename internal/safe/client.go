// Package safe talks to the Safe custody service's HTTP API.
package safe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
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

// TxStatus reports the state of a Safe transaction.
type TxStatus struct {
	Status        string `json:"status"`
	SafeTxHash    string `json:"safeTxHash"`
	Confirmations int    `json:"confirmations"`
	Required      int    `json:"required"`
	IsExecuted    bool   `json:"isExecuted"`
}

// TokenBalance is one row of the Safe's holdings.
type TokenBalance struct {
	Balance string `json:"balance"`
	Token   *struct {
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"token"`
}

// Balances is the Safe's native plus token holdings.
type Balances struct {
	SafeAddress   string         `json:"safeAddress"`
	NativeBalance string         `json:"nativeBalance"`
	Tokens        []TokenBalance `json:"tokens"`
}

// CreatedTx is the response to create-transaction.
type CreatedTx struct {
	SafeTxHash string `json:"safeTxHash"`
	Signature  string `json:"signature"`
}

func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal safe request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build safe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("safe %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read safe response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("safe API error %d: %s", resp.StatusCode, string(respBody))
	}
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode safe response: %w", err)
		}
	}
	return nil
}

// CheckStatus looks up a transaction by its Safe hash.
func (c *Client) CheckStatus(ctx context.Context, safeTxHash string) (*TxStatus, error) {
	var out TxStatus
	path := "/safe/status?safeTxHash=" + url.QueryEscape(safeTxHash)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBalances fetches the Safe's native and token balances.
func (c *Client) GetBalances(ctx context.Context) (*Balances, error) {
	var out Balances
	if err := c.do(ctx, http.MethodGet, "/safe/balance", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTransaction creates and signs a Safe transaction.
func (c *Client) CreateTransaction(ctx context.Context, to, value, data string) (*CreatedTx, error) {
	var out CreatedTx
	payload := map[string]string{"to": to, "value": value, "data": data}
	if err := c.do(ctx, http.MethodPost, "/safe/create_tx", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmTransaction adds the signer's confirmation to a pending transaction.
func (c *Client) ConfirmTransaction(ctx context.Context, signer, safeAddress, safeTxHash string) error {
	payload := map[string]string{
		"signer":      signer,
		"safeAddress": safeAddress,
		"safeTxHash":  safeTxHash,
	}
	return c.do(ctx, http.MethodPost, "/safe/confirm", payload, nil)
}

// Connection declares the safe actions for the dispatch layer.
func (c *Client) Connection() (*connection.Connection, error) {
	return connection.New("safe",
		connection.Action{
			Name:        "check-status",
			Description: "Check Safe transaction status",
			Parameters: []connection.Parameter{
				{Name: "safe_tx_hash", Required: true, Type: connection.TypeString, Description: "Safe transaction hash to check"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.CheckStatus(ctx, params.String("safe_tx_hash", ""))
			},
		},
		connection.Action{
			Name:        "get-balances",
			Description: "Get Safe balances including native token and ERC20 tokens",
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.GetBalances(ctx)
			},
		},
		connection.Action{
			Name:        "create-transaction",
			Description: "Create and sign a Safe transaction",
			Parameters: []connection.Parameter{
				{Name: "to", Required: true, Type: connection.TypeString, Description: "Destination address"},
				{Name: "value", Required: true, Type: connection.TypeString, Description: "ETH value in wei"},
				{Name: "data", Required: true, Type: connection.TypeString, Description: "Transaction data (hex)"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return c.CreateTransaction(ctx,
					params.String("to", ""), params.String("value", ""), params.String("data", ""))
			},
		},
		connection.Action{
			Name:        "confirm-transaction",
			Description: "Confirm a pending Safe transaction",
			Parameters: []connection.Parameter{
				{Name: "signer", Required: true, Type: connection.TypeString, Description: "Signer credential for the Safe owner"},
				{Name: "safe_address", Required: true, Type: connection.TypeString, Description: "Address of the Safe contract"},
				{Name: "safe_tx_hash", Required: true, Type: connection.TypeString, Description: "Hash of the transaction to confirm"},
			},
			Handler: func(ctx context.Context, params connection.Params) (any, error) {
				return nil, c.ConfirmTransaction(ctx,
					params.String("signer", ""), params.String("safe_address", ""), params.String("safe_tx_hash", ""))
			},
		},
	)
}
