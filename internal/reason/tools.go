package reason

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/llm"
)

// performJSON dispatches through the action registry and renders the
// result for the model.
func performJSON(ctx ToolContext, conn, action string, params connection.Params) (string, error) {
	result, err := ctx.Manager.Perform(ctx.Ctx, conn, action, params)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "ok", nil
	}
	if s, ok := result.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode %s/%s result: %w", conn, action, err)
	}
	return string(data), nil
}

// ── send_discord_message ─────────────────────────────────────────────────────

type SendDiscordMessageTool struct{}

func (t *SendDiscordMessageTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "send_discord_message",
		Description: "Post a message to a Discord channel. Use this to reply to the conversation you are reading.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"channel_id": {"type": "string", "description": "Discord channel id to post to"},
				"text": {"type": "string", "description": "Message text"}
			},
			"required": ["channel_id", "text"]
		}`),
	}
}

func (t *SendDiscordMessageTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		ChannelID string `json:"channel_id"`
		Text      string `json:"text"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	return performJSON(ctx, "discord", "post-message", connection.Params{
		"channel_id": in.ChannelID,
		"text":       in.Text,
	})
}

// ── check_tx_status ──────────────────────────────────────────────────────────

type CheckTxStatusTool struct{}

func (t *CheckTxStatusTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "check_tx_status",
		Description: "Check the execution status of a Safe multisig transaction by its hash.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"safe_tx_hash": {"type": "string", "description": "Safe transaction hash"}
			},
			"required": ["safe_tx_hash"]
		}`),
	}
}

func (t *CheckTxStatusTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		SafeTxHash string `json:"safe_tx_hash"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	return performJSON(ctx, "safe", "check-status", connection.Params{
		"safe_tx_hash": in.SafeTxHash,
	})
}

// ── fetch_forum_article ──────────────────────────────────────────────────────

type FetchForumArticleTool struct{}

func (t *FetchForumArticleTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "fetch_forum_article",
		Description: "Fetch the full rendered content of a governance forum topic by URL.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "Forum topic URL"}
			},
			"required": ["url"]
		}`),
	}
}

func (t *FetchForumArticleTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	return performJSON(ctx, "cowforum", "get-forum-article", connection.Params{
		"url": in.URL,
	})
}

// ── get_proposal_votes ───────────────────────────────────────────────────────

type GetProposalVotesTool struct{}

func (t *GetProposalVotesTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "get_proposal_votes",
		Description: "Fetch the votes cast so far on a Snapshot proposal.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"proposal_id": {"type": "string", "description": "Snapshot proposal id"}
			},
			"required": ["proposal_id"]
		}`),
	}
}

func (t *GetProposalVotesTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		ProposalID string `json:"proposal_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	return performJSON(ctx, "snapshot", "get-votes", connection.Params{
		"proposal_id": in.ProposalID,
	})
}

// ── create_safe_transaction ──────────────────────────────────────────────────

type CreateSafeTransactionTool struct{}

func (t *CreateSafeTransactionTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "create_safe_transaction",
		Description: "Create a Safe multisig transaction. The transaction stays pending until the operators confirm it; use request_confirmation with the returned hash.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"to": {"type": "string", "description": "Recipient address"},
				"value": {"type": "string", "description": "Native value in wei"},
				"data": {"type": "string", "description": "Hex-encoded call data, empty for plain transfers"}
			},
			"required": ["to", "value"]
		}`),
	}
}

func (t *CreateSafeTransactionTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		To    string `json:"to"`
		Value string `json:"value"`
		Data  string `json:"data"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	return performJSON(ctx, "safe", "create-transaction", connection.Params{
		"to":    in.To,
		"value": in.Value,
		"data":  in.Data,
	})
}

// ── create_swap_order ────────────────────────────────────────────────────────

type CreateSwapOrderTool struct{}

func (t *CreateSwapOrderTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "create_swap_order",
		Description: "Create a CoW Protocol swap order from the treasury Safe. The order must be signed separately before it becomes active.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"amount": {"type": "string", "description": "Token amount in wei"},
				"token_address": {"type": "string", "description": "ERC-20 token contract address"},
				"operation": {"type": "string", "enum": ["buy", "sell"], "description": "Order side"}
			},
			"required": ["amount", "token_address", "operation"]
		}`),
	}
}

func (t *CreateSwapOrderTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		Amount       string `json:"amount"`
		TokenAddress string `json:"token_address"`
		Operation    string `json:"operation"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	return performJSON(ctx, "cowswap", "create-swap-order", connection.Params{
		"amount":        in.Amount,
		"token_address": in.TokenAddress,
		"operation":     in.Operation,
	})
}

// ── sign_swap_order ──────────────────────────────────────────────────────────

type SignSwapOrderTool struct{}

func (t *SignSwapOrderTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "sign_swap_order",
		Description: "Sign a previously created CoW Protocol order so it can be settled.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"order_id": {"type": "string", "description": "Order id returned by create_swap_order"}
			},
			"required": ["order_id"]
		}`),
	}
}

func (t *SignSwapOrderTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	return performJSON(ctx, "cowswap", "sign-swap-order", connection.Params{
		"order_id": in.OrderID,
	})
}

// ── request_confirmation ─────────────────────────────────────────────────────

// RequestConfirmationTool asks the human operators, via the notifier
// service, to approve a pending Safe transaction before it is confirmed
// on chain.
type RequestConfirmationTool struct {
	NotifierURL string
	HTTPClient  *http.Client
}

func (t *RequestConfirmationTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "request_confirmation",
		Description: "Send a pending Safe transaction to the human operators for approval. Never confirm a transaction yourself; always request confirmation and wait.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"tx_hash": {"type": "string", "description": "Safe transaction hash awaiting confirmation"}
			},
			"required": ["tx_hash"]
		}`),
	}
}

func (t *RequestConfirmationTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	if in.TxHash == "" {
		return "", fmt.Errorf("tx_hash is required")
	}

	body, err := json.Marshal(map[string]string{"tx_hash": in.TxHash})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx.Ctx, http.MethodPost,
		t.NotifierURL+"/confirm-tx", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("notifier request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("notifier returned status %d", resp.StatusCode)
	}
	return "confirmation request sent", nil
}

// ── get_analysis ─────────────────────────────────────────────────────────────

// GetAnalysisTool searches the stored proposal analyses so the agent can
// answer questions about proposals it processed in earlier cycles.
type GetAnalysisTool struct{}

func (t *GetAnalysisTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "get_analysis",
		Description: "Look up stored analyses of governance proposals processed earlier. Returns every analysis whose text matches the query.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Substring to search for, e.g. a proposal title or topic"}
			},
			"required": ["query"]
		}`),
	}
}

func (t *GetAnalysisTool) Execute(ctx ToolContext, args json.RawMessage) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", err
	}
	if ctx.Proposals == nil {
		return "", fmt.Errorf("no proposal store configured")
	}
	found := ctx.Proposals.FindAnalysis(in.Query)
	if found == "" {
		return "no stored analysis matches: " + in.Query, nil
	}
	return found, nil
}
