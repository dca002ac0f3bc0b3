package reason

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowpoke-labs/chairman/internal/llm"
	"github.com/cowpoke-labs/chairman/internal/poll"
)

// scriptedProvider replays canned responses, one per Chat call.
type scriptedProvider struct {
	responses []*llm.Response
	err       error
	requests  []llm.Request
}

func (p *scriptedProvider) Chat(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	i := len(p.requests) - 1
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], nil
}

type countingTool struct {
	calls int
	out   string
	err   error
}

func (t *countingTool) Def() llm.ToolDef {
	return llm.ToolDef{
		Name:        "poke",
		Description: "does a thing",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {"target": {"type": "string"}},
			"required": ["target"]
		}`),
	}
}

func (t *countingTool) Execute(ToolContext, json.RawMessage) (string, error) {
	t.calls++
	return t.out, t.err
}

func textResponse(text string) *llm.Response {
	return &llm.Response{Type: "text", Text: text}
}

func toolResponse(name string, args string) *llm.Response {
	return &llm.Response{Type: "tool_use", ToolCalls: []llm.ToolCall{
		{ID: "call-1", Name: name, Arguments: json.RawMessage(args)},
	}}
}

func testBatch() poll.Batch {
	return poll.Batch{
		ID:     "batch-1",
		Source: "discord",
		Items: []poll.BatchItem{
			{Item: poll.Item{ID: "1", Author: "alice", Content: "older message", Timestamp: time.Unix(100, 0)}},
			{Item: poll.Item{ID: "2", Author: "bob", Content: "what does the proposal change?", Timestamp: time.Unix(200, 0)}, IsNew: true},
		},
	}
}

func newTestStep(p llm.Provider, tools ...Tool) *Step {
	registry := NewToolRegistry()
	for _, t := range tools {
		registry.RegisterTool(t)
	}
	return NewStep(StepOptions{
		LLM:          llm.New(p, llm.Options{Model: "test-model"}),
		Registry:     registry,
		Persona:      "You are the treasury agent.",
		Instructions: map[string]string{"discord": "Reply briefly."},
		Log:          zerolog.Nop(),
	})
}

func TestDecideTextOnly(t *testing.T) {
	p := &scriptedProvider{responses: []*llm.Response{textResponse("nothing to do")}}
	step := newTestStep(p)

	out, err := step.Decide(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, "nothing to do", out)

	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.Contains(t, req.System, "treasury agent")
	assert.Contains(t, req.System, "Reply briefly.")
	require.Len(t, req.Messages, 1)
	rendered := req.Messages[0].Content[0].Text
	assert.Contains(t, rendered, "[CONTEXT] alice")
	assert.Contains(t, rendered, "[NEW] bob")
}

func TestDecideRunsTools(t *testing.T) {
	tool := &countingTool{out: "poked"}
	p := &scriptedProvider{responses: []*llm.Response{
		toolResponse("poke", `{"target": "x"}`),
		textResponse("handled"),
	}}
	step := newTestStep(p, tool)

	out, err := step.Decide(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, "handled", out)
	assert.Equal(t, 1, tool.calls)

	// Second request carries the tool exchange.
	require.Len(t, p.requests, 2)
	msgs := p.requests[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "tool_use", msgs[1].Content[0].Type)
	assert.Equal(t, "tool_result", msgs[2].Content[0].Type)
	assert.Equal(t, "poked", msgs[2].Content[0].ToolResult.Content)
}

func TestDecideToolFailureBecomesObservation(t *testing.T) {
	tool := &countingTool{err: errors.New("service unavailable")}
	p := &scriptedProvider{responses: []*llm.Response{
		toolResponse("poke", `{"target": "x"}`),
		textResponse("could not act"),
	}}
	step := newTestStep(p, tool)

	out, err := step.Decide(context.Background(), testBatch())
	require.NoError(t, err, "tool failure must not fail the batch")
	assert.Equal(t, "could not act", out)

	result := p.requests[1].Messages[2].Content[0].ToolResult
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "service unavailable")
}

func TestDecideRejectsBadToolArgs(t *testing.T) {
	tool := &countingTool{out: "poked"}
	p := &scriptedProvider{responses: []*llm.Response{
		toolResponse("poke", `{"wrong": 1}`),
		textResponse("corrected"),
	}}
	step := newTestStep(p, tool)

	_, err := step.Decide(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, 0, tool.calls, "invalid arguments must not reach the handler")

	result := p.requests[1].Messages[2].Content[0].ToolResult
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "invalid arguments")
}

func TestDecideLLMErrorFailsBatch(t *testing.T) {
	p := &scriptedProvider{err: errors.New("api unreachable")}
	step := newTestStep(p)

	_, err := step.Decide(context.Background(), testBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch-1")
}

func TestDecideIterationBound(t *testing.T) {
	tool := &countingTool{out: "poked"}
	// Model never stops asking for the tool.
	p := &scriptedProvider{responses: []*llm.Response{
		{Type: "tool_use", Text: "working on it", ToolCalls: []llm.ToolCall{
			{ID: "call-1", Name: "poke", Arguments: json.RawMessage(`{"target": "x"}`)},
		}},
	}}
	step := newTestStep(p, tool)

	out, err := step.Decide(context.Background(), testBatch())
	require.NoError(t, err, "hitting the bound is not a failure")
	assert.Equal(t, "working on it", out)
	assert.Equal(t, defaultMaxIterations, tool.calls)
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewToolRegistry()
	res := r.Execute("missing", json.RawMessage(`{}`), ToolContext{})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "unknown tool")
}
