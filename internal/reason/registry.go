// Package reason runs the LLM decision step over a polled batch: build
// the prompt, let the model call tools, stop at a text answer or at the
// iteration bound.
package reason

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/llm"
	"github.com/cowpoke-labs/chairman/internal/store"
)

// ToolContext is passed to every tool handler. Manager dispatches to the
// registered connections; Proposals is the analysis archive, nil when no
// store is configured.
type ToolContext struct {
	Ctx       context.Context
	Manager   *connection.Manager
	Proposals *store.ProposalStore
	Source    string
	Timestamp int64
}

// Tool is a single LLM-callable tool.
type Tool interface {
	Def() llm.ToolDef
	Execute(ctx ToolContext, args json.RawMessage) (string, error)
}

type registeredTool struct {
	def     llm.ToolDef
	handler func(ToolContext, json.RawMessage) (string, error)
}

// ToolRegistry maps tool names to handlers.
type ToolRegistry struct {
	tools map[string]registeredTool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: map[string]registeredTool{}}
}

// RegisterTool adds a Tool implementation, replacing any previous tool
// with the same name.
func (r *ToolRegistry) RegisterTool(t Tool) {
	def := t.Def()
	r.tools[def.Name] = registeredTool{def: def, handler: t.Execute}
}

// Execute runs the named tool. Failures come back as IsError results so
// the model can read them and correct itself, never as Go errors.
func (r *ToolRegistry) Execute(name string, args json.RawMessage, ctx ToolContext) *llm.ToolResult {
	tool, ok := r.tools[name]
	if !ok {
		return &llm.ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}
	}

	if err := llm.ValidateToolArgs(tool.def, args); err != nil {
		return &llm.ToolResult{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}
	}

	result, err := tool.handler(ctx, args)
	if err != nil {
		return &llm.ToolResult{Content: err.Error(), IsError: true}
	}
	return &llm.ToolResult{Content: result}
}

// Definitions returns the tool defs for the LLM request.
func (r *ToolRegistry) Definitions() []llm.ToolDef {
	out := make([]llm.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.def)
	}
	return out
}
