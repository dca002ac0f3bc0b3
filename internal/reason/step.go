package reason

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cowpoke-labs/chairman/internal/connection"
	"github.com/cowpoke-labs/chairman/internal/llm"
	"github.com/cowpoke-labs/chairman/internal/poll"
	"github.com/cowpoke-labs/chairman/internal/store"
)

// defaultMaxIterations bounds the tool-use loop for a single batch.
const defaultMaxIterations = 6

// Step is the decision layer between the poller and the action registry.
type Step struct {
	llm       *llm.Client
	registry  *ToolRegistry
	manager   *connection.Manager
	proposals *store.ProposalStore

	persona       string
	instructions  map[string]string
	maxIterations int
	log           zerolog.Logger
}

// StepOptions configures a Step. Instructions are keyed by source name
// and appended to the persona for batches from that source.
type StepOptions struct {
	LLM           *llm.Client
	Registry      *ToolRegistry
	Manager       *connection.Manager
	Proposals     *store.ProposalStore
	Persona       string
	Instructions  map[string]string
	MaxIterations int
	Log           zerolog.Logger
}

func NewStep(opts StepOptions) *Step {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Registry == nil {
		opts.Registry = NewToolRegistry()
	}
	return &Step{
		llm:           opts.LLM,
		registry:      opts.Registry,
		manager:       opts.Manager,
		proposals:     opts.Proposals,
		persona:       opts.Persona,
		instructions:  opts.Instructions,
		maxIterations: opts.MaxIterations,
		log:           opts.Log,
	}
}

// Decide runs the tool-use loop over one batch. A returned error means
// the batch was not processed and must be retried whole; hitting the
// iteration bound is not an error, whatever text the model produced so
// far is the outcome.
func (s *Step) Decide(ctx context.Context, batch poll.Batch) (string, error) {
	toolCtx := ToolContext{
		Ctx:       ctx,
		Manager:   s.manager,
		Proposals: s.proposals,
		Source:    batch.Source,
		Timestamp: time.Now().Unix(),
	}

	messages := []llm.Message{llm.TextMessage("user", renderBatch(batch))}
	tools := s.registry.Definitions()

	var lastText string
	for i := 0; i < s.maxIterations; i++ {
		resp, err := s.llm.Chat(ctx, llm.Request{
			System:   s.systemPrompt(batch.Source),
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("reasoning batch %s: %w", batch.ID, err)
		}
		s.log.Debug().
			Str("batch", batch.ID).
			Int("iteration", i).
			Str("type", resp.Type).
			Int("input_tokens", resp.Usage.InputTokens).
			Int("output_tokens", resp.Usage.OutputTokens).
			Msg("llm response")

		if resp.Type != "tool_use" {
			return resp.Text, nil
		}
		if resp.Text != "" {
			lastText = resp.Text
		}

		messages = append(messages, assistantToolUseMessage(resp.ToolCalls))
		results := make([]llm.ContentBlock, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			t0 := time.Now()
			result := s.registry.Execute(call.Name, call.Arguments, toolCtx)
			if result.ToolCallID == "" {
				result.ToolCallID = call.ID
			}
			s.log.Info().
				Str("tool", call.Name).
				Bool("ok", !result.IsError).
				Dur("took", time.Since(t0)).
				Msg("tool executed")
			results = append(results, llm.ContentBlock{Type: "tool_result", ToolResult: result})
		}
		messages = append(messages, llm.Message{Role: "user", Content: results})
	}

	s.log.Warn().Str("batch", batch.ID).Msg("iteration bound reached, keeping partial outcome")
	return lastText, nil
}

func (s *Step) systemPrompt(source string) string {
	var b strings.Builder
	b.WriteString(s.persona)
	if extra, ok := s.instructions[source]; ok && extra != "" {
		b.WriteString("\n\n")
		b.WriteString(extra)
	}
	return b.String()
}

// renderBatch formats a batch as the user message: history first, then
// the items that need a decision.
func renderBatch(batch poll.Batch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n\n", batch.Source)
	for _, bi := range batch.Items {
		tag := "CONTEXT"
		if bi.IsNew {
			tag = "NEW"
		}
		fmt.Fprintf(&b, "[%s] %s (%s): %s\n",
			tag, bi.Author, bi.Timestamp.Format(time.RFC3339), bi.Content)
	}
	b.WriteString("\nDecide how to respond to the NEW items. CONTEXT items were already handled.")
	return b.String()
}

func assistantToolUseMessage(calls []llm.ToolCall) llm.Message {
	blocks := make([]llm.ContentBlock, 0, len(calls))
	for i := range calls {
		call := calls[i]
		blocks = append(blocks, llm.ContentBlock{Type: "tool_use", ToolCall: &call})
	}
	return llm.Message{Role: "assistant", Content: blocks}
}
