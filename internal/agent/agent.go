// Package agent drives one conversation turn against the model: send
// the transcript, execute any requested tools, feed results back, and
// repeat until the model produces a final text answer or the turn fails.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hession/filedesk/internal/llm"
	"github.com/hession/filedesk/internal/tools"
)

const (
	// DefaultMaxToolRounds bounds the tool loop when no value is configured
	DefaultMaxToolRounds = 5
)

// Agent runs conversation turns. It holds no per-turn state: every
// RunTurn builds and discards its own transcript, so one Agent serves
// concurrent requests.
type Agent struct {
	llm             *llm.Client
	registry        *tools.Registry
	systemPrompt    string
	maxToolRounds   int
	toolCallHandler func(name string, args map[string]any, result string, err error)
}

// Option agent configuration option
type Option func(*Agent)

// WithMaxToolRounds overrides the tool round bound
func WithMaxToolRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxToolRounds = n
		}
	}
}

// WithToolCallHandler sets a hook invoked after every tool execution
func WithToolCallHandler(handler func(name string, args map[string]any, result string, err error)) Option {
	return func(a *Agent) {
		a.toolCallHandler = handler
	}
}

// New creates a new Agent instance
func New(llmClient *llm.Client, reg *tools.Registry, systemPrompt string, opts ...Option) *Agent {
	agent := &Agent{
		llm:           llmClient,
		registry:      reg,
		systemPrompt:  systemPrompt,
		maxToolRounds: DefaultMaxToolRounds,
	}

	for _, opt := range opts {
		opt(agent)
	}

	return agent
}

// RunTurn processes one user message through to a final text answer.
// Failures are always a *TurnError; tool-level errors never surface
// here, they are converted into model-visible tool results instead.
func (a *Agent) RunTurn(ctx context.Context, userMessage string) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: a.systemPrompt},
		{Role: "user", Content: userMessage},
	}

	llmTools := a.buildToolDeclarations()

	// Each iteration of this loop is one model call. A tool round is a
	// model call that requested tools plus the execution of those tools;
	// erroring tool rounds count toward the bound the same as clean ones.
	for round := 0; ; round++ {
		if round > a.maxToolRounds {
			return "", &TurnError{
				Kind: FailureRoundLimit,
				Err:  fmt.Errorf("no final answer after %d tool rounds", a.maxToolRounds),
			}
		}

		resp, err := a.llm.Chat(ctx, messages, llmTools)
		if err != nil {
			return "", classifyModelError(err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, toolCall := range resp.ToolCalls {
			messages = append(messages, a.executeToolCall(toolCall))
		}
	}
}

// buildToolDeclarations converts registry schemas to the wire format
func (a *Agent) buildToolDeclarations() []llm.Tool {
	schemas := a.registry.GetSchemas()
	llmTools := make([]llm.Tool, len(schemas))
	for i, schema := range schemas {
		llmTools[i] = llm.Tool{
			Type: schema.Type,
			Function: llm.ToolFunction{
				Name:        schema.Function.Name,
				Description: schema.Function.Description,
				Parameters:  schema.Function.Parameters,
			},
		}
	}
	return llmTools
}

// executeToolCall dispatches one requested tool and wraps the outcome
// as a tool message. Failures become message content so the model can
// correct itself on the next round.
func (a *Agent) executeToolCall(toolCall llm.ToolCall) llm.Message {
	var result string
	var err error

	var args map[string]any
	if jsonErr := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); jsonErr != nil {
		err = fmt.Errorf("failed to parse tool arguments: %v", jsonErr)
	} else {
		result, err = a.registry.Dispatch(toolCall.Function.Name, args)
	}

	if a.toolCallHandler != nil {
		a.toolCallHandler(toolCall.Function.Name, args, result, err)
	}

	content := result
	if err != nil {
		content = fmt.Sprintf("Error: %v", err)
	}

	return llm.Message{
		Role:       "tool",
		Content:    content,
		ToolCallID: toolCall.ID,
	}
}

// classifyModelError maps an upstream failure onto the turn taxonomy.
// Unlike tool failures, these end the turn.
func classifyModelError(err error) *TurnError {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &TurnError{Kind: FailureTimeout, Err: err}
	case errors.Is(err, llm.ErrContentFiltered):
		return &TurnError{Kind: FailureBlocked, Err: err}
	default:
		return &TurnError{Kind: FailureAPIError, Err: err}
	}
}
