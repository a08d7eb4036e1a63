package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openclaude/termchat/internal/dispatch"
	"github.com/openclaude/termchat/internal/llm/openai"
)

// DefaultMaxTurns bounds the history sent with each request, system prompt excluded.
const DefaultMaxTurns = 40

// Streamer is the part of openai.Client used by Chat.
type Streamer interface {
	ChatCompletionsStream(ctx context.Context, req *openai.ChatRequest, handler openai.StreamHandler) (*openai.StreamSummary, error)
}

// ChatOptions configures a Chat generator.
type ChatOptions struct {
	// Model is the provider model identifier.
	Model string
	// SystemPrompt opens every request when set.
	SystemPrompt string
	// MaxTurns bounds the remembered turns; zero uses DefaultMaxTurns.
	MaxTurns int
	// Logger receives request diagnostics; nil uses slog.Default.
	Logger *slog.Logger
}

// Chat streams replies from an OpenAI-compatible backend and keeps the
// conversation so every request carries the earlier turns.
type Chat struct {
	// client performs the streaming request.
	client Streamer
	// options holds the resolved configuration.
	options ChatOptions
	// logger receives diagnostics.
	logger *slog.Logger

	// mu guards history.
	mu sync.Mutex
	// history holds completed user and assistant turns.
	history []openai.Message
}

// NewChat returns a Chat generator using client.
func NewChat(client Streamer, options ChatOptions) *Chat {
	if options.MaxTurns <= 0 {
		options.MaxTurns = DefaultMaxTurns
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{client: client, options: options, logger: logger}
}

// Generate sends every batch message as a user turn and streams the reply.
// History only advances when the request succeeds.
func (c *Chat) Generate(ctx context.Context, request dispatch.Request, emit func(fragment string)) (dispatch.Result, error) {
	if c.options.Model == "" {
		return dispatch.Result{}, errors.New("no model configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	turns := append([]openai.Message(nil), c.history...)
	for _, text := range request.Batch {
		turns = append(turns, openai.Message{Role: openai.RoleUser, Content: text})
	}

	accumulator := openai.NewStreamAccumulator(emit)
	summary, err := c.client.ChatCompletionsStream(ctx, &openai.ChatRequest{
		Model:    c.options.Model,
		Messages: c.withSystemPrompt(turns),
	}, accumulator.Apply)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("stream chat completion: %w", err)
	}

	if reply := accumulator.Message(); reply.Content != "" {
		turns = append(turns, reply)
	}
	c.history = trimTurns(turns, c.options.MaxTurns)

	if summary != nil && summary.HasUsage {
		c.logger.Debug("chat completion finished",
			"model", summary.Model,
			"finish_reason", accumulator.FinishReason(),
			"prompt_tokens", summary.Usage.PromptTokens,
			"completion_tokens", summary.Usage.CompletionTokens,
		)
	}
	return dispatch.Result{FinalText: accumulator.Content()}, nil
}

// History returns a copy of the remembered turns.
func (c *Chat) History() []openai.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]openai.Message(nil), c.history...)
}

func (c *Chat) withSystemPrompt(turns []openai.Message) []openai.Message {
	if c.options.SystemPrompt == "" {
		return turns
	}
	messages := make([]openai.Message, 0, len(turns)+1)
	messages = append(messages, openai.Message{Role: openai.RoleSystem, Content: c.options.SystemPrompt})
	return append(messages, turns...)
}

// trimTurns keeps the newest limit turns, starting on a user turn.
func trimTurns(turns []openai.Message, limit int) []openai.Message {
	if len(turns) <= limit {
		return turns
	}
	turns = turns[len(turns)-limit:]
	for len(turns) > 0 && turns[0].Role != openai.RoleUser {
		turns = turns[1:]
	}
	return append([]openai.Message(nil), turns...)
}
