package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/atotto/clipboard"

	"github.com/openclaude/termchat/internal/chatlog"
	"github.com/openclaude/termchat/internal/config"
	"github.com/openclaude/termchat/internal/dispatch"
	"github.com/openclaude/termchat/internal/generator"
	"github.com/openclaude/termchat/internal/llm/openai"
	"github.com/openclaude/termchat/internal/render"
	"github.com/openclaude/termchat/internal/transcript"
)

const (
	// systemSender labels host notices in the chat pane.
	systemSender = "System"
	// errorColorHint colours failure notices red.
	errorColorHint = "1"
	// maxErrorBody bounds provider error bodies shown in the chat.
	maxErrorBody = 200
)

// backend is the reply source chosen at startup.
type backend struct {
	// generator produces replies.
	generator dispatch.Generator
	// model is the resolved provider model, empty when offline.
	model string
	// offline reports whether canned replies are used.
	offline bool
	// notices are shown as system messages once the session exists.
	notices []string
}

// buildBackend picks the provider-backed chat or the canned responder.
func buildBackend(opts *options, settings *config.Settings, logger *slog.Logger) (*backend, error) {
	if opts.Offline {
		return &backend{
			generator: generator.NewCanned(),
			offline:   true,
			notices:   []string{"Offline mode: replies are canned."},
		}, nil
	}

	cfg, err := config.LoadProviderConfig("")
	if err != nil {
		if errors.Is(err, config.ErrProviderConfigMissing) {
			logger.Info("provider config missing, using canned replies")
			return &backend{
				generator: generator.NewCanned(),
				offline:   true,
				notices: []string{fmt.Sprintf(
					"No provider config at %s; replies are canned. Run `termchat doctor` once it exists.",
					mustProviderPath(),
				)},
			}, nil
		}
		return nil, fmt.Errorf("load provider config: %w", err)
	}

	model := config.ResolveModel(cfg, opts.Model, settings.Model)
	systemPrompt := cfg.SystemPrompt
	if opts.SystemPrompt != "" {
		systemPrompt = opts.SystemPrompt
	}
	client := openai.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.Timeout())
	return &backend{
		generator: generator.NewChat(client, generator.ChatOptions{
			Model:        model,
			SystemPrompt: systemPrompt,
			Logger:       logger.With("component", "chat"),
		}),
		model: model,
	}, nil
}

// sessionControl is the part of hud.Session driven by slash commands.
type sessionControl interface {
	Log() *chatlog.Log
	SendMessage(sender string, text string, colorHint string) chatlog.Record
	SetTitle(title string)
	Cleanup()
}

// chatApp sits between the dispatch queue and the backend. It answers slash
// commands locally and forwards everything else.
type chatApp struct {
	// backend produces replies for ordinary messages.
	backend *backend
	// recorder writes the transcript; nil disables it.
	recorder *transcript.Writer
	// logger receives diagnostics.
	logger *slog.Logger
	// slashCommands enables local command handling.
	slashCommands bool
	// copyText puts text on the system clipboard.
	copyText func(text string) error

	// commandBatch is set while the queue runs a batch made only of slash
	// commands, which is kept out of the reply hooks.
	commandBatch atomic.Bool

	// mu guards session.
	mu sync.Mutex
	// session receives command output once attached.
	session sessionControl
}

// newChatApp builds the generator wrapper for backend.
func newChatApp(backend *backend, recorder *transcript.Writer, logger *slog.Logger, slashCommands bool) *chatApp {
	return &chatApp{
		backend:       backend,
		recorder:      recorder,
		logger:        logger,
		slashCommands: slashCommands,
		copyText:      clipboard.WriteAll,
	}
}

// attach connects the app to the running session.
func (a *chatApp) attach(session sessionControl) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = session
}

func (a *chatApp) control() sessionControl {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// Generate runs slash commands in the batch and forwards the remaining
// messages to the backend. A batch of only commands produces no reply.
func (a *chatApp) Generate(ctx context.Context, request dispatch.Request, emit func(fragment string)) (dispatch.Result, error) {
	if !a.slashCommands {
		return a.backend.generator.Generate(ctx, request, emit)
	}

	var messages []string
	for _, line := range request.Batch {
		handled, output := a.handleSlashCommand(line)
		if !handled {
			messages = append(messages, line)
			continue
		}
		if output != "" {
			a.notify(output, "")
		}
	}
	if len(messages) == 0 {
		return dispatch.Result{}, nil
	}
	return a.backend.generator.Generate(ctx, dispatch.Request{
		Trigger: messages[len(messages)-1],
		Batch:   messages,
	}, emit)
}

// handleSlashCommand runs line when it is a slash command and returns the
// text to show.
func (a *chatApp) handleSlashCommand(line string) (bool, string) {
	command, args, ok := a.parseSlashCommand(line)
	if !ok {
		return false, ""
	}

	switch command {
	case "help":
		return true, strings.Join([]string{
			"/help           show this list",
			"/title <text>   rename the window",
			"/model          show the reply source",
			"/copy           copy the latest reply to the clipboard",
			"/quit           leave the chat",
		}, "\n")
	case "title":
		if args == "" {
			return true, "Usage: /title <text>"
		}
		if session := a.control(); session != nil {
			session.SetTitle(truncateForDisplay(args, 80))
		}
		return true, ""
	case "model":
		if a.backend.offline {
			return true, "Replies are canned (offline)."
		}
		return true, fmt.Sprintf("Model: %s", a.backend.model)
	case "copy":
		return true, a.copyLatestReply()
	case "quit", "exit":
		if session := a.control(); session != nil {
			session.Cleanup()
		}
		return true, ""
	default:
		return true, fmt.Sprintf("Unknown command: /%s. Type /help for commands.", command)
	}
}

// parseSlashCommand splits line into a lower-case command name and its
// arguments. ok is false for ordinary text or when commands are disabled.
func (a *chatApp) parseSlashCommand(line string) (command string, args string, ok bool) {
	if !a.slashCommands {
		return "", "", false
	}
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	parts := strings.Fields(strings.TrimPrefix(trimmed, "/"))
	if len(parts) == 0 {
		return "", "", false
	}
	return strings.ToLower(parts[0]), strings.Join(parts[1:], " "), true
}

// isCommandBatch reports whether every line of batch is a slash command.
func (a *chatApp) isCommandBatch(batch []string) bool {
	if len(batch) == 0 {
		return false
	}
	for _, line := range batch {
		if _, _, ok := a.parseSlashCommand(line); !ok {
			return false
		}
	}
	return true
}

// copyLatestReply copies the newest assistant record and reports the outcome.
func (a *chatApp) copyLatestReply() string {
	session := a.control()
	if session == nil {
		return ""
	}
	record, ok := session.Log().LastOfRole(chatlog.RoleAssistant)
	if !ok || strings.TrimSpace(record.Text) == "" {
		return "Nothing to copy yet."
	}
	if err := a.copyText(record.Text); err != nil {
		a.logger.Warn("copy to clipboard", "error", err)
		return fmt.Sprintf("Copy failed: %v", err)
	}
	return fmt.Sprintf("Copied %d characters.", len([]rune(record.Text)))
}

// callbacks returns the dispatch hooks, recording them when a transcript is
// open. Batches made only of slash commands produce no reply events.
func (a *chatApp) callbacks() dispatch.Callbacks {
	hooks := dispatch.Callbacks{
		OnResponseComplete: func(finalText string) {
			a.logger.Debug("reply completed", "chars", len(finalText))
		},
		OnResponseError: func(batch []string, err error) {
			a.notify("Error: "+formatGeneratorError(err), errorColorHint)
		},
	}
	if a.recorder != nil {
		hooks = a.recorder.Callbacks(hooks, a.logger)
	}

	start, complete, fail := hooks.OnResponseStart, hooks.OnResponseComplete, hooks.OnResponseError
	hooks.OnResponseStart = func(batch []string) {
		if a.isCommandBatch(batch) {
			a.commandBatch.Store(true)
			return
		}
		if start != nil {
			start(batch)
		}
	}
	hooks.OnResponseComplete = func(finalText string) {
		if a.commandBatch.Swap(false) {
			return
		}
		complete(finalText)
	}
	hooks.OnResponseError = func(batch []string, err error) {
		a.commandBatch.Store(false)
		fail(batch, err)
	}
	return hooks
}

// notify shows a system message when a session is attached.
func (a *chatApp) notify(text string, colorHint string) {
	session := a.control()
	if session == nil {
		a.logger.Warn("dropping notice without session", "text", text)
		return
	}
	session.SendMessage(systemSender, text, colorHint)
}

// formatGeneratorError normalizes backend errors for the chat pane.
func formatGeneratorError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *openai.APIError
	switch {
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out."
	case errors.As(err, &apiErr):
		body := truncateForDisplay(compactWhitespace(apiErr.Body), maxErrorBody)
		if body == "" {
			return fmt.Sprintf("Provider returned HTTP %d.", apiErr.StatusCode)
		}
		return fmt.Sprintf("Provider returned HTTP %d: %s", apiErr.StatusCode, body)
	default:
		return compactWhitespace(err.Error())
	}
}

// pingProvider sends a one-line non-streaming request to cfg's default model.
func pingProvider(ctx context.Context, cfg *config.ProviderConfig) (string, error) {
	client := openai.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.Timeout())
	maxTokens := 16
	resp, err := client.ChatCompletions(ctx, &openai.ChatRequest{
		Model:     cfg.DefaultModel,
		Messages:  []openai.Message{{Role: openai.RoleUser, Content: "Reply with the word pong."}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return truncateForDisplay(compactWhitespace(resp.Choices[0].Message.Content), 80), nil
}

// framePalette maps colour settings onto frame slots; unset slots keep defaults.
func framePalette(colors map[string]string) render.Palette {
	return render.Palette{
		Border:           colors["border"],
		Title:            colors["title"],
		Timestamp:        colors["timestamp"],
		Prompt:           colors["prompt"],
		CursorForeground: colors["cursor_fg"],
		CursorBackground: colors["cursor_bg"],
		Indicator:        colors["indicator"],
	}
}

// roleColorKeys maps each role to its label and text setting names.
var roleColorKeys = map[chatlog.Role][2]string{
	chatlog.RoleUser:      {"user", "user_text"},
	chatlog.RoleAssistant: {"bot", "bot_text"},
	chatlog.RoleSystem:    {"system", "system_text"},
}

// rolePalette overlays colour settings on the default role colours. It
// returns nil when no role colour is configured.
func rolePalette(colors map[string]string) chatlog.Palette {
	palette := chatlog.DefaultPalette()
	changed := false
	for role, keys := range roleColorKeys {
		entry := palette[role]
		if value := colors[keys[0]]; value != "" {
			entry.Label = value
			changed = true
		}
		if value := colors[keys[1]]; value != "" {
			entry.Text = value
			changed = true
		}
		palette[role] = entry
	}
	if !changed {
		return nil
	}
	return palette
}

// compactWhitespace collapses internal whitespace into single spaces.
func compactWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// truncateForDisplay shortens long strings without breaking runes.
func truncateForDisplay(value string, max int) string {
	if max <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max]) + "...(truncated)"
}
