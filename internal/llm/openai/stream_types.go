package openai

// StreamOptions asks the server for extra stream payloads.
type StreamOptions struct {
	// IncludeUsage adds a final chunk with token counts.
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// StreamResponse is one chat.completion.chunk payload.
type StreamResponse struct {
	// ID is shared by every chunk of one reply.
	ID string `json:"id,omitempty"`
	// Model is the model answering.
	Model string `json:"model,omitempty"`
	// Choices carry the text deltas; termchat reads index 0 only.
	Choices []StreamChoice `json:"choices,omitempty"`
	// Usage arrives in the last chunk when IncludeUsage is set.
	Usage *Usage `json:"usage,omitempty"`
	// Error is set by gateways that fail after the stream has started.
	Error *StreamError `json:"error,omitempty"`
}

// StreamError is an in-band failure reported inside the event stream.
type StreamError struct {
	// Message describes the failure.
	Message string `json:"message"`
	// Type is the provider error class, when given.
	Type string `json:"type,omitempty"`
}

// StreamChoice is the delta for one choice index.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason,omitempty"`
}

// StreamDelta is the incremental part of the assistant message.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamHandler consumes decoded chunks in arrival order.
type StreamHandler func(event StreamResponse) error

// StreamSummary is what a finished stream reports besides its text.
type StreamSummary struct {
	// ID is the first non-empty chunk id.
	ID string
	// Model is the first non-empty chunk model.
	Model string
	// Usage holds token counts when the server sent them.
	Usage Usage
	// HasUsage reports whether Usage is populated.
	HasUsage bool
}
