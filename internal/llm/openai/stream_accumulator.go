package openai

import (
	"strings"
)

// StreamAccumulator collects the text of a streamed reply while handing each
// delta to an optional callback.
type StreamAccumulator struct {
	// contentBuilder accumulates streamed text content.
	contentBuilder strings.Builder
	// onDelta receives every non-empty content delta.
	onDelta func(delta string)
	// finishReason stores the latest finish reason.
	finishReason string
}

// NewStreamAccumulator creates an accumulator; onDelta may be nil.
func NewStreamAccumulator(onDelta func(delta string)) *StreamAccumulator {
	return &StreamAccumulator{onDelta: onDelta}
}

// Apply ingests a streaming event. Only the first choice is used.
func (acc *StreamAccumulator) Apply(event StreamResponse) error {
	for _, choice := range event.Choices {
		if choice.Index != 0 {
			continue
		}
		if content := choice.Delta.Content; content != "" {
			acc.contentBuilder.WriteString(content)
			if acc.onDelta != nil {
				acc.onDelta(content)
			}
		}
		if choice.FinishReason != nil {
			acc.finishReason = *choice.FinishReason
		}
	}
	return nil
}

// Content returns the text received so far.
func (acc *StreamAccumulator) Content() string {
	return acc.contentBuilder.String()
}

// Message returns the aggregated assistant message.
func (acc *StreamAccumulator) Message() Message {
	return Message{Role: RoleAssistant, Content: acc.Content()}
}

// FinishReason returns the most recent finish reason.
func (acc *StreamAccumulator) FinishReason() string {
	return acc.finishReason
}
