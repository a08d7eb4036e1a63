// Package dispatch serialises response generation for submitted messages.
package dispatch

import "context"

// Request is the input handed to a Generator for one generation call.
type Request struct {
	// Trigger is the message that caused the call; for a batch it is the last one.
	Trigger string
	// Batch lists every message delivered by this call in submission order.
	Batch []string
}

// Result is what a Generator returns once it has finished.
type Result struct {
	// FinalText is used as the assistant reply when nothing was emitted.
	FinalText string
}

// Generator produces a response for a batch of user messages. It may call
// emit any number of times before returning; calls after it returns are dropped.
type Generator interface {
	Generate(ctx context.Context, request Request, emit func(fragment string)) (Result, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, request Request, emit func(fragment string)) (Result, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, request Request, emit func(fragment string)) (Result, error) {
	return f(ctx, request, emit)
}

// Callbacks are host hooks fired by the queue. Any field may be nil.
// Response hooks run on the generation goroutine.
type Callbacks struct {
	// OnSubmit fires after a user record has been appended.
	OnSubmit func(text string)
	// OnResponseStart fires before the generator is called.
	OnResponseStart func(batch []string)
	// OnResponseComplete fires with the final reply text after a successful call.
	OnResponseComplete func(finalText string)
	// OnResponseError fires when the generator fails; the queue adds no chat text.
	OnResponseError func(batch []string, err error)
	// OnBusyChange fires when the queue moves between idle and generating.
	OnBusyChange func(busy bool)
}
