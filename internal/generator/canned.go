// Package generator holds the reply generators the chat host can plug into
// the dispatch queue.
package generator

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/openclaude/termchat/internal/dispatch"
)

// Canned reply pools, picked by the content of the batch.
var (
	greetingReplies = []string{"Hello!", "Hi there!", "Hey!", "Greetings!"}
	questionReplies = []string{"Interesting question...", "Let me think...", "Good question!"}
	byeReplies      = []string{"Goodbye!", "See you later!", "Take care!"}
	defaultReplies  = []string{"Nice!", "Cool!", "Awesome!", "Got it!", "Interesting!"}
)

const (
	// cannedMinDelay and cannedJitter pace the simulated typing per rune.
	cannedMinDelay = 40 * time.Millisecond
	cannedJitter   = 40 * time.Millisecond
)

// Canned is the offline demo responder: it picks a short reply and streams it
// one rune at a time.
type Canned struct {
	// intn returns a value in [0, n).
	intn func(n int) int
	// sleep waits between runes; it returns early when ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

// CannedOption customises a Canned generator.
type CannedOption func(*Canned)

// WithRandom replaces the random source.
func WithRandom(intn func(n int) int) CannedOption {
	return func(c *Canned) {
		c.intn = intn
	}
}

// WithSleep replaces the pacing function.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) CannedOption {
	return func(c *Canned) {
		c.sleep = sleep
	}
}

// NewCanned returns a canned responder.
func NewCanned(options ...CannedOption) *Canned {
	canned := &Canned{intn: rand.Intn, sleep: sleepContext}
	for _, option := range options {
		option(canned)
	}
	return canned
}

// Reply picks the reply for a message.
func (c *Canned) Reply(message string) string {
	lower := strings.ToLower(message)
	pool := defaultReplies
	switch {
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi"):
		pool = greetingReplies
	case strings.Contains(lower, "?"):
		pool = questionReplies
	case strings.Contains(lower, "bye"):
		pool = byeReplies
	}
	return pool[c.intn(len(pool))]
}

// Generate streams the reply to the whole batch.
func (c *Canned) Generate(ctx context.Context, request dispatch.Request, emit func(fragment string)) (dispatch.Result, error) {
	reply := c.Reply(strings.Join(request.Batch, " "))
	for _, r := range reply {
		emit(string(r))
		delay := cannedMinDelay + time.Duration(c.intn(int(cannedJitter/time.Millisecond)))*time.Millisecond
		if err := c.sleep(ctx, delay); err != nil {
			return dispatch.Result{}, err
		}
	}
	return dispatch.Result{FinalText: reply}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
