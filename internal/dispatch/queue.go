package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openclaude/termchat/internal/chatlog"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("dispatch queue closed")
	// ErrEmptyMessage is returned by Submit for blank text.
	ErrEmptyMessage = errors.New("empty message")
)

// Options configures a Queue.
type Options struct {
	// StaleAfter is the streaming staleness threshold; zero uses chatlog.DefaultStaleAfter.
	StaleAfter time.Duration
	// Callbacks are the host hooks.
	Callbacks Callbacks
	// Logger receives diagnostics; nil discards them.
	Logger *slog.Logger
}

// State is a snapshot of the queue.
type State struct {
	// PendingSubmitted holds messages submitted while idle that no call has taken yet.
	PendingSubmitted []string
	// PendingWhileBusy holds messages submitted during a generation.
	PendingWhileBusy []string
	// Generating is true while a generation call is in flight or about to start.
	Generating bool
	// Draining is true while the worker is moving on to a follow-up batch.
	Draining bool
}

// Queue is the Idle/Generating state machine. At most one generation call
// is in flight at any time; messages submitted meanwhile are batched into
// the next call.
type Queue struct {
	// log receives user records and, through sink, assistant fragments.
	log *chatlog.Log
	// sink routes generator fragments into log.
	sink *chatlog.Sink
	// generator produces replies.
	generator Generator
	// callbacks are the host hooks.
	callbacks Callbacks
	// logger receives diagnostics.
	logger *slog.Logger

	// ctx is passed to every generation call and cancelled by Close.
	ctx context.Context
	// cancel cancels ctx.
	cancel context.CancelFunc

	// mu guards the fields below.
	mu sync.Mutex
	// pendingSubmitted is the queue of messages that start a call.
	pendingSubmitted []string
	// pendingWhileBusy accumulates messages submitted during a call.
	pendingWhileBusy []string
	// generating is the mutual exclusion flag for generation calls.
	generating bool
	// draining is set between consecutive calls of one worker run.
	draining bool
	// closed rejects further submissions.
	closed bool
	// idle is closed when no worker is running.
	idle chan struct{}
}

// New returns an idle queue writing into log.
func New(log *chatlog.Log, generator Generator, options Options) *Queue {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		log:       log,
		sink:      chatlog.NewSink(log, options.StaleAfter),
		generator: generator,
		callbacks: options.Callbacks,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		idle:      idle,
	}
}

// Submit appends text as a user record before returning. When the queue is
// idle a generation starts for it; otherwise it joins the next batch.
func (q *Queue) Submit(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.log.Append(chatlog.RoleUser, chatlog.SenderUser, text, "")
	start := false
	if q.generating {
		q.pendingWhileBusy = append(q.pendingWhileBusy, text)
	} else {
		q.pendingSubmitted = append(q.pendingSubmitted, text)
		q.generating = true
		q.idle = make(chan struct{})
		start = true
	}
	idle := q.idle
	q.mu.Unlock()

	if q.callbacks.OnSubmit != nil {
		q.callbacks.OnSubmit(text)
	}
	if start {
		q.notifyBusy(true)
		go q.run(idle)
	}
	return nil
}

// Busy reports whether a generation is in flight.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generating
}

// State returns a copy of the queue state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return State{
		PendingSubmitted: append([]string(nil), q.pendingSubmitted...),
		PendingWhileBusy: append([]string(nil), q.pendingWhileBusy...),
		Generating:       q.generating,
		Draining:         q.draining,
	}
}

// Wait blocks until the queue is idle or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects further submissions and cancels the generation context.
// A generator that ignores its context keeps running until it returns.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
}

// run is the worker loop; it owns the generating flag until it returns.
func (q *Queue) run(idle chan struct{}) {
	for {
		q.mu.Lock()
		batch := q.nextBatchLocked()
		if batch == nil {
			q.generating = false
			q.draining = false
			q.mu.Unlock()
			q.notifyBusy(false)
			close(idle)
			return
		}
		q.mu.Unlock()

		q.generate(batch)

		q.mu.Lock()
		q.draining = true
		q.mu.Unlock()
	}
}

// nextBatchLocked takes the next batch: the oldest submitted message plus
// everything that arrived while busy, or the busy batch alone.
func (q *Queue) nextBatchLocked() []string {
	var batch []string
	if len(q.pendingSubmitted) > 0 {
		batch = append(batch, q.pendingSubmitted[0])
		q.pendingSubmitted = q.pendingSubmitted[1:]
	}
	batch = append(batch, q.pendingWhileBusy...)
	q.pendingWhileBusy = nil
	if len(batch) == 0 {
		return nil
	}
	return batch
}

// generate performs one generator call for batch.
func (q *Queue) generate(batch []string) {
	request := Request{Trigger: batch[len(batch)-1], Batch: append([]string(nil), batch...)}
	if q.callbacks.OnResponseStart != nil {
		q.callbacks.OnResponseStart(append([]string(nil), batch...))
	}
	q.logger.Debug("generation started", "batch_size", len(batch))

	emitter := &emitter{sink: q.sink, logger: q.logger}
	result, err := q.call(request, emitter.emit)
	streamed := emitter.finish()

	if err != nil {
		q.logger.Warn("generation failed", "error", err, "batch_size", len(batch))
		if q.callbacks.OnResponseError != nil {
			q.callbacks.OnResponseError(append([]string(nil), batch...), err)
		}
		return
	}

	finalText := result.FinalText
	if streamed == "" && finalText != "" {
		q.log.Append(chatlog.RoleAssistant, chatlog.SenderAssistant, finalText, "")
	}
	if finalText == "" {
		finalText = streamed
	}
	q.logger.Debug("generation completed", "chars", len(finalText))
	if q.callbacks.OnResponseComplete != nil {
		q.callbacks.OnResponseComplete(finalText)
	}
}

// call invokes the generator, turning a panic into an error.
func (q *Queue) call(request Request, emit func(string)) (result Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("generator panic: %v", recovered)
		}
	}()
	return q.generator.Generate(q.ctx, request, emit)
}

func (q *Queue) notifyBusy(busy bool) {
	if q.callbacks.OnBusyChange != nil {
		q.callbacks.OnBusyChange(busy)
	}
}

// emitter forwards fragments to the sink until the call that owns it returns.
type emitter struct {
	mu       sync.Mutex
	sink     *chatlog.Sink
	logger   *slog.Logger
	done     bool
	streamed strings.Builder
}

func (e *emitter) emit(fragment string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		e.logger.Warn("dropping fragment emitted after generation completed", "chars", len(fragment))
		return
	}
	if fragment == "" {
		return
	}
	e.streamed.WriteString(fragment)
	e.sink.Emit(fragment)
}

// finish closes the emitter and returns everything it forwarded.
func (e *emitter) finish() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done = true
	return e.streamed.String()
}
