// Package hud runs an interactive chat session on a terminal: it owns raw
// mode, signals and the event loop that ties the input decoder, the line
// editor, the dispatch queue and the render engine together.
package hud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/muesli/termenv"

	"github.com/openclaude/termchat/internal/chatlog"
	"github.com/openclaude/termchat/internal/dispatch"
	"github.com/openclaude/termchat/internal/keys"
	"github.com/openclaude/termchat/internal/lineedit"
	"github.com/openclaude/termchat/internal/render"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrClosed is returned by Start after Cleanup.
	ErrClosed = errors.New("session closed")
)

const (
	// DefaultBlinkInterval is the cursor blink period.
	DefaultBlinkInterval = 600 * time.Millisecond
	// readChunkSize bounds one terminal read.
	readChunkSize = 1024
)

// Options configures a Session.
type Options struct {
	// Title is the frame title.
	Title string
	// Generator produces replies; it is required.
	Generator dispatch.Generator
	// Callbacks are host hooks forwarded from the dispatch queue.
	Callbacks dispatch.Callbacks
	// OnExit runs once after the terminal has been restored.
	OnExit func()
	// StaleAfter is the streaming staleness threshold; zero uses the default.
	StaleAfter time.Duration
	// BlinkInterval is the cursor blink period; zero uses DefaultBlinkInterval.
	BlinkInterval time.Duration
	// Frame overrides frame colours.
	Frame render.Palette
	// Roles overrides per-role message colours.
	Roles chatlog.Palette
	// Profile is the colour profile used for output.
	Profile termenv.Profile
	// Markdown formats completed assistant replies.
	Markdown bool
	// Clock stamps records; nil uses time.Now.
	Clock func() time.Time
	// Logger receives diagnostics; nil discards them.
	Logger *slog.Logger
}

// Session is one interactive chat on a terminal.
type Session struct {
	// terminal is the device being driven.
	terminal Terminal
	// log holds the conversation.
	log *chatlog.Log
	// editor is owned by the event loop.
	editor *lineedit.Editor
	// queue runs generations.
	queue *dispatch.Queue
	// engine paints the screen.
	engine *render.Engine
	// logger receives diagnostics.
	logger *slog.Logger
	// onExit is the host exit hook.
	onExit func()
	// blink is the cursor blink period.
	blink time.Duration

	// started guards Start.
	started atomic.Bool
	// cleanupOnce makes Cleanup idempotent.
	cleanupOnce sync.Once
	// mu guards restoreMode, stop and closing against a concurrent Cleanup.
	mu sync.Mutex
	// closing is set once cleanup has begun; Start refuses to run after it.
	closing bool
	// restoreMode undoes raw mode; nil before Start.
	restoreMode func() error
	// stop cancels the loop context.
	stop context.CancelFunc
	// signals receives SIGINT and SIGTERM.
	signals chan os.Signal

	// events carries decoded input from the reader goroutine.
	events chan []keys.Event
	// readErrors carries a fatal read error.
	readErrors chan error
	// busyChanged is raised by the queue; the loop reads the current state.
	busyChanged chan struct{}
	// idleSeen records that the queue went idle since the loop last looked,
	// so a completion hidden by a quick resubmit still ends the busy span.
	idleSeen atomic.Bool
	// redraw requests a full frame.
	redraw chan struct{}

	// done is closed when cleanup has finished.
	done chan struct{}
	// errMu guards err.
	errMu sync.Mutex
	// err is the reason the session ended, nil for a normal exit.
	err error
}

// New builds a session on terminal. Nothing is written until Start.
func New(terminal Terminal, options Options) *Session {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	blink := options.BlinkInterval
	if blink <= 0 {
		blink = DefaultBlinkInterval
	}

	var logOptions []chatlog.Option
	if options.Clock != nil {
		logOptions = append(logOptions, chatlog.WithClock(options.Clock))
	}
	if options.Roles != nil {
		logOptions = append(logOptions, chatlog.WithPalette(options.Roles))
	}

	session := &Session{
		terminal:    terminal,
		log:         chatlog.New(logOptions...),
		editor:      lineedit.New(),
		logger:      logger,
		onExit:      options.OnExit,
		blink:       blink,
		signals:     make(chan os.Signal, 1),
		events:      make(chan []keys.Event, 16),
		readErrors:  make(chan error, 1),
		busyChanged: make(chan struct{}, 1),
		redraw:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	callbacks := options.Callbacks
	hostBusy := callbacks.OnBusyChange
	callbacks.OnBusyChange = func(busy bool) {
		if !busy {
			session.idleSeen.Store(true)
		}
		raise(session.busyChanged)
		if hostBusy != nil {
			hostBusy(busy)
		}
	}
	session.queue = dispatch.New(session.log, options.Generator, dispatch.Options{
		StaleAfter: options.StaleAfter,
		Callbacks:  callbacks,
		Logger:     logger,
	})
	session.engine = render.New(terminal, session.log, session.editor, render.Options{
		Title:    options.Title,
		Palette:  options.Frame,
		Profile:  options.Profile,
		Markdown: options.Markdown,
	})
	return session
}

// Log exposes the conversation for observers.
func (s *Session) Log() *chatlog.Log {
	return s.log
}

// Queue exposes the dispatch queue for observers.
func (s *Session) Queue() *dispatch.Queue {
	return s.queue
}

// Start takes over the terminal and begins processing input. Cancelling ctx
// ends the session the same way Ctrl+C does.
func (s *Session) Start(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return ErrClosed
	}

	restore, err := s.terminal.MakeRaw()
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}

	width, height, err := s.terminal.Size()
	if err != nil {
		_ = restore()
		return fmt.Errorf("read terminal size: %w", err)
	}
	s.engine.Resize(width, height)
	if err := s.engine.Prepare(); err != nil {
		_ = restore()
		return fmt.Errorf("prepare terminal: %w", err)
	}
	if err := s.engine.DrawFrame(); err != nil {
		_ = restore()
		return fmt.Errorf("draw frame: %w", err)
	}
	s.restoreMode = restore

	loopCtx, stop := context.WithCancel(context.Background())
	s.stop = stop
	signal.Notify(s.signals, os.Interrupt, syscall.SIGTERM)
	resized := s.terminal.WatchResize(loopCtx.Done())

	go s.watchSignals(ctx, loopCtx)
	go s.readInput(loopCtx)
	go s.loop(loopCtx, resized)

	s.logger.Debug("session started", "width", width, "height", height)
	return nil
}

// Wait blocks until the session has ended and returns the fatal error, if any.
func (s *Session) Wait() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run starts the session and waits for it to end.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

// SendMessage appends a record without going through the dispatch queue.
// Sender "You" is a user record, "Bot" an assistant record and anything else
// a system record.
func (s *Session) SendMessage(sender string, text string, colorHint string) chatlog.Record {
	role := chatlog.RoleSystem
	switch sender {
	case chatlog.SenderUser:
		role = chatlog.RoleUser
	case chatlog.SenderAssistant:
		role = chatlog.RoleAssistant
	}
	return s.log.Append(role, sender, text, colorHint)
}

// SetTitle replaces the frame title and repaints.
func (s *Session) SetTitle(title string) {
	s.engine.SetTitle(title)
	raise(s.redraw)
}

// Cleanup restores the terminal and ends the session. It is safe to call from
// any goroutine, any number of times.
func (s *Session) Cleanup() {
	s.shutdown(nil)
}

// shutdown runs cleanup once, recording cause as the session result.
func (s *Session) shutdown(cause error) {
	s.cleanupOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		stop, restoreMode := s.stop, s.restoreMode
		s.mu.Unlock()

		if stop != nil {
			stop()
		}
		signal.Stop(s.signals)
		s.queue.Close()
		s.terminal.Cancel()

		if restoreMode != nil {
			if err := s.engine.Restore(); err != nil && cause == nil {
				cause = fmt.Errorf("restore screen: %w", err)
			}
			if err := restoreMode(); err != nil && cause == nil {
				cause = fmt.Errorf("restore terminal mode: %w", err)
			}
		}

		s.errMu.Lock()
		s.err = cause
		s.errMu.Unlock()
		if cause != nil {
			s.logger.Warn("session ended", "error", cause)
		} else {
			s.logger.Debug("session ended")
		}

		if s.onExit != nil {
			s.onExit()
		}
		close(s.done)
	})
}

func (s *Session) watchSignals(ctx context.Context, loopCtx context.Context) {
	select {
	case sig := <-s.signals:
		s.logger.Debug("signal received", "signal", sig.String())
		s.Cleanup()
	case <-ctx.Done():
		s.Cleanup()
	case <-loopCtx.Done():
	}
}

// readInput decodes terminal input until the read is cancelled or fails.
func (s *Session) readInput(ctx context.Context) {
	var decoder keys.Decoder
	buffer := make([]byte, readChunkSize)
	for {
		n, err := s.terminal.Read(buffer)
		if n > 0 {
			if events := decoder.Feed(buffer[:n]); len(events) > 0 {
				select {
				case s.events <- events:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil || isCanceled(err) {
				return
			}
			s.readErrors <- fmt.Errorf("read terminal: %w", err)
			return
		}
	}
}

// loop is the single owner of the editor and the only caller of Draw.
func (s *Session) loop(ctx context.Context, resized <-chan struct{}) {
	ticker := time.NewTicker(s.blink)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case events := <-s.events:
			for _, event := range events {
				if event.Kind == keys.Interrupt {
					s.shutdown(nil)
					return
				}
				if err = s.handleKey(event); err != nil {
					break
				}
			}
		case <-s.log.Changed():
			err = s.engine.DrawMessages()
			ticker.Reset(s.blink)
		case <-s.busyChanged:
			err = s.applyBusy()
		case <-s.redraw:
			err = s.engine.DrawFrame()
		case <-resized:
			err = s.resize()
		case <-ticker.C:
			s.engine.ToggleBlink()
			err = s.engine.DrawInput()
		case readErr := <-s.readErrors:
			s.shutdown(readErr)
			return
		}
		if err != nil {
			s.shutdown(err)
			return
		}
	}
}

// applyBusy moves the engine to the queue's busy state and repaints the
// messages, which are formatted differently once a reply has finished.
func (s *Session) applyBusy() error {
	if s.idleSeen.Swap(false) {
		s.engine.SetBusy(false)
	}
	s.engine.SetBusy(s.queue.Busy())
	return s.engine.DrawMessages()
}

// handleKey applies one input event and repaints the input row.
func (s *Session) handleKey(event keys.Event) error {
	if event.Kind == keys.Enter {
		text := s.editor.TakeAndClear()
		if text != "" {
			if err := s.queue.Submit(text); err != nil {
				s.logger.Warn("submit rejected", "error", err)
			}
		}
		s.engine.ResetBlink()
		return s.engine.DrawInput()
	}
	if !s.editor.Apply(event) {
		return nil
	}
	s.engine.ResetBlink()
	return s.engine.DrawInput()
}

func (s *Session) resize() error {
	width, height, err := s.terminal.Size()
	if err != nil {
		s.logger.Warn("resize ignored", "error", err)
		return nil
	}
	s.engine.Resize(width, height)
	s.logger.Debug("terminal resized", "width", width, "height", height)
	return s.engine.DrawFrame()
}

// raise sends a coalescing notification.
func raise(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
