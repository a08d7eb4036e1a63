// Package transcript appends the host-observable events of a chat session to
// a JSONL file, one event per line.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/openclaude/termchat/internal/dispatch"
)

// Event types written to the transcript.
const (
	TypeSessionStarted    = "session_started"
	TypeUserSubmitted     = "user_submitted"
	TypeResponseStarted   = "response_started"
	TypeResponseCompleted = "response_completed"
	TypeResponseFailed    = "response_failed"
	TypeSessionEnded      = "session_ended"
)

// Event is one transcript line.
type Event struct {
	// Type is one of the Type constants.
	Type string `json:"type"`
	// SessionID scopes the event to a session.
	SessionID string `json:"session_id"`
	// UUID uniquely identifies the event.
	UUID string `json:"uuid"`
	// Timestamp is when the event was written.
	Timestamp time.Time `json:"timestamp"`
	// Text is the submitted or final reply text.
	Text string `json:"text,omitempty"`
	// Batch lists the messages answered by a generation.
	Batch []string `json:"batch,omitempty"`
	// Error describes a failed generation.
	Error string `json:"error,omitempty"`
	// Model names the model in session_started events.
	Model string `json:"model,omitempty"`
}

// Writer serialises events to an io.Writer. It is safe for concurrent use.
type Writer struct {
	// mu orders writes.
	mu sync.Mutex
	// out receives JSONL lines.
	out io.Writer
	// closer closes out when the writer owns it.
	closer io.Closer
	// sessionID is stamped on every event.
	sessionID string
	// now stamps events.
	now func() time.Time
	// err is the first write failure; later writes are skipped.
	err error
}

// NewWriter writes events for a new session to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, sessionID: uuid.NewString(), now: time.Now}
}

// DefaultPath returns the transcript path for sessionID under the home directory.
func DefaultPath(sessionID string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".termchat", "transcripts", sessionID+".jsonl"), nil
}

// Create opens path for appending and returns a writer that owns the file.
// An empty path uses DefaultPath for a fresh session id.
func Create(path string) (*Writer, error) {
	sessionID := uuid.NewString()
	if path == "" {
		var err error
		path, err = DefaultPath(sessionID)
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open transcript file: %w", err)
	}
	return &Writer{out: file, closer: file, sessionID: sessionID, now: time.Now}, nil
}

// SessionID returns the id stamped on every event.
func (w *Writer) SessionID() string {
	return w.sessionID
}

// Write appends one event, filling in the session id, uuid and timestamp.
func (w *Writer) Write(event Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}

	event.SessionID = w.sessionID
	event.UUID = uuid.NewString()
	event.Timestamp = w.now().UTC()
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transcript event: %w", err)
	}
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		w.err = fmt.Errorf("write transcript event: %w", err)
		return w.err
	}
	return nil
}

// Err returns the first write failure.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close writes session_ended and closes the file when the writer owns it.
func (w *Writer) Close() error {
	endErr := w.Write(Event{Type: TypeSessionEnded})
	if w.closer == nil {
		return endErr
	}
	return errors.Join(endErr, w.closer.Close())
}

// Callbacks returns dispatch hooks that record events and then call next.
// The first write failure is reported to logger when it is non-nil.
func (w *Writer) Callbacks(next dispatch.Callbacks, logger *slog.Logger) dispatch.Callbacks {
	var reported atomic.Bool
	record := func(event Event) {
		err := w.Write(event)
		if err == nil || logger == nil || !reported.CompareAndSwap(false, true) {
			return
		}
		logger.Warn("transcript write failed; later events are dropped", "event", event.Type, "error", err)
	}
	return dispatch.Callbacks{
		OnSubmit: func(text string) {
			record(Event{Type: TypeUserSubmitted, Text: text})
			if next.OnSubmit != nil {
				next.OnSubmit(text)
			}
		},
		OnResponseStart: func(batch []string) {
			record(Event{Type: TypeResponseStarted, Batch: batch})
			if next.OnResponseStart != nil {
				next.OnResponseStart(batch)
			}
		},
		OnResponseComplete: func(finalText string) {
			record(Event{Type: TypeResponseCompleted, Text: finalText})
			if next.OnResponseComplete != nil {
				next.OnResponseComplete(finalText)
			}
		},
		OnResponseError: func(batch []string, err error) {
			record(Event{Type: TypeResponseFailed, Batch: batch, Error: err.Error()})
			if next.OnResponseError != nil {
				next.OnResponseError(batch, err)
			}
		},
		OnBusyChange: next.OnBusyChange,
	}
}
