package hud

import (
	"errors"
	"fmt"
	"os"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// ErrNotTerminal reports that stdin or stdout is not a terminal.
var ErrNotTerminal = errors.New("chat interface requires a TTY")

// Terminal is the device the session drives.
type Terminal interface {
	// Read blocks for raw input; it fails once Cancel has been called.
	Read(p []byte) (int, error)
	// Write sends output to the screen.
	Write(p []byte) (int, error)
	// Size returns the screen size in cells.
	Size() (width int, height int, err error)
	// MakeRaw switches to raw input and returns the function that undoes it.
	MakeRaw() (restore func() error, err error)
	// Cancel unblocks a pending Read.
	Cancel() bool
	// WatchResize signals on the returned channel whenever the size may have changed.
	WatchResize(done <-chan struct{}) <-chan struct{}
}

// StdTerminal is the process terminal on stdin/stdout.
type StdTerminal struct {
	// in is the input device.
	in *os.File
	// out is the output device.
	out *os.File
	// reader wraps in so reads can be interrupted.
	reader cancelreader.CancelReader
}

// NewStdTerminal returns the process terminal, or ErrNotTerminal when either
// stream is redirected.
func NewStdTerminal() (*StdTerminal, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, ErrNotTerminal
	}
	reader, err := cancelreader.NewReader(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("open input reader: %w", err)
	}
	return &StdTerminal{in: os.Stdin, out: os.Stdout, reader: reader}, nil
}

// Read reads raw bytes from stdin.
func (t *StdTerminal) Read(p []byte) (int, error) {
	return t.reader.Read(p)
}

// Write writes to stdout.
func (t *StdTerminal) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

// Size returns the stdout size.
func (t *StdTerminal) Size() (int, int, error) {
	width, height, err := term.GetSize(int(t.out.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("get terminal size: %w", err)
	}
	return width, height, nil
}

// MakeRaw puts stdin into raw mode.
func (t *StdTerminal) MakeRaw() (func() error, error) {
	fd := int(t.in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("set raw mode: %w", err)
	}
	return func() error {
		return term.Restore(fd, state)
	}, nil
}

// Cancel interrupts a blocked Read.
func (t *StdTerminal) Cancel() bool {
	return t.reader.Cancel()
}

// Close releases the input reader.
func (t *StdTerminal) Close() error {
	return t.reader.Close()
}

// isCanceled reports whether err came from Terminal.Cancel.
func isCanceled(err error) bool {
	return errors.Is(err, cancelreader.ErrCanceled)
}
