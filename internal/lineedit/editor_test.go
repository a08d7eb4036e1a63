package lineedit

import (
	"testing"

	"github.com/openclaude/termchat/internal/keys"
	"github.com/openclaude/termchat/internal/testutil"
)

// TestInsertAtCursor verifies inserts splice at the cursor offset.
func TestInsertAtCursor(testingHandle *testing.T) {
	// Arrange
	editor := New()
	editor.Insert("hllo")
	editor.Home()
	editor.MoveRight()

	// Act
	editor.Insert("e")

	// Assert
	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "hello", Cursor: 2}, "state")
}

// TestPasteIsOneEdit verifies a paste advances the cursor past the whole text.
func TestPasteIsOneEdit(testingHandle *testing.T) {
	editor := New()
	editor.Insert("ab")
	editor.MoveLeft()

	changed := editor.Apply(keys.Event{Kind: keys.Paste, Text: "XYZ"})

	testutil.RequireTrue(testingHandle, changed, "expected paste to change state")
	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "aXYZb", Cursor: 4}, "state")
}

// TestBackspaceAtStartIsNoop verifies the buffer is untouched at offset 0.
func TestBackspaceAtStartIsNoop(testingHandle *testing.T) {
	editor := New()
	editor.Insert("abc")
	editor.Home()

	testutil.RequireTrue(testingHandle, !editor.Backspace(), "expected no-op")
	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "abc", Cursor: 0}, "state")

	editor.End()
	testutil.RequireTrue(testingHandle, editor.Backspace(), "expected removal")
	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "ab", Cursor: 2}, "state")
}

// TestDeleteUnderCursor verifies forward deletion.
func TestDeleteUnderCursor(testingHandle *testing.T) {
	editor := New()
	editor.Insert("abc")
	editor.Home()

	testutil.RequireTrue(testingHandle, editor.Delete(), "expected removal")
	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "bc", Cursor: 0}, "state")

	editor.End()
	testutil.RequireTrue(testingHandle, !editor.Delete(), "expected no-op at end")
}

// TestMultiByteRunes verifies the cursor counts runes, not bytes.
func TestMultiByteRunes(testingHandle *testing.T) {
	editor := New()
	editor.Insert("日本語")
	editor.MoveLeft()
	editor.Backspace()

	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "日語", Cursor: 1}, "state")
}

// TestCursorStaysInBounds drives a long key sequence and checks the cursor after each step.
func TestCursorStaysInBounds(testingHandle *testing.T) {
	editor := New()
	script := []keys.Event{
		{Kind: keys.ArrowLeft},
		{Kind: keys.Backspace},
		{Kind: keys.Char, Text: "a"},
		{Kind: keys.ArrowRight},
		{Kind: keys.ArrowRight},
		{Kind: keys.Paste, Text: "bcd"},
		{Kind: keys.Home},
		{Kind: keys.ArrowLeft},
		{Kind: keys.Delete},
		{Kind: keys.End},
		{Kind: keys.ArrowRight},
		{Kind: keys.Backspace},
		{Kind: keys.Backspace},
		{Kind: keys.Backspace},
		{Kind: keys.Backspace},
		{Kind: keys.Backspace},
	}

	for index, event := range script {
		editor.Apply(event)
		state := editor.State()
		length := len([]rune(state.Buffer))
		if state.Cursor < 0 || state.Cursor > length {
			testingHandle.Fatalf("step %d (%s): cursor %d outside [0,%d]", index, event.Kind, state.Cursor, length)
		}
	}
	testutil.RequireEqual(testingHandle, editor.State(), State{}, "final state")
}

// TestTakeAndClearTrims verifies submissions are trimmed and the buffer reset.
func TestTakeAndClearTrims(testingHandle *testing.T) {
	editor := New()
	editor.Insert("  hi there  ")

	value := editor.TakeAndClear()

	testutil.RequireEqual(testingHandle, value, "hi there", "submitted")
	testutil.RequireEqual(testingHandle, editor.State(), State{}, "state")
}

// TestTakeAndClearBlankKeepsBuffer verifies whitespace-only input is neither submitted nor cleared.
func TestTakeAndClearBlankKeepsBuffer(testingHandle *testing.T) {
	editor := New()
	editor.Insert("   ")

	value := editor.TakeAndClear()

	testutil.RequireEqual(testingHandle, value, "", "submitted")
	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "   ", Cursor: 3}, "state")
}

// TestApplyIgnoresNonEditingEvents verifies Enter and Interrupt do not edit.
func TestApplyIgnoresNonEditingEvents(testingHandle *testing.T) {
	editor := New()
	editor.Insert("x")

	testutil.RequireTrue(testingHandle, !editor.Apply(keys.Event{Kind: keys.Enter}), "enter")
	testutil.RequireTrue(testingHandle, !editor.Apply(keys.Event{Kind: keys.Interrupt}), "interrupt")
	testutil.RequireEqual(testingHandle, editor.State().Buffer, "x", "buffer")
}

// TestHistoryRecallPreservesDraft verifies up/down cycle through submissions and restore the draft.
func TestHistoryRecallPreservesDraft(testingHandle *testing.T) {
	editor := New()
	editor.Insert("first")
	editor.TakeAndClear()
	editor.Insert("second")
	editor.TakeAndClear()
	editor.Insert("dra")

	editor.Apply(keys.Event{Kind: keys.ArrowUp})
	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "second", Cursor: 6}, "previous")

	editor.Apply(keys.Event{Kind: keys.ArrowUp})
	testutil.RequireEqual(testingHandle, editor.State().Buffer, "first", "oldest")

	testutil.RequireTrue(testingHandle, !editor.HistoryPrev(), "expected clamp at oldest")

	editor.Apply(keys.Event{Kind: keys.ArrowDown})
	editor.Apply(keys.Event{Kind: keys.ArrowDown})
	testutil.RequireEqual(testingHandle, editor.State(), State{Buffer: "dra", Cursor: 3}, "draft")

	testutil.RequireTrue(testingHandle, !editor.HistoryNext(), "expected clamp at draft")
}

// TestHistoryIsCapped verifies old submissions are evicted.
func TestHistoryIsCapped(testingHandle *testing.T) {
	editor := New()
	for index := 0; index < maxHistory+5; index++ {
		editor.Insert("entry")
		editor.TakeAndClear()
	}

	testutil.RequireLen(testingHandle, editor.history, maxHistory, "history")
}
