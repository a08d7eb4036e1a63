package keys

import (
	"testing"

	"github.com/openclaude/termchat/internal/testutil"
)

// TestFeedSingleCharacters verifies one-rune chunks decode as Char events.
func TestFeedSingleCharacters(testingHandle *testing.T) {
	var decoder Decoder

	events := decoder.Feed([]byte("a"))
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: Char, Text: "a"}}, "single char")

	events = decoder.Feed([]byte("é"))
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: Char, Text: "é"}}, "multi-byte char")
}

// TestFeedPasteBurst verifies multi-rune chunks decode as a single Paste.
func TestFeedPasteBurst(testingHandle *testing.T) {
	var decoder Decoder

	events := decoder.Feed([]byte("hello world"))
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: Paste, Text: "hello world"}}, "paste")
}

// TestFeedPasteFoldsInnerLineBreaks verifies embedded newlines join the paste.
func TestFeedPasteFoldsInnerLineBreaks(testingHandle *testing.T) {
	var decoder Decoder

	events := decoder.Feed([]byte("line one\r\nline\ttwo\n"))
	want := []Event{
		{Kind: Paste, Text: "line one line two"},
		{Kind: Enter},
	}
	testutil.RequireEqual(testingHandle, events, want, "paste with line breaks")
}

// TestFeedControlKeys verifies recognised control bytes.
func TestFeedControlKeys(testingHandle *testing.T) {
	cases := []struct {
		name  string
		input string
		want  Kind
	}{
		{name: "carriage return", input: "\r", want: Enter},
		{name: "line feed", input: "\n", want: Enter},
		{name: "delete byte", input: "\x7f", want: Backspace},
		{name: "ctrl h", input: "\b", want: Backspace},
		{name: "ctrl c", input: "\x03", want: Interrupt},
	}
	for _, testCase := range cases {
		testingHandle.Run(testCase.name, func(subTest *testing.T) {
			var decoder Decoder
			events := decoder.Feed([]byte(testCase.input))
			testutil.RequireEqual(subTest, events, []Event{{Kind: testCase.want}}, "control key")
		})
	}
}

// TestFeedDropsUnknownControls verifies other C0 bytes are silently dropped.
func TestFeedDropsUnknownControls(testingHandle *testing.T) {
	var decoder Decoder

	events := decoder.Feed([]byte{0x01, 0x02, 0x07})
	testutil.RequireLen(testingHandle, events, 0, "dropped controls")
}

// TestFeedArrowKeys verifies CSI and SS3 arrow sequences.
func TestFeedArrowKeys(testingHandle *testing.T) {
	var decoder Decoder

	events := decoder.Feed([]byte("\x1b[D\x1b[C\x1bOA\x1bOB"))
	want := []Event{{Kind: ArrowLeft}, {Kind: ArrowRight}, {Kind: ArrowUp}, {Kind: ArrowDown}}
	testutil.RequireEqual(testingHandle, events, want, "arrow keys")
}

// TestFeedSequenceAcrossChunks verifies escape sequences survive chunk boundaries.
func TestFeedSequenceAcrossChunks(testingHandle *testing.T) {
	var decoder Decoder

	testutil.RequireLen(testingHandle, decoder.Feed([]byte{0x1b}), 0, "escape byte alone")
	testutil.RequireTrue(testingHandle, decoder.Pending(), "expected pending sequence")
	testutil.RequireLen(testingHandle, decoder.Feed([]byte("[")), 0, "introducer")
	events := decoder.Feed([]byte("Dx"))
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: ArrowLeft}, {Kind: Char, Text: "x"}}, "completed sequence")
	testutil.RequireTrue(testingHandle, !decoder.Pending(), "expected no pending sequence")
}

// TestFeedLoneEscapeKeepsNextKey verifies a standalone Esc does not swallow the following key.
func TestFeedLoneEscapeKeepsNextKey(testingHandle *testing.T) {
	var decoder Decoder

	testutil.RequireLen(testingHandle, decoder.Feed([]byte{0x1b}), 0, "escape key")
	events := decoder.Feed([]byte("a"))
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: Char, Text: "a"}}, "key after escape")
	testutil.RequireTrue(testingHandle, !decoder.Pending(), "expected no pending sequence")

	testutil.RequireLen(testingHandle, decoder.Feed([]byte("hi\x1b")), 1, "text then escape")
	events = decoder.Feed([]byte("\x03"))
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: Interrupt}}, "interrupt after escape")
}

// TestFeedDiscardsUnknownSequences verifies unrecognised sequences are never echoed.
func TestFeedDiscardsUnknownSequences(testingHandle *testing.T) {
	var decoder Decoder

	events := decoder.Feed([]byte("\x1b[200~hi\x1b[201~\x1b[15;5~"))
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: Paste, Text: "hi"}}, "bracketed paste markers")

	events = decoder.Feed([]byte("\x1bxy"))
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: Char, Text: "y"}}, "alt key discarded")
}

// TestFeedAbandonsRunawaySequence verifies unterminated sequences are bounded.
func TestFeedAbandonsRunawaySequence(testingHandle *testing.T) {
	var decoder Decoder

	runaway := append([]byte("\x1b["), []byte("1234567890123456789012345678901234567890")...)
	decoder.Feed(runaway)
	testutil.RequireTrue(testingHandle, !decoder.Pending(), "expected runaway sequence to be abandoned")
}

// TestFeedSplitRune verifies UTF-8 runes cut by a read boundary are reassembled.
func TestFeedSplitRune(testingHandle *testing.T) {
	var decoder Decoder
	encoded := []byte("ж")

	testutil.RequireLen(testingHandle, decoder.Feed(encoded[:1]), 0, "first half")
	events := decoder.Feed(encoded[1:])
	testutil.RequireEqual(testingHandle, events, []Event{{Kind: Char, Text: "ж"}}, "reassembled rune")
}

// TestFeedMixedChunk verifies ordering of mixed printable and control input.
func TestFeedMixedChunk(testingHandle *testing.T) {
	var decoder Decoder

	events := decoder.Feed([]byte("ab\x7fc\x03"))
	want := []Event{
		{Kind: Paste, Text: "ab"},
		{Kind: Backspace},
		{Kind: Char, Text: "c"},
		{Kind: Interrupt},
	}
	testutil.RequireEqual(testingHandle, events, want, "mixed chunk")
}
