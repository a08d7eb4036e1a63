package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openclaude/termchat/internal/dispatch"
	"github.com/openclaude/termchat/internal/llm/openai"
	"github.com/openclaude/termchat/internal/testutil"
)

func firstPick(int) int { return 0 }

func noSleep(context.Context, time.Duration) error { return nil }

// TestCannedReplyPools verifies the pool chosen for each kind of message.
func TestCannedReplyPools(testingHandle *testing.T) {
	canned := NewCanned(WithRandom(firstPick))

	cases := []struct {
		message string
		want    string
	}{
		{message: "Hello there", want: "Hello!"},
		{message: "this has hi inside", want: "Hello!"},
		{message: "what time is it?", want: "Interesting question..."},
		{message: "BYE now", want: "Goodbye!"},
		{message: "ok", want: "Nice!"},
	}
	for _, testCase := range cases {
		testutil.RequireEqual(testingHandle, canned.Reply(testCase.message), testCase.want, testCase.message)
	}
}

// TestCannedStreamsRunes verifies the reply is emitted rune by rune with paced delays.
func TestCannedStreamsRunes(testingHandle *testing.T) {
	// Arrange
	var delays []time.Duration
	canned := NewCanned(
		WithRandom(func(n int) int { return n - 1 }),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)
	var fragments []string

	// Act
	result, err := canned.Generate(context.Background(), dispatch.Request{Trigger: "ok", Batch: []string{"ok"}}, func(fragment string) {
		fragments = append(fragments, fragment)
	})

	// Assert
	testutil.RequireNoError(testingHandle, err, "generate")
	testutil.RequireEqual(testingHandle, result.FinalText, "Interesting!", "final text")
	testutil.RequireEqual(testingHandle, strings.Join(fragments, ""), "Interesting!", "streamed text")
	testutil.RequireLen(testingHandle, fragments, len("Interesting!"), "fragments")
	for _, delay := range delays {
		testutil.RequireTrue(testingHandle, delay >= 40*time.Millisecond && delay < 80*time.Millisecond, "delay in range")
	}
}

// TestCannedUsesWholeBatch verifies batched messages are answered together.
func TestCannedUsesWholeBatch(testingHandle *testing.T) {
	canned := NewCanned(WithRandom(firstPick), WithSleep(noSleep))

	result, err := canned.Generate(context.Background(), dispatch.Request{Trigger: "ok", Batch: []string{"so long, bye", "ok"}}, func(string) {})

	testutil.RequireNoError(testingHandle, err, "generate")
	testutil.RequireEqual(testingHandle, result.FinalText, "Goodbye!", "batch reply")
}

// TestCannedStopsOnCancel verifies cancellation ends the stream early.
func TestCannedStopsOnCancel(testingHandle *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	canned := NewCanned(WithRandom(firstPick))
	emitted := 0

	_, err := canned.Generate(ctx, dispatch.Request{Trigger: "ok", Batch: []string{"ok"}}, func(string) { emitted++ })

	testutil.RequireTrue(testingHandle, errors.Is(err, context.Canceled), "cancelled")
	testutil.RequireEqual(testingHandle, emitted, 1, "fragments before cancel")
}

// fakeStreamer replays deltas and records requests.
type fakeStreamer struct {
	replies  []string
	err      error
	requests []*openai.ChatRequest
}

func (f *fakeStreamer) ChatCompletionsStream(ctx context.Context, req *openai.ChatRequest, handler openai.StreamHandler) (*openai.StreamSummary, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	for _, word := range strings.SplitAfter(reply, " ") {
		event := openai.StreamResponse{Choices: []openai.StreamChoice{{Delta: openai.StreamDelta{Content: word}}}}
		if err := handler(event); err != nil {
			return nil, err
		}
	}
	return &openai.StreamSummary{}, nil
}

// TestChatKeepsHistory verifies batches become user turns and replies are remembered.
func TestChatKeepsHistory(testingHandle *testing.T) {
	// Arrange
	streamer := &fakeStreamer{replies: []string{"hi there", "fine thanks"}}
	chat := NewChat(streamer, ChatOptions{Model: "m", SystemPrompt: "be brief"})
	var streamed []string
	emit := func(fragment string) { streamed = append(streamed, fragment) }

	// Act
	first, err := chat.Generate(context.Background(), dispatch.Request{Trigger: "hello", Batch: []string{"hello"}}, emit)
	testutil.RequireNoError(testingHandle, err, "first")
	second, err := chat.Generate(context.Background(), dispatch.Request{Trigger: "you?", Batch: []string{"how are", "you?"}}, emit)
	testutil.RequireNoError(testingHandle, err, "second")

	// Assert
	testutil.RequireEqual(testingHandle, first.FinalText, "hi there", "first reply")
	testutil.RequireEqual(testingHandle, second.FinalText, "fine thanks", "second reply")
	testutil.RequireEqual(testingHandle, streamed, []string{"hi ", "there", "fine ", "thanks"}, "fragments")

	testutil.RequireEqual(testingHandle, streamer.requests[1].Messages, []openai.Message{
		{Role: openai.RoleSystem, Content: "be brief"},
		{Role: openai.RoleUser, Content: "hello"},
		{Role: openai.RoleAssistant, Content: "hi there"},
		{Role: openai.RoleUser, Content: "how are"},
		{Role: openai.RoleUser, Content: "you?"},
	}, "second request messages")
	testutil.RequireLen(testingHandle, chat.History(), 5, "history turns")
}

// TestChatErrorKeepsHistory verifies failed requests leave the history untouched.
func TestChatErrorKeepsHistory(testingHandle *testing.T) {
	streamer := &fakeStreamer{err: &openai.APIError{StatusCode: 500, Body: "boom"}}
	chat := NewChat(streamer, ChatOptions{Model: "m"})

	_, err := chat.Generate(context.Background(), dispatch.Request{Trigger: "x", Batch: []string{"x"}}, func(string) {})

	var apiErr *openai.APIError
	testutil.RequireTrue(testingHandle, errors.As(err, &apiErr), "wrapped api error")
	testutil.RequireLen(testingHandle, chat.History(), 0, "history")
}

// TestChatRequiresModel verifies a missing model fails before any request.
func TestChatRequiresModel(testingHandle *testing.T) {
	streamer := &fakeStreamer{}
	chat := NewChat(streamer, ChatOptions{})

	_, err := chat.Generate(context.Background(), dispatch.Request{Trigger: "x", Batch: []string{"x"}}, func(string) {})

	testutil.RequireError(testingHandle, err, "generate")
	testutil.RequireLen(testingHandle, streamer.requests, 0, "requests")
}

// TestTrimTurnsStartsOnUser verifies trimming never leaves a leading assistant turn.
func TestTrimTurnsStartsOnUser(testingHandle *testing.T) {
	turns := []openai.Message{
		{Role: openai.RoleUser, Content: "1"},
		{Role: openai.RoleAssistant, Content: "2"},
		{Role: openai.RoleUser, Content: "3"},
		{Role: openai.RoleAssistant, Content: "4"},
	}

	trimmed := trimTurns(turns, 3)

	testutil.RequireEqual(testingHandle, trimmed, turns[2:], "trimmed turns")
}

// TestChatAgainstServer runs the generator against an SSE endpoint.
func TestChatAgainstServer(testingHandle *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.Header().Set("Content-Type", "text/event-stream")
		for _, word := range []string{"Hello", " world"} {
			_, _ = fmt.Fprintf(responseWriter, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", word)
		}
		_, _ = fmt.Fprint(responseWriter, "data: [DONE]\n\n")
	}))
	defer server.Close()

	chat := NewChat(openai.NewClient(server.URL, "", 5*time.Second), ChatOptions{Model: "m"})
	var streamed strings.Builder

	result, err := chat.Generate(context.Background(), dispatch.Request{Trigger: "hi", Batch: []string{"hi"}}, func(fragment string) {
		streamed.WriteString(fragment)
	})

	testutil.RequireNoError(testingHandle, err, "generate")
	testutil.RequireEqual(testingHandle, result.FinalText, "Hello world", "final text")
	testutil.RequireEqual(testingHandle, streamed.String(), "Hello world", "streamed")
}
