package chatlog

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openclaude/termchat/internal/testutil"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(step time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(step)
	c.mu.Unlock()
}

// TestAppendResolvesColors verifies palette lookup and the colour hint override.
func TestAppendResolvesColors(testingHandle *testing.T) {
	log := New()

	user := log.Append(RoleUser, SenderUser, "hi", "")
	notice := log.Append(RoleSystem, "Server", "ready", "214")

	testutil.RequireEqual(testingHandle, user.LabelColor, "2", "user label")
	testutil.RequireEqual(testingHandle, user.TextColor, "7", "user text")
	testutil.RequireEqual(testingHandle, notice.LabelColor, "214", "hint label")
	testutil.RequireEqual(testingHandle, notice.TextColor, "7", "system text")
	testutil.RequireEqual(testingHandle, notice.Sender, "Server", "sender")
	testutil.RequireTrue(testingHandle, user.ID != "" && user.ID != notice.ID, "expected distinct ids")
}

// TestAppendSplitsLines verifies Lines mirrors Text.
func TestAppendSplitsLines(testingHandle *testing.T) {
	log := New()

	record := log.Append(RoleSystem, "Info", "one\ntwo\n", "")

	testutil.RequireEqual(testingHandle, record.Lines, []string{"one", "two", ""}, "lines")
}

// TestStreamingWithinWindowAppends verifies "Hel" + "lo" form one record.
func TestStreamingWithinWindowAppends(testingHandle *testing.T) {
	// Arrange
	clock := newFakeClock()
	log := New(WithClock(clock.Now))
	sink := NewSink(log, 0)

	// Act
	sink.Emit("Hel")
	clock.Advance(500 * time.Millisecond)
	sink.Emit("lo")

	// Assert
	records := log.Snapshot()
	testutil.RequireLen(testingHandle, records, 1, "records")
	testutil.RequireEqual(testingHandle, records[0].Role, RoleAssistant, "role")
	testutil.RequireEqual(testingHandle, records[0].Text, "Hello", "text")
	testutil.RequireEqual(testingHandle, records[0].Sender, SenderAssistant, "sender")
	testutil.RequireEqual(testingHandle, records[0].UpdatedAt, clock.Now(), "updated at")
	testutil.RequireTrue(testingHandle, records[0].CreatedAt.Before(records[0].UpdatedAt), "expected created before updated")
}

// TestStreamingAfterWindowOpensRecord verifies staleness starts a new bubble.
func TestStreamingAfterWindowOpensRecord(testingHandle *testing.T) {
	clock := newFakeClock()
	log := New(WithClock(clock.Now))
	sink := NewSink(log, 0)

	sink.Emit("first")
	clock.Advance(DefaultStaleAfter + time.Millisecond)
	sink.Emit("second")

	records := log.Snapshot()
	testutil.RequireLen(testingHandle, records, 2, "records")
	testutil.RequireEqual(testingHandle, records[0].Text, "first", "old record")
	testutil.RequireEqual(testingHandle, records[1].Text, "second", "new record")
}

// TestStreamingExactlyAtThresholdAppends verifies the window is inclusive.
func TestStreamingExactlyAtThresholdAppends(testingHandle *testing.T) {
	clock := newFakeClock()
	log := New(WithClock(clock.Now))

	log.AppendOrAppendToTail("a", time.Second)
	clock.Advance(time.Second)
	_, created := log.AppendOrAppendToTail("b", time.Second)

	testutil.RequireTrue(testingHandle, !created, "expected append at threshold")
	testutil.RequireEqual(testingHandle, log.Len(), 1, "records")
}

// TestStreamingSkipsInterleavedUserRecords verifies the sink targets the latest assistant record.
func TestStreamingSkipsInterleavedUserRecords(testingHandle *testing.T) {
	clock := newFakeClock()
	log := New(WithClock(clock.Now))
	sink := NewSink(log, 0)

	sink.Emit("Thinking")
	log.Append(RoleUser, SenderUser, "also this", "")
	sink.Emit("...")

	records := log.Snapshot()
	testutil.RequireLen(testingHandle, records, 2, "records")
	testutil.RequireEqual(testingHandle, records[0].Text, "Thinking...", "assistant text")
	testutil.RequireEqual(testingHandle, records[1].Role, RoleUser, "user record untouched")
}

// TestStreamingUpdatesLines verifies Lines follow appended newlines.
func TestStreamingUpdatesLines(testingHandle *testing.T) {
	log := New()
	sink := NewSink(log, time.Minute)

	sink.Emit("line one\nline")
	sink.Emit(" two")

	record, ok := log.LastOfRole(RoleAssistant)
	testutil.RequireTrue(testingHandle, ok, "expected assistant record")
	testutil.RequireEqual(testingHandle, record.Lines, []string{"line one", "line two"}, "lines")
	testutil.RequireEqual(testingHandle, strings.Join(record.Lines, "\n"), record.Text, "lines match text")
}

// TestEmitIgnoresEmptyFragment verifies empty fragments open nothing.
func TestEmitIgnoresEmptyFragment(testingHandle *testing.T) {
	log := New()
	NewSink(log, 0).Emit("")

	testutil.RequireEqual(testingHandle, log.Len(), 0, "records")
}

// TestSnapshotIsACopy verifies callers cannot mutate stored records.
func TestSnapshotIsACopy(testingHandle *testing.T) {
	log := New()
	log.Append(RoleUser, SenderUser, "a\nb", "")

	snapshot := log.Snapshot()
	snapshot[0].Text = "changed"
	snapshot[0].Lines[0] = "changed"

	fresh := log.Snapshot()
	testutil.RequireEqual(testingHandle, fresh[0].Text, "a\nb", "text")
	testutil.RequireEqual(testingHandle, fresh[0].Lines, []string{"a", "b"}, "lines")
}

// TestChangedCoalesces verifies bursts leave a single pending signal.
func TestChangedCoalesces(testingHandle *testing.T) {
	log := New()

	log.Append(RoleUser, SenderUser, "a", "")
	log.Append(RoleUser, SenderUser, "b", "")
	log.AppendOrAppendToTail("c", time.Second)

	testutil.RequireLen(testingHandle, log.Changed(), 1, "pending signals")
	<-log.Changed()
	select {
	case <-log.Changed():
		testingHandle.Fatalf("expected no further signal")
	default:
	}
}

// TestConcurrentEmitsKeepLinesConsistent verifies Text and Lines never disagree under contention.
func TestConcurrentEmitsKeepLinesConsistent(testingHandle *testing.T) {
	log := New()
	sink := NewSink(log, time.Hour)

	var group sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		group.Add(1)
		go func() {
			defer group.Done()
			for index := 0; index < 50; index++ {
				sink.Emit("x\n")
				for _, record := range log.Snapshot() {
					if strings.Join(record.Lines, "\n") != record.Text {
						testingHandle.Errorf("lines diverged from text")
						return
					}
				}
			}
		}()
	}
	group.Wait()

	record, _ := log.LastOfRole(RoleAssistant)
	testutil.RequireEqual(testingHandle, log.Len(), 1, "records")
	testutil.RequireEqual(testingHandle, strings.Count(record.Text, "x"), 400, "fragments")
}
