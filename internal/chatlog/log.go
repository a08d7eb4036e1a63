package chatlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Log is the append-only message log. All mutation goes through Append and
// AppendOrAppendToTail; both hold the same lock while Text and Lines change.
type Log struct {
	// mu guards records.
	mu sync.Mutex
	// records is the ordered message sequence.
	records []Record
	// palette resolves colours at creation time.
	palette Palette
	// now is the clock used for timestamps and staleness.
	now func() time.Time
	// changed carries at most one pending change notification.
	changed chan struct{}
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces the wall clock, mainly for staleness tests.
func WithClock(now func() time.Time) Option {
	return func(log *Log) {
		if now != nil {
			log.now = now
		}
	}
}

// WithPalette replaces the default role colours.
func WithPalette(palette Palette) Option {
	return func(log *Log) {
		if len(palette) > 0 {
			log.palette = palette
		}
	}
}

// New returns an empty log.
func New(options ...Option) *Log {
	log := &Log{
		palette: DefaultPalette(),
		now:     time.Now,
		changed: make(chan struct{}, 1),
	}
	for _, option := range options {
		option(log)
	}
	return log
}

// Append adds a record. A non-empty colorHint overrides the label colour.
func (l *Log) Append(role Role, sender string, text string, colorHint string) Record {
	l.mu.Lock()
	record := l.newRecordLocked(role, sender, text, colorHint)
	l.records = append(l.records, record)
	l.mu.Unlock()

	l.notify()
	return record.clone()
}

// AppendOrAppendToTail is the streaming mutation entry point. It finds the
// most recent assistant record and appends fragment to it, unless there is
// none or it was last updated more than staleAfter ago, in which case a new
// assistant record holding fragment is opened. created reports which path ran.
//
// Back-to-back turns that arrive faster than staleAfter are merged.
func (l *Log) AppendOrAppendToTail(fragment string, staleAfter time.Duration) (record Record, created bool) {
	l.mu.Lock()
	now := l.now()
	index := l.lastIndexLocked(RoleAssistant)
	if index < 0 || now.Sub(l.records[index].UpdatedAt) > staleAfter {
		record = l.newRecordLocked(RoleAssistant, SenderAssistant, fragment, "")
		l.records = append(l.records, record)
		created = true
	} else {
		target := &l.records[index]
		target.Text += fragment
		target.Lines = splitLines(target.Text)
		target.UpdatedAt = now
		record = *target
	}
	record = record.clone()
	l.mu.Unlock()

	l.notify()
	return record, created
}

// Snapshot returns a copy of every record in order.
func (l *Log) Snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]Record, len(l.records))
	for index, record := range l.records {
		records[index] = record.clone()
	}
	return records
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// LastOfRole returns the most recent record with the given role.
func (l *Log) LastOfRole(role Role) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := l.lastIndexLocked(role)
	if index < 0 {
		return Record{}, false
	}
	return l.records[index].clone(), true
}

// Changed returns a channel that receives after the log changes. Bursts of
// changes coalesce into a single pending signal.
func (l *Log) Changed() <-chan struct{} {
	return l.changed
}

func (l *Log) newRecordLocked(role Role, sender string, text string, colorHint string) Record {
	now := l.now()
	colors := l.palette.Resolve(role, colorHint)
	return Record{
		ID:         uuid.NewString(),
		Role:       role,
		Sender:     sender,
		Text:       text,
		Lines:      splitLines(text),
		CreatedAt:  now,
		UpdatedAt:  now,
		LabelColor: colors.Label,
		TextColor:  colors.Text,
	}
}

func (l *Log) lastIndexLocked(role Role) int {
	for index := len(l.records) - 1; index >= 0; index-- {
		if l.records[index].Role == role {
			return index
		}
	}
	return -1
}

func (l *Log) notify() {
	select {
	case l.changed <- struct{}{}:
	default:
	}
}
