// Package console implements the append-only operator log that every workflow writes to.
package console

import (
	"sync"
	"time"

	"github.com/Veraticus/jobdeck/internal/model"
)

// DefaultLimit is the number of entries kept before the oldest are dropped.
const DefaultLimit = 2000

// ClearedText is the system line left behind by Clear.
const ClearedText = "Console cleared."

// Entry is a LogEntry stamped with the time it was rendered.
type Entry struct {
	Time  time.Time
	Text  string
	Level model.Level
}

// Console is an append-only, leveled log. It holds no job state.
type Console struct {
	now         func() time.Time
	subscribers map[int]func(Entry)
	entries     []Entry
	limit       int
	nextSubID   int
	mu          sync.Mutex
}

// Option configures a Console.
type Option func(*Console)

// WithLimit bounds the retained history.
func WithLimit(limit int) Option {
	return func(c *Console) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Console) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty console.
func New(opts ...Option) *Console {
	c := &Console{
		now:         time.Now,
		limit:       DefaultLimit,
		subscribers: make(map[int]func(Entry)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Log appends an entry, stamping it with the current wall-clock time.
func (c *Console) Log(entry model.LogEntry) {
	level := entry.Level
	if level == "" {
		level = model.LevelInfo
	}

	c.mu.Lock()
	stamped := Entry{Time: c.now(), Text: entry.Text, Level: level}
	c.entries = append(c.entries, stamped)
	if overflow := len(c.entries) - c.limit; overflow > 0 {
		c.entries = append([]Entry(nil), c.entries[overflow:]...)
	}
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(stamped)
	}
}

// Info logs an info entry.
func (c *Console) Info(text string) { c.Log(model.LogEntry{Text: text, Level: model.LevelInfo}) }

// Warning logs a warning entry.
func (c *Console) Warning(text string) { c.Log(model.LogEntry{Text: text, Level: model.LevelWarning}) }

// Error logs an error entry.
func (c *Console) Error(text string) { c.Log(model.LogEntry{Text: text, Level: model.LevelError}) }

// Success logs a success entry.
func (c *Console) Success(text string) { c.Log(model.LogEntry{Text: text, Level: model.LevelSuccess}) }

// System logs a system entry.
func (c *Console) System(text string) { c.Log(model.LogEntry{Text: text, Level: model.LevelSystem}) }

// Clear drops all entries and leaves a single system line.
func (c *Console) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
	c.System(ClearedText)
}

// Entries returns a copy of the retained entries, oldest first.
func (c *Console) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of retained entries.
func (c *Console) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Subscribe registers fn to be called after every append.
// Callbacks run on the logging goroutine and must not block.
func (c *Console) Subscribe(fn func(Entry)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (c *Console) snapshotSubscribers() []func(Entry) {
	if len(c.subscribers) == 0 {
		return nil
	}
	subs := make([]func(Entry), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	return subs
}
