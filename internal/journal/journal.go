// Package journal provides a bounded, thread-safe in-memory activity feed.
// The event translator records one entry per domain event so operators can
// inspect recent activity without trawling process logs.
package journal

import (
	"fmt"
	"sync"
	"time"
)

// Kind categorizes an activity entry.
type Kind string

const (
	KindConnection  Kind = "connection"
	KindLedger      Kind = "ledger"
	KindAccount     Kind = "account"
	KindTransaction Kind = "transaction"
)

// Entry is a single activity line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
}

// Journal keeps the most recent entries, oldest evicted first.
type Journal struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
}

// New creates a journal holding at most maxSize entries.
func New(maxSize int) *Journal {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &Journal{
		entries: make([]Entry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record appends a formatted entry.
func (j *Journal) Record(kind Kind, format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, Entry{
		Timestamp: time.Now(),
		Kind:      kind,
		Text:      fmt.Sprintf(format, args...),
	})
	if len(j.entries) > j.maxSize {
		j.entries = j.entries[len(j.entries)-j.maxSize:]
	}
}

// Recent returns the most recent n entries, newest first.
func (j *Journal) Recent(n int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if n > len(j.entries) {
		n = len(j.entries)
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = j.entries[len(j.entries)-1-i]
	}
	return out
}

// All returns every entry, newest first.
func (j *Journal) All() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]Entry, len(j.entries))
	for i := range j.entries {
		out[i] = j.entries[len(j.entries)-1-i]
	}
	return out
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}
