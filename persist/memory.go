package persist

import "sync"

// MemoryEntry is one durable write recorded by MemoryLog.
type MemoryEntry struct {
	Tag    string
	Update any
}

// MemoryLog is an in-process MutationLog: every update is kept in order in
// memory, nothing touches disk. It's the default backend for tests and for
// the CLI's dev mode, not a production storage layer — real deployments
// back onto a relational database (host) or a flash partition (device),
// both out of scope here since this module only defines the contract they
// implement.
type MemoryLog struct {
	mu      sync.Mutex
	entries []MemoryEntry
}

// NewMemoryLog returns an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append records update under tag, in call order.
func (l *MemoryLog) Append(tag string, update any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, MemoryEntry{Tag: tag, Update: update})
	return nil
}

// Entries returns every entry recorded so far, in append order.
func (l *MemoryLog) Entries() []MemoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]MemoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesForTag returns, in append order, every update recorded under tag
// — the replay sequence for rebuilding that one value from its initial
// state.
func (l *MemoryLog) EntriesForTag(tag string) []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []any
	for _, e := range l.entries {
		if e.Tag == tag {
			out = append(out, e.Update)
		}
	}
	return out
}
