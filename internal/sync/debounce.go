package sync

import (
	"sync"
	"time"
)

// Debouncer serializes work per key and collapses bursts of duplicate
// work within a time window into a single pass. Decision logic spans
// multiple statements and an external lookup, so same-key passes must
// not interleave; database locking alone is not enough. Work is
// distinguished by a variant label: all variants of a key share one
// lock, but only repeats of the same variant are collapsed.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*debounceEntry
}

type debounceEntry struct {
	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewDebouncer creates a debouncer with the given duplicate window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		entries: make(map[string]*debounceEntry),
	}
}

// Run executes fn unless the same (key, variant) completed successfully
// within the window. Concurrent calls with the same key are serialized
// regardless of variant, so opposing passes over one key can never
// interleave; the losers of a same-variant race observe the winner's
// completion time and skip. Returns whether fn ran.
func (d *Debouncer) Run(key, variant string, fn func() error) (bool, error) {
	entry := d.entry(key)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if last, ok := entry.lastRun[variant]; ok && time.Since(last) < d.window {
		return false, nil
	}

	if err := fn(); err != nil {
		// Failed passes don't arm the window so the next observation
		// retries immediately.
		return true, err
	}

	entry.lastRun[variant] = time.Now()

	return true, nil
}

func (d *Debouncer) entry(key string) *debounceEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.entries) > 1024 {
		d.sweep()
	}

	entry, ok := d.entries[key]
	if !ok {
		entry = &debounceEntry{lastRun: make(map[string]time.Time)}
		d.entries[key] = entry
	}

	return entry
}

// sweep drops entries whose every variant expired. Caller must hold d.mu.
func (d *Debouncer) sweep() {
	cutoff := time.Now().Add(-d.window)

	for key, entry := range d.entries {
		if entry.mu.TryLock() {
			stale := true

			for _, last := range entry.lastRun {
				if last.After(cutoff) {
					stale = false
					break
				}
			}

			if stale {
				delete(d.entries, key)
			}

			entry.mu.Unlock()
		}
	}
}
