// Package dedupe tracks claimed idempotency keys.
//
// It backs uniqueness constraints for stores that have no database to
// enforce them, e.g. "one certificate per (user, course)" in the memory store.
package dedupe

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Deduper records claimed keys to ensure at-most-once creation.
type Deduper interface {
	// SeenAndRecord atomically checks if key was claimed and claims it if not.
	// Returns true if key was already claimed, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases a key, e.g. when the write it guarded failed.
	Unrecord(ctx context.Context, key string)

	// Seen reports whether key is currently claimed without claiming it.
	Seen(ctx context.Context, key string) bool

	Size() int64
}

// Key builds a composite key from its parts. Each part is length-prefixed,
// so distinct part lists never produce the same key whatever bytes they hold.
func Key(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// inMemoryDeduper implements Deduper with a map. Keys are never evicted:
// evicting a key would silently drop the uniqueness guarantee it provides.
type inMemoryDeduper struct {
	mu   sync.RWMutex
	seen map[string]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates an empty deduper.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{seen: make(map[string]struct{})}
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Seen(_ context.Context, key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.seen[key]
	return exists
}

// Size returns the current number of claimed keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
