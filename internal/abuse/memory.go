package abuse

import (
	"context"
	"sync"
	"time"
)

// memoryWindow is the single-process fallback used when no redis address is
// configured. Counters are lost on restart; the persisted account lockout
// still covers brute force across restarts.
type memoryWindow struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

type windowEntry struct {
	count   int64
	resetAt time.Time
}

func newMemoryWindow() *memoryWindow {
	return &memoryWindow{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

func (w *memoryWindow) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	entry, ok := w.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(window)}
		w.entries[key] = entry
	}
	entry.count++
	return entry.count, entry.resetAt.Sub(now), nil
}

func (w *memoryWindow) Reset(ctx context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, key)
	return nil
}

type memoryBucket struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry
	now     func() time.Time
}

type bucketEntry struct {
	tokens float64
	ts     time.Time
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{
		entries: make(map[string]*bucketEntry),
		now:     time.Now,
	}
}

func (b *memoryBucket) Take(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	if rate <= 0 || burst <= 0 {
		return &Result{Allowed: true, Remaining: burst}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	entry, ok := b.entries[key]
	if !ok {
		entry = &bucketEntry{tokens: float64(burst), ts: now}
		b.entries[key] = entry
	} else {
		delta := now.Sub(entry.ts).Seconds()
		if delta > 0 {
			entry.tokens = minFloat(float64(burst), entry.tokens+delta*rate)
		}
		entry.ts = now
	}

	result := &Result{}
	if entry.tokens >= 1 {
		entry.tokens--
		result.Allowed = true
	} else if needed := 1.0 - entry.tokens; needed > 0 {
		result.RetryAfter = time.Duration(needed / rate * float64(time.Second))
	}
	result.Remaining = int(entry.tokens)
	return result, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
