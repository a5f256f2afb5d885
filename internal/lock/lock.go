// Package lock provides exclusive per-account locks with deadlock-free
// ordered acquisition and bounded waits.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when a lock could not be acquired within the wait
// budget.
var ErrTimeout = errors.New("lock wait timed out")

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// AccountLocker hands out one exclusive lock per key. Entries are reference
// counted and dropped once no goroutine holds or waits on them.
type AccountLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
	wait    time.Duration
}

func NewAccountLocker(wait time.Duration) *AccountLocker {
	return &AccountLocker{entries: make(map[string]*entry), wait: wait}
}

// Acquire locks every key in ascending order and returns a release func.
// Duplicate keys are locked once. On failure nothing stays locked.
func (l *AccountLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalize(keys)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	held := make([]string, 0, len(ordered))
	for _, key := range ordered {
		e := l.ref(key)
		if err := e.sem.Acquire(waitCtx, 1); err != nil {
			l.unref(key)
			l.release(held)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrTimeout
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *AccountLocker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[keys[i]]
		l.mu.Unlock()
		e.sem.Release(1)
		l.unref(keys[i])
	}
}

func (l *AccountLocker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *AccountLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.entries, key)
	}
}

// size reports the number of live entries.
func (l *AccountLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
