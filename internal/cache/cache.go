// Package cache holds the in-process caches used for derived statistics.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry, used when the underlying data changes.
	Purge()
	Size() int
}

// Cleaner is implemented by caches with expiring entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically removes expired entries from registered caches.
type Janitor struct {
	mu     sync.Mutex
	caches []Cleaner
	logger *slog.Logger
}

func NewJanitor(logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{logger: logger}
}

// Register adds a cache to the cleanup set.
func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.caches = append(j.caches, c)
}

// Sweep cleans every registered cache once and returns the removed count.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.DebugContext(ctx, "Expired cache entries removed", "count", n)
			}
		}
	}
}
