// Package snapshot caches the schedulable pipeline set in memory.
//
// The cache refreshes from the store on a ticker and serves readers from
// memory, so a detection pass never blocks on the database. It is eventually
// consistent and empty until the first successful refresh; the poller's
// startup loop waits that warm-up out.
package snapshot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/djlord-it/misfire-guard/internal/domain"
	"github.com/djlord-it/misfire-guard/internal/metrics"
)

// Store loads the current pipeline set with triggers.
type Store interface {
	GetPipelines(ctx context.Context) ([]domain.Pipeline, error)
}

// Cache is a periodically refreshed in-memory view of the pipeline set.
type Cache struct {
	store    Store
	interval time.Duration
	metrics  metrics.Sink

	mu        sync.RWMutex
	pipelines []domain.Pipeline
	warmed    bool
}

// NewCache creates a cache refreshing at the given interval (default 30s).
func NewCache(store Store, interval time.Duration) *Cache {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Cache{
		store:    store,
		interval: interval,
		metrics:  metrics.NewNoopSink(),
	}
}

// WithMetrics sets the metrics sink.
func (c *Cache) WithMetrics(sink metrics.Sink) *Cache {
	c.metrics = sink
	return c
}

// Run refreshes the cache immediately and then on every tick until ctx is
// cancelled. Refresh failures are logged and counted; the previous snapshot
// stays in place and the loop keeps running.
func (c *Cache) Run(ctx context.Context) {
	log.Printf("snapshot: cache started (refresh=%s)", c.interval)

	c.refresh(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("snapshot: cache stopped")
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *Cache) refresh(ctx context.Context) {
	pipelines, err := c.store.GetPipelines(ctx)
	if err != nil {
		log.Printf("snapshot: refresh failed: %v", err)
		c.metrics.ErrorRecorded(metrics.ErrorType(err))
		return
	}

	c.mu.Lock()
	c.pipelines = pipelines
	c.warmed = true
	c.mu.Unlock()

	c.metrics.SnapshotSizeUpdate(len(pipelines))
}

// Pipelines returns the current snapshot. The returned slice is a copy;
// callers may range over it freely while refreshes continue.
func (c *Cache) Pipelines() []domain.Pipeline {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Pipeline, len(c.pipelines))
	copy(result, c.pipelines)
	return result
}

// Warmed reports whether at least one refresh has succeeded.
func (c *Cache) Warmed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.warmed
}
