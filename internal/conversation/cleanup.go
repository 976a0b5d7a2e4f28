package conversation

import (
	"context"
	"log/slog"
	"time"
)

const DefaultCleanupInterval = time.Minute

// CleanupService periodically evicts expired sessions from a Store.
type CleanupService struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	purgers  []purger
}

type purger struct {
	name  string
	purge func() int
}

func NewCleanupService(store *Store, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupService{
		store:    store,
		interval: interval,
		logger:   slog.Default().With(slog.String("component", "conversation.cleanup")),
	}
}

// Also registers another expiring cache to purge on every pass.
func (c *CleanupService) Also(name string, purge func() int) *CleanupService {
	c.purgers = append(c.purgers, purger{name: name, purge: purge})
	return c
}

// Run blocks until ctx is cancelled.
func (c *CleanupService) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "cleanup service stopping")
			return nil
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single eviction pass and returns the number of removed sessions.
func (c *CleanupService) RunOnce(ctx context.Context) int {
	start := time.Now()
	removed := c.store.CleanupExpired()
	if removed > 0 {
		c.logger.InfoContext(ctx, "cleaned up expired sessions",
			slog.Int("removed", removed),
			slog.Duration("duration", time.Since(start)),
		)
	}

	for _, p := range c.purgers {
		if n := p.purge(); n > 0 {
			c.logger.DebugContext(ctx, "purged expired entries", slog.String("cache", p.name), slog.Int("removed", n))
		}
	}

	stats := c.store.Stats()
	c.logger.DebugContext(ctx, "session stats after cleanup",
		slog.Int("total", stats.Total),
		slog.Int("manual", stats.Manual),
		slog.Int("busy", stats.Busy),
	)
	return removed
}
