package storage

import (
	"context"
	"errors"

	"dvf-analyzer/models"
	"dvf-analyzer/utils"
)

// CachedSource serves transactions from a cache and falls back to the
// upstream source on a miss, saving what it fetched. With refresh set the
// cache is only written, never read.
type CachedSource struct {
	source  TransactionSource
	cache   TransactionCache
	refresh bool
	logger  *utils.Logger
}

// NewCachedSource wraps source with cache. A nil cache disables caching.
func NewCachedSource(source TransactionSource, cache TransactionCache, refresh bool, logger *utils.Logger) *CachedSource {
	return &CachedSource{source: source, cache: cache, refresh: refresh, logger: logger}
}

// Fetch implements TransactionSource.
func (c *CachedSource) Fetch(ctx context.Context, postalCode string) (*models.TransactionSet, error) {
	if c.cache != nil && !c.refresh {
		set, err := c.cache.Fetch(ctx, postalCode)
		switch {
		case err == nil:
			c.logger.Info("[cache] %s served from cache (%d transactions)", postalCode, len(set.Transactions))
			return set, nil
		case !errors.Is(err, ErrNotCached):
			c.logger.Warn("[cache] read %s failed, fetching upstream: %v", postalCode, err)
		}
	}

	set, err := c.source.Fetch(ctx, postalCode)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SaveRaw(ctx, set); err != nil {
			c.logger.Warn("[cache] save %s failed: %v", postalCode, err)
		}
	}
	return set, nil
}
