package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mchileshe/CourierIQ/internal/cache"
	"github.com/mchileshe/CourierIQ/internal/logging"
	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const reportVersionKey = "analytics:report:version"

// ReportCache caches computed reports in Redis, keyed by the filter that
// produced them. Entries are versioned: every tag write bumps the version
// counter, orphaning all cached reports at once without key scans. Cache
// errors fail open; the report is computed from storage instead.
type ReportCache struct {
	redis  *cache.Redis
	ttl    time.Duration
	logger zerolog.Logger
}

// NewReportCache creates a report cache with the given entry TTL
func NewReportCache(redis *cache.Redis, ttl time.Duration) *ReportCache {
	return &ReportCache{
		redis:  redis,
		ttl:    ttl,
		logger: logging.NewLogger("analytics-cache"),
	}
}

// Get returns a cached report for the filter, if present
func (c *ReportCache) Get(ctx context.Context, filter store.Filter) (*Report, bool) {
	key, err := c.reportKey(ctx, filter)
	if err != nil {
		return nil, false
	}

	payload, err := c.redis.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding undecodable cached report")
		return nil, false
	}
	return &report, true
}

// Set stores a computed report. Failures are logged and ignored.
func (c *ReportCache) Set(ctx context.Context, filter store.Filter, report *Report) {
	key, err := c.reportKey(ctx, filter)
	if err != nil {
		return
	}

	payload, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to encode report for cache")
		return
	}

	if err := c.redis.Client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache report")
	}
}

// Invalidate orphans every cached report by bumping the version counter.
// Called after tagging writes so reports never serve stale tags beyond
// the write that changed them.
func (c *ReportCache) Invalidate(ctx context.Context) {
	if err := c.redis.Client.Incr(ctx, reportVersionKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to invalidate report cache")
	}
}

func (c *ReportCache) reportKey(ctx context.Context, filter store.Filter) (string, error) {
	version, err := c.redis.Client.Get(ctx, reportVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("analytics:report:v%d:%s", version, canonicalFilter(filter)), nil
}

// canonicalFilter encodes a filter deterministically so equal filters
// share a cache entry
func canonicalFilter(f store.Filter) string {
	pmin, pmax := "", ""
	if f.PriceMin != nil {
		pmin = f.PriceMin.String()
	}
	if f.PriceMax != nil {
		pmax = f.PriceMax.String()
	}
	disc := ""
	if f.HasDiscount != nil {
		disc = fmt.Sprintf("%t", *f.HasDiscount)
	}
	return fmt.Sprintf("loc=%s|min=%d|pmin=%s|pmax=%s|disc=%s",
		f.Location, f.MinRating, pmin, pmax, disc)
}
