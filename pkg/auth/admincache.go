package auth

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/liquidintel/taplist/pkg/observability"
)

// MembershipChecker answers transitive group-membership questions
type MembershipChecker interface {
	IsMember(ctx context.Context, principal string) (bool, error)
}

// AdminCache caches per-subject admin decisions with a TTL. Concurrent
// lookups for the same subject while a refresh is outstanding share a single
// directory call; entries expire rather than being invalidated.
type AdminCache struct {
	membership MembershipChecker
	cache      *lru.LRU[string, bool]
	flight     singleflight.Group
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// AdminCacheOptions configures the admin decision cache
type AdminCacheOptions struct {
	TTL  time.Duration
	Size int
}

// NewAdminCache creates an admin cache over the given membership checker
func NewAdminCache(membership MembershipChecker, opts AdminCacheOptions, logger *observability.Logger, metrics *observability.Metrics) *AdminCache {
	size := opts.Size
	if size <= 0 {
		size = 1024
	}

	return &AdminCache{
		membership: membership,
		cache:      lru.NewLRU[string, bool](size, nil, opts.TTL),
		logger:     logger.WithField("component", "admin-cache"),
		metrics:    metrics,
	}
}

// IsAdmin reports whether the subject is a member of the authorized groups.
// Fresh cache entries are served directly; a stale or absent entry triggers
// one directory refresh shared by all concurrent callers for that subject.
func (c *AdminCache) IsAdmin(ctx context.Context, subject string) (bool, error) {
	if isAdmin, ok := c.cache.Get(subject); ok {
		if c.metrics != nil {
			c.metrics.AdminCacheHitsTotal.Inc()
		}
		return isAdmin, nil
	}

	if c.metrics != nil {
		c.metrics.AdminCacheMissTotal.Inc()
	}

	result, err, _ := c.flight.Do(subject, func() (interface{}, error) {
		// Another caller may have completed the refresh while we waited.
		if isAdmin, ok := c.cache.Get(subject); ok {
			return isAdmin, nil
		}

		isAdmin, err := c.membership.IsMember(ctx, subject)
		if err != nil {
			return false, err
		}

		c.cache.Add(subject, isAdmin)
		return isAdmin, nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("subject", subject).Warn("admin membership refresh failed")
		return false, err
	}

	return result.(bool), nil
}
