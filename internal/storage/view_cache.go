package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/logging"
	"github.com/wallet-insights/internal/types"
)

// CacheKeyPrefix scopes every analytics view key
const CacheKeyPrefix = "analytics:project"

// generationPrefix scopes the per-project invalidation counters. It sits
// outside CacheKeyPrefix so invalidation never deletes its own counter.
const generationPrefix = "analytics:generation"

// defaultComputeTimeout bounds a shared computation once it no longer
// follows the context of the caller that started it
const defaultComputeTimeout = 30 * time.Second

// ViewResult is a computed or cached view payload
type ViewResult struct {
	Payload    []byte
	ComputedAt time.Time
	FromCache  bool
}

// cachedView is the Redis representation of a view
type cachedView struct {
	Payload    []byte    `json:"payload"`
	ComputedAt time.Time `json:"computedAt"`
	Generation int64     `json:"generation"`
}

// ComputeFunc builds a view payload
type ComputeFunc func(ctx context.Context) ([]byte, error)

// ViewCache stores project views in Redis with get-or-compute semantics.
// Concurrent misses for one key share a single computation. Entries stay in
// Redis for StaleRetention past their TTL, so a failed recompute returns its
// error and leaves the prior value untouched.
//
// Every project carries a generation counter bumped by InvalidateProject.
// Entries are stamped with the generation they were computed under and are
// only served while it is still current, so a computation that straddles an
// invalidation can never be read back.
type ViewCache struct {
	redis          *RedisCache
	ttl            time.Duration
	staleRetention time.Duration
	computeTimeout time.Duration
	group          singleflight.Group
	now            func() time.Time
}

// NewViewCache creates a new view cache
func NewViewCache(redis *RedisCache, ttl, staleRetention time.Duration) *ViewCache {
	return &ViewCache{
		redis:          redis,
		ttl:            ttl,
		staleRetention: staleRetention,
		computeTimeout: defaultComputeTimeout,
		now:            time.Now,
	}
}

// GenerateCacheKey generates a project-scoped cache key. Project ids are
// case-sensitive and kept verbatim.
// Format: analytics:project:<project-id>:<part1>:<part2>:...
func GenerateCacheKey(projectID string, parts ...string) string {
	segments := make([]string, 0, len(parts)+2)
	segments = append(segments, CacheKeyPrefix, projectID)
	segments = append(segments, parts...)
	return strings.Join(segments, ":")
}

// ProjectKeyPattern returns the SCAN pattern matching every view key of a
// project, with glob metacharacters in the id escaped
func ProjectKeyPattern(projectID string) string {
	return CacheKeyPrefix + ":" + escapeGlob(projectID) + ":*"
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func generationKey(projectID string) string {
	return generationPrefix + ":" + projectID
}

// DashboardKey returns the cache key of a project dashboard
func DashboardKey(projectID string) string {
	return GenerateCacheKey(projectID, "dashboard")
}

// TimeSeriesKey returns the cache key of a project metric series
func TimeSeriesKey(projectID string, metric types.Metric, days int) string {
	return GenerateCacheKey(projectID, "timeseries", string(metric), fmt.Sprintf("%d", days))
}

// ExportRowsKey returns the cache key of the ranked rows every export format
// is rendered from
func ExportRowsKey(projectID string) string {
	return GenerateCacheKey(projectID, "export", "rows")
}

// TTL returns the freshness window of cached views
func (c *ViewCache) TTL() time.Duration {
	return c.ttl
}

// GetOrCompute returns the cached view for key when it is younger than the TTL
// and was computed under the project's current generation, otherwise computes,
// stores and returns it. The shared computation is detached from the caller
// that started it; each caller stops waiting when its own ctx ends.
func (c *ViewCache) GetOrCompute(ctx context.Context, projectID, key string, compute ComputeFunc) (*ViewResult, error) {
	gen, genOK := c.generation(ctx, projectID)
	if genOK {
		if res, ok := c.fresh(ctx, key, gen); ok {
			return res, nil
		}
	}

	// callers arriving after an invalidation start their own flight
	flightKey := fmt.Sprintf("%s#%d", key, gen)
	if !genOK {
		flightKey += "#nogen"
	}

	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()

		// another caller may have refreshed the entry while we waited
		if genOK {
			if res, ok := c.fresh(flightCtx, key, gen); ok {
				return res, nil
			}
		}

		payload, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}

		res := &ViewResult{Payload: payload, ComputedAt: c.now().UTC()}
		if !genOK {
			return res, nil
		}
		if current, ok := c.generation(flightCtx, projectID); !ok || current != gen {
			logging.FromContext(flightCtx).WithField("key", key).Debug("Project invalidated during compute, result not cached")
			return res, nil
		}
		c.store(flightCtx, key, gen, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*ViewResult)
		return &res, nil
	}
}

// Peek returns the stored entry for key regardless of age or generation
func (c *ViewCache) Peek(ctx context.Context, key string) (*ViewResult, bool, error) {
	entry, ok, err := c.read(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &ViewResult{Payload: entry.Payload, ComputedAt: entry.ComputedAt, FromCache: true}, true, nil
}

// InvalidateProject removes every cached view of a project. The generation
// bump comes first so a computation already in flight cannot store or serve
// its result afterwards.
func (c *ViewCache) InvalidateProject(ctx context.Context, projectID string) (int, error) {
	if _, err := c.redis.Incr(ctx, generationKey(projectID)); err != nil {
		return 0, apperrors.NewCacheError("invalidate", err)
	}
	removed, err := c.redis.DeletePattern(ctx, ProjectKeyPattern(projectID))
	if err != nil {
		return removed, apperrors.NewCacheError("invalidate", err)
	}
	return removed, nil
}

func (c *ViewCache) generation(ctx context.Context, projectID string) (int64, bool) {
	gen, err := c.redis.GetInt64(ctx, generationKey(projectID))
	if err != nil {
		// without a generation nothing is read from or written to the cache
		logging.FromContext(ctx).WithField("projectId", projectID).WithError(err).Warn("View cache generation read failed")
		return 0, false
	}
	return gen, true
}

func (c *ViewCache) read(ctx context.Context, key string) (*cachedView, bool, error) {
	data, ok, err := c.redis.GetBytes(ctx, key)
	if err != nil {
		return nil, false, apperrors.NewCacheError("get", err)
	}
	if !ok {
		return nil, false, nil
	}

	var entry cachedView
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, apperrors.NewCacheError("decode", err)
	}
	return &entry, true, nil
}

func (c *ViewCache) fresh(ctx context.Context, key string, gen int64) (*ViewResult, bool) {
	entry, ok, err := c.read(ctx, key)
	if err != nil {
		// a broken cache read degrades to recomputation
		logging.FromContext(ctx).WithField("key", key).WithError(err).Warn("View cache read failed")
		return nil, false
	}
	if !ok || entry.Generation != gen || c.now().Sub(entry.ComputedAt) >= c.ttl {
		return nil, false
	}
	return &ViewResult{Payload: entry.Payload, ComputedAt: entry.ComputedAt, FromCache: true}, true
}

func (c *ViewCache) store(ctx context.Context, key string, gen int64, res *ViewResult) {
	data, err := json.Marshal(cachedView{Payload: res.Payload, ComputedAt: res.ComputedAt, Generation: gen})
	if err != nil {
		logging.FromContext(ctx).WithField("key", key).WithError(err).Error("View cache encode failed")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl+c.staleRetention); err != nil {
		logging.FromContext(ctx).WithField("key", key).WithError(err).Warn("View cache write failed")
	}
}
