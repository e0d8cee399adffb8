package service

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/SparklePenguin/podpod-chat-service/internal/cache"
	"github.com/SparklePenguin/podpod-chat-service/pkg/log"
)

// resolveCached is the cache-then-store resolution used for member lists,
// member counts, and last messages: try the cache; on a miss compute from the
// store, write the result into the cache, then return it. The first cold read
// always reflects the store and warms the cache for subsequent reads.
//
// Concurrent misses for the same key are collapsed through sf so one store
// read serves them all. Cache write failures are logged, never propagated;
// values rejected by cacheable are never written (so a transient empty result
// cannot be pinned).
func resolveCached[T any](
	ctx context.Context,
	sf *singleflight.Group,
	key string,
	fromCache func(context.Context) (T, error),
	fromStore func(context.Context) (T, error),
	toCache func(context.Context, T) error,
	cacheable func(T) bool,
) (T, error) {
	v, err, _ := sf.Do(key, func() (interface{}, error) {
		cached, err := fromCache(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache get error")
		}

		val, err := fromStore(ctx)
		if err != nil {
			return nil, err
		}

		if cacheable == nil || cacheable(val) {
			if err := toCache(ctx, val); err != nil {
				l := log.Ctx(ctx)
				l.Warn().Err(err).Str(log.FieldCacheKey, key).Msg("cache set error")
			}
		}
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
