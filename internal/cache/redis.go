package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

const scanBatch = 200

var (
	_ service.CacheInvalidator = (*RedisInvalidator)(nil)
	_ service.CacheInvalidator = NoopInvalidator{}
)

// RedisInvalidator drops cached read views and announces the invalidation.
// For each scope it deletes the key named after the scope and every key
// under "<scope>:", then publishes the scope on the channel.
type RedisInvalidator struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisInvalidator(client redis.UniversalClient, channel string) *RedisInvalidator {
	return &RedisInvalidator{client: client, channel: channel}
}

// Connect parses a redis:// URL and verifies the server is reachable
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (r *RedisInvalidator) Invalidate(ctx context.Context, scopes ...string) error {
	var result *multierror.Error
	deleted := 0

	for _, scope := range scopes {
		n, err := r.invalidateScope(ctx, scope)
		deleted += n
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("scope %s: %w", scope, err))
			continue
		}

		if r.channel != "" {
			if err := r.client.Publish(ctx, r.channel, scope).Err(); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to publish %s: %w", scope, err))
			}
		}
	}

	log.WithFields(log.Fields{"scopes": strings.Join(scopes, ","), "keys": deleted}).Debug("Invalidated cache")
	return result.ErrorOrNil()
}

func (r *RedisInvalidator) invalidateScope(ctx context.Context, scope string) (int, error) {
	deleted := 0

	n, err := r.client.Del(ctx, scope).Result()
	if err != nil {
		return 0, err
	}
	deleted += int(n)

	iter := r.client.Scan(ctx, 0, scope+":*", scanBatch).Iterator()
	keys := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == scanBatch {
			n, err := r.client.Unlink(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if len(keys) > 0 {
		n, err := r.client.Unlink(ctx, keys...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}

	return deleted, nil
}

// NoopInvalidator is used when no cache is configured
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(context.Context, ...string) error { return nil }
