// Package kv is the key/value backend of the Datasource Gateway: Redis
// lookups for lookup-kind features and membership checks for the
// redis_set list backend (spec §4.9, §4.11), wrapped in the same
// circuit-breaking/retry policy as every other backend.
package kv

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/corintlog"
	"github.com/corintai/corint/internal/datasource/resilience"
)

// Backend wraps a *redis.Client with the standard datasource resilience
// policy, exposing only the two operations CORINT needs: scalar key
// lookup and set membership.
type Backend struct {
	client *redis.Client
	cb     *resilience.CircuitBreaker
	retry  resilience.RetryConfig
}

// New wraps client with the standard datasource resilience policy,
// identified by datasourceID for circuit-breaker state-change logging.
func New(datasourceID string, client *redis.Client, logger *corintlog.Logger) *Backend {
	return &Backend{
		client: client,
		cb:     resilience.New(resilience.DatasourceCBConfig(datasourceID, logger)),
		retry:  resilience.DefaultRetryConfig(),
	}
}

// Get fetches the value stored at key. A missing key returns ("", false, nil)
// rather than an error — the feature engine treats that as Unknown/absent,
// not a datasource failure.
func (b *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	found := true

	cbErr := b.cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, b.retry, func() error {
			v, err := b.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				found = false
				return nil
			}
			if err != nil {
				return err
			}
			value = v
			return nil
		})
	})

	if cbErr != nil {
		return "", false, mapRedisError(cbErr)
	}
	return value, found, nil
}

// IsMember reports whether value is a member of the Redis set at key
// (the redis_set list backend, spec §4.11).
func (b *Backend) IsMember(ctx context.Context, key, value string) (bool, error) {
	var isMember bool

	cbErr := b.cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, b.retry, func() error {
			ok, err := b.client.SIsMember(ctx, key, value).Result()
			if err != nil {
				return err
			}
			isMember = ok
			return nil
		})
	})

	if cbErr != nil {
		return false, mapRedisError(cbErr)
	}
	return isMember, nil
}

// Members returns every element of the Redis set at key.
func (b *Backend) Members(ctx context.Context, key string) ([]string, error) {
	var members []string

	cbErr := b.cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, b.retry, func() error {
			m, err := b.client.SMembers(ctx, key).Result()
			if err != nil {
				return err
			}
			members = m
			return nil
		})
	})

	if cbErr != nil {
		return nil, mapRedisError(cbErr)
	}
	return members, nil
}

func mapRedisError(err error) error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "kv datasource circuit open", err)
	case errors.Is(err, context.DeadlineExceeded):
		return corinterr.Recoverable(corinterr.KindTimeout, "kv request deadline exceeded", err)
	default:
		return corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "kv request failed", err)
	}
}
