package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Compile-time interface checks.
var (
	_ Cache[struct{}] = (*RueidisCache[struct{}])(nil)
	_ Counter         = (*RueidisCounter)(nil)
)

// RueidisCache implements Cache interface using Redis via rueidis client.
// Suitable for multi-instance deployments where cache needs to be shared.
type RueidisCache[T any] struct {
	client    rueidis.Client
	keyPrefix string
}

// NewRueidisCache creates a new Redis cache instance using rueidis.
func NewRueidisCache[T any](
	ctx context.Context,
	addr, password string,
	db int,
	keyPrefix string,
) (*RueidisCache[T], error) {
	client, err := newRueidisClient(ctx, addr, password, db)
	if err != nil {
		return nil, err
	}
	return &RueidisCache[T]{
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

func newRueidisClient(ctx context.Context, addr, password string, db int) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		SelectDB:     db,
		DisableCache: true, // Basic mode without client-side caching
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// Get retrieves a value from Redis.
func (r *RueidisCache[T]) Get(ctx context.Context, key string) (T, error) {
	fullKey := r.keyPrefix + key

	cmd := r.client.B().Get().Key(fullKey).Build()
	resp := r.client.Do(ctx, cmd)

	if err := resp.Error(); err != nil {
		var zero T
		if rueidis.IsRedisNil(err) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	str, err := resp.ToString()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	var value T
	if err := json.Unmarshal([]byte(str), &value); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	return value, nil
}

// Set stores a value in Redis with TTL.
func (r *RueidisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	fullKey := r.keyPrefix + key

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	cmd := r.client.B().Set().
		Key(fullKey).
		Value(string(encoded)).
		Ex(ttl).
		Build()

	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	return nil
}

// Delete removes a key from Redis.
func (r *RueidisCache[T]) Delete(ctx context.Context, key string) error {
	fullKey := r.keyPrefix + key

	cmd := r.client.B().Del().Key(fullKey).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	return nil
}

// Close closes the Redis connection.
func (r *RueidisCache[T]) Close() error {
	r.client.Close()
	return nil
}

// Health checks if Redis is reachable.
func (r *RueidisCache[T]) Health(ctx context.Context) error {
	cmd := r.client.B().Ping().Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// RueidisCounter implements Counter backed by Redis INCR. INCR is atomic on
// the server, so concurrent failures from multiple instances never lose
// increments.
type RueidisCounter struct {
	client    rueidis.Client
	keyPrefix string
}

// NewRueidisCounter creates a Redis-backed counter.
func NewRueidisCounter(
	ctx context.Context,
	addr, password string,
	db int,
	keyPrefix string,
) (*RueidisCounter, error) {
	client, err := newRueidisClient(ctx, addr, password, db)
	if err != nil {
		return nil, err
	}
	return &RueidisCounter{client: client, keyPrefix: keyPrefix}, nil
}

// Incr increments key and arms the window expiry on the first increment.
func (r *RueidisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := r.keyPrefix + key

	resp := r.client.Do(ctx, r.client.B().Incr().Key(fullKey).Build())
	count, err := resp.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	if count == 1 {
		expire := r.client.B().Expire().Key(fullKey).Seconds(int64(window.Seconds())).Build()
		if err := r.client.Do(ctx, expire).Error(); err != nil {
			return count, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
	}
	return count, nil
}

// Get returns the current count, or 0 when absent/expired.
func (r *RueidisCounter) Get(ctx context.Context, key string) (int64, error) {
	fullKey := r.keyPrefix + key

	resp := r.client.Do(ctx, r.client.B().Get().Key(fullKey).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return resp.AsInt64()
}

// Reset removes the counter.
func (r *RueidisCounter) Reset(ctx context.Context, key string) error {
	fullKey := r.keyPrefix + key
	if err := r.client.Do(ctx, r.client.B().Del().Key(fullKey).Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
