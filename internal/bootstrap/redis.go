package bootstrap

import (
	"log"

	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// initializeRateLimitRedisClient dials Redis when the rate limiter is
// configured to share counters across instances. Returns nil for the memory
// store so all limiters fall back to in-process counting.
func initializeRateLimitRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.RateLimitEnabled || cfg.RateLimitStore != string(middleware.RateLimitStoreRedis) {
		return nil, nil
	}

	client, err := middleware.CreateRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	log.Printf("[Bootstrap] rate limiting backed by Redis (%s)", cfg.RedisAddr)
	return client, nil
}
