package bootstrap

import (
	"log"
	"time"

	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitMiddlewares holds the per-endpoint limiters. The token endpoint
// gets a wider budget than login attempts.
type rateLimitMiddlewares struct {
	token gin.HandlerFunc
	login gin.HandlerFunc
}

// setupRateLimiting builds the endpoint limiters, or no-ops when disabled.
func setupRateLimiting(cfg *config.Config, redisClient *redis.Client) rateLimitMiddlewares {
	noOpMiddleware := func(c *gin.Context) { c.Next() }

	if !cfg.RateLimitEnabled {
		return rateLimitMiddlewares{token: noOpMiddleware, login: noOpMiddleware}
	}

	log.Printf("[Bootstrap] rate limiting enabled (store: %s)", cfg.RateLimitStore)
	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)

	createLimiter := func(requestsPerMinute int, endpoint string) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         storeType,
			RedisClient:       redisClient,
			CleanupInterval:   5 * time.Minute,
		})
		if err != nil {
			log.Fatalf("Failed to create rate limiter for %s: %v", endpoint, err)
		}
		return limiter
	}

	return rateLimitMiddlewares{
		token: createLimiter(cfg.TokenRequestsPerMinute, "token"),
		login: createLimiter(cfg.LoginRequestsPerMinute, "login-actions"),
	}
}
