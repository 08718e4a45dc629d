package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/JunaYa/ferriskey/internal/cache"
	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/metrics"
	"github.com/JunaYa/ferriskey/internal/models"
)

// initializeMetrics selects the Prometheus recorder or the noop one.
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	if cfg.MetricsEnabled {
		log.Printf("[Bootstrap] Prometheus metrics enabled")
	}
	return metrics.Init(cfg.MetricsEnabled)
}

// initializeCaches builds the realm lookup cache and the lockout counter on
// the configured backend. The returned closer shuts both down.
func initializeCaches(cfg *config.Config) (
	cache.Cache[models.Realm],
	cache.Counter,
	func() error,
	error,
) {
	switch cfg.CacheMode {
	case config.CacheModeRueidis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		realmCache, err := cache.NewRueidisCache[models.Realm](
			ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "ferriskey:realm:")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create realm cache: %w", err)
		}
		counter, err := cache.NewRueidisCounter(
			ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "ferriskey:counter:")
		if err != nil {
			_ = realmCache.Close()
			return nil, nil, nil, fmt.Errorf("failed to create lockout counter: %w", err)
		}

		log.Printf("[Bootstrap] cache backend: rueidis (%s)", cfg.RedisAddr)
		return realmCache, counter, realmCache.Close, nil

	case config.CacheModeMemory:
		fallthrough
	default:
		realmCache := cache.NewMemoryCache[models.Realm]()
		counter := cache.NewMemoryCounter()
		log.Printf("[Bootstrap] cache backend: memory (single instance only)")
		return realmCache, counter, realmCache.Close, nil
	}
}
