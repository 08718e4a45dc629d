package bootstrap

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/store"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// createHTTPServer creates the HTTP server instance.
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// startWithGracefulShutdown starts the server and all background jobs, then
// blocks until shutdown completes.
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addExpiredRowCleanupJob(m, app.DB)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addCacheShutdownJob(m, app.CacheCloser)

	<-m.Done()
}

// addServerRunningJob adds the HTTP server running job.
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds the HTTP server shutdown handler.
func addServerShutdownJob(m *graceful.Manager, srv *http.Server) {
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})
}

// addExpiredRowCleanupJob periodically removes expired authorization codes,
// refresh tokens, and login sessions. Expiry is enforced at read time, so
// this only bounds table growth.
func addExpiredRowCleanupJob(m *graceful.Manager, db *store.Store) {
	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		cleanup := func() {
			if err := db.DeleteExpiredAuthorizationCodes(); err != nil {
				log.Printf("Failed to clean up authorization codes: %v", err)
			}
			if err := db.DeleteExpiredRefreshTokens(); err != nil {
				log.Printf("Failed to clean up refresh tokens: %v", err)
			}
			if err := db.DeleteExpiredLoginSessions(); err != nil {
				log.Printf("Failed to clean up login sessions: %v", err)
			}
		}
		cleanup()

		for {
			select {
			case <-ticker.C:
				cleanup()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addRedisClientShutdownJob adds the Redis client shutdown handler.
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}

	m.AddShutdownJob(func() error {
		log.Println("Closing Redis connection...")
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
			return err
		}
		return nil
	})
}

// addCacheShutdownJob closes the cache backend on shutdown.
func addCacheShutdownJob(m *graceful.Manager, closer func() error) {
	if closer == nil {
		return
	}

	m.AddShutdownJob(func() error {
		if err := closer(); err != nil {
			log.Printf("Error closing cache: %v", err)
		}
		return nil
	})
}
