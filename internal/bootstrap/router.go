package bootstrap

import (
	"log"
	"net/http"

	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/metrics"
	"github.com/JunaYa/ferriskey/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter configures the Gin router with all routes and middleware.
func setupRouter(app *Application) *gin.Engine {
	cfg := app.Config

	setupGinMode(cfg)
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(app.MetricsRecorder))
	r.Use(gin.Logger(), gin.Recovery())

	setupSessionMiddleware(r, cfg)

	r.GET("/health", app.HandlerSet.health.Health)
	setupMetricsEndpoint(r, cfg)

	rateLimiters := setupRateLimiting(cfg, app.RateLimitRedisClient)

	realm := r.Group("/realms/:realm")
	{
		realm.GET("/.well-known/openid-configuration", app.HandlerSet.oidc.Discovery)
		realm.GET("/protocol/openid-connect/certs", app.HandlerSet.oidc.Certs)
		realm.GET("/protocol/openid-connect/auth", app.HandlerSet.authorize.Authorize)
		realm.POST("/protocol/openid-connect/token", rateLimiters.token, app.HandlerSet.token.Token)
		realm.POST("/login-actions/authenticate", rateLimiters.login, app.HandlerSet.login.Authenticate)
	}

	logServerStartup(cfg)
	return r
}

// setupSessionMiddleware configures the browser cookie session used for
// single sign-on across authorization requests.
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("ferriskey_session", sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint.
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuth(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupGinMode sets Gin mode based on environment configuration.
func setupGinMode(cfg *config.Config) {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
}

// logServerStartup logs server startup information.
func logServerStartup(cfg *config.Config) {
	log.Printf("Authentication mode: %s", cfg.AuthMode)
	log.Printf("Identity provider starting on %s", cfg.ServerAddr)
	log.Printf("Master realm issuer: %s/realms/%s", cfg.BaseURL, cfg.MasterRealm)
	log.Printf("Default user: admin (check logs for password if first run)")
}
