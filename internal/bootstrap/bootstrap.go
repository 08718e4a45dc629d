package bootstrap

import (
	"net/http"

	"github.com/JunaYa/ferriskey/internal/auth"
	"github.com/JunaYa/ferriskey/internal/cache"
	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/keys"
	"github.com/JunaYa/ferriskey/internal/login"
	"github.com/JunaYa/ferriskey/internal/metrics"
	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/services"
	"github.com/JunaYa/ferriskey/internal/store"
	"github.com/JunaYa/ferriskey/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components.
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      metrics.Recorder
	RealmCache           cache.Cache[models.Realm]
	LockoutCounter       cache.Counter
	CacheCloser          func() error
	RateLimitRedisClient *redis.Client

	// Domain components
	KeyRegistry  *keys.Registry
	TokenIssuer  *token.Issuer
	AuthProvider auth.Provider
	Lockout      *auth.Lockout
	LoginMachine *login.Machine

	// Services
	RealmService         *services.RealmService
	AuthorizationService *services.AuthorizationService
	GrantService         *services.GrantService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application.
func Run(cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up the database, metrics, caches, and Redis.
func (app *Application) initializeInfrastructure() error {
	var err error

	app.DB, err = initializeDatabase(app.Config)
	if err != nil {
		return err
	}

	app.MetricsRecorder = initializeMetrics(app.Config)

	app.RealmCache, app.LockoutCounter, app.CacheCloser, err = initializeCaches(app.Config)
	if err != nil {
		return err
	}

	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer wires key material, authentication, and the grant
// dispatcher.
func (app *Application) initializeBusinessLayer() {
	cfg := app.Config

	app.KeyRegistry = keys.NewRegistry(app.DB)
	app.TokenIssuer = token.NewIssuer(cfg.BaseURL, app.KeyRegistry)

	app.AuthProvider = initializeAuthProvider(cfg, app.DB)
	app.Lockout = auth.NewLockout(app.LockoutCounter)
	app.LoginMachine = login.NewMachine(
		app.DB,
		app.AuthProvider,
		app.Lockout,
		cfg.LoginSessionExpiration,
		cfg.OTPMaxAttempts,
	)

	app.RealmService = services.NewRealmService(app.DB, app.RealmCache)
	app.AuthorizationService = services.NewAuthorizationService(app.DB)
	app.GrantService = services.NewGrantService(
		app.DB,
		app.RealmService,
		app.AuthorizationService,
		app.LoginMachine,
		app.TokenIssuer,
		app.MetricsRecorder,
	)
}

// initializeHTTPLayer sets up handlers, the router, and the HTTP server.
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = initializeHandlers(app)
	app.Router = setupRouter(app)
	app.Server = createHTTPServer(app.Config, app.Router)
}
