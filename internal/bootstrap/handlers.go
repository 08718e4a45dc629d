package bootstrap

import (
	"github.com/JunaYa/ferriskey/internal/handlers"
)

// handlerSet groups the HTTP handlers by endpoint area.
type handlerSet struct {
	token     *handlers.TokenHandler
	authorize *handlers.AuthorizeHandler
	login     *handlers.LoginHandler
	oidc      *handlers.OIDCHandler
	health    *handlers.HealthHandler
}

func initializeHandlers(app *Application) handlerSet {
	return handlerSet{
		token: handlers.NewTokenHandler(app.GrantService),
		authorize: handlers.NewAuthorizeHandler(
			app.DB,
			app.RealmService,
			app.AuthorizationService,
			app.LoginMachine,
		),
		login: handlers.NewLoginHandler(
			app.RealmService,
			app.AuthorizationService,
			app.LoginMachine,
			app.MetricsRecorder,
		),
		oidc:   handlers.NewOIDCHandler(app.RealmService, app.KeyRegistry, app.TokenIssuer),
		health: handlers.NewHealthHandler(app.DB),
	}
}
