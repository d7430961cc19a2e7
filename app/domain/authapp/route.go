package authapp

import (
	"net/http"

	"github.com/lodgehub/lodgehub/app/sdk/auth"
	"github.com/lodgehub/lodgehub/app/sdk/mid"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/domain/userbus"
	"github.com/lodgehub/lodgehub/business/sdk/web"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Auth    *auth.Auth
	UserBus *userbus.Core
	OrgBus  *orgbus.Core
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Auth)

	api := newApp(cfg.Auth, cfg.UserBus, cfg.OrgBus)

	app.HandlerFunc(http.MethodPost, version, "/auth/login", api.login)
	app.HandlerFunc(http.MethodPost, version, "/auth/refresh", api.refresh)
	app.HandlerFunc(http.MethodPost, version, "/auth/switch", api.switchOrg, authen)
}
