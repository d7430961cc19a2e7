package userapp

import (
	"net/http"

	"github.com/lodgehub/lodgehub/app/sdk/auth"
	"github.com/lodgehub/lodgehub/app/sdk/mid"
	"github.com/lodgehub/lodgehub/business/domain/permbus"
	"github.com/lodgehub/lodgehub/business/domain/userbus"
	"github.com/lodgehub/lodgehub/business/sdk/web"
	"github.com/lodgehub/lodgehub/business/types/resource"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Auth    *auth.Auth
	UserBus *userbus.Core
	PermBus *permbus.Core
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Auth)
	authorize := mid.Authorize(cfg.PermBus, resource.User)
	loadUser := mid.LoadUser(cfg.UserBus)

	api := newApp(cfg.UserBus)

	app.HandlerFunc(http.MethodGet, version, "/users", api.query, authen, authorize)
	app.HandlerFunc(http.MethodPost, version, "/users", api.create, authen, authorize)
	app.HandlerFunc(http.MethodPut, version, "/users/{user_id}/role", api.updateRole, authen, authorize)

	app.HandlerFunc(http.MethodGet, version, "/me", api.queryByID, authen, loadUser)
	app.HandlerFunc(http.MethodPut, version, "/me", api.update, authen, loadUser)
	app.HandlerFunc(http.MethodDelete, version, "/me", api.delete, authen, loadUser)
}
