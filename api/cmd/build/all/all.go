// Package all binds all the routes into the specified app.
package all

import (
	"github.com/lodgehub/lodgehub/app/domain/authapp"
	"github.com/lodgehub/lodgehub/app/domain/checkapp"
	"github.com/lodgehub/lodgehub/app/domain/orgapp"
	"github.com/lodgehub/lodgehub/app/domain/tenantapp"
	"github.com/lodgehub/lodgehub/app/domain/userapp"
	"github.com/lodgehub/lodgehub/app/sdk/mux"
	"github.com/lodgehub/lodgehub/business/sdk/web"
)

// Routes constructs the add value which provides the implementation of
// RouteAdder for specifying what routes to bind to this instance.
func Routes() add {
	return add{}
}

type add struct{}

func (add) Add(app *web.App, cfg mux.Config) {
	checkapp.Routes(app, checkapp.Config{
		Build: cfg.Build,
		Log:   cfg.Log,
		DB:    cfg.DB,
	})

	authapp.Routes(app, authapp.Config{
		Auth:    cfg.AuthConfig.Auth,
		UserBus: cfg.BusConfig.UserBus,
		OrgBus:  cfg.BusConfig.OrgBus,
	})

	userapp.Routes(app, userapp.Config{
		Auth:    cfg.AuthConfig.Auth,
		UserBus: cfg.BusConfig.UserBus,
		PermBus: cfg.BusConfig.PermBus,
	})

	tenantapp.Routes(app, tenantapp.Config{
		Auth:      cfg.AuthConfig.Auth,
		TenantBus: cfg.BusConfig.TenantBus,
		PermBus:   cfg.BusConfig.PermBus,
	})

	orgapp.Routes(app, orgapp.Config{
		Log:     cfg.Log,
		DB:      cfg.DB,
		Auth:    cfg.AuthConfig.Auth,
		OrgBus:  cfg.BusConfig.OrgBus,
		PermBus: cfg.BusConfig.PermBus,
	})
}
