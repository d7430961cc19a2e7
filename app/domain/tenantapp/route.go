package tenantapp

import (
	"net/http"

	"github.com/lodgehub/lodgehub/app/sdk/auth"
	"github.com/lodgehub/lodgehub/app/sdk/mid"
	"github.com/lodgehub/lodgehub/business/domain/permbus"
	"github.com/lodgehub/lodgehub/business/domain/tenantbus"
	"github.com/lodgehub/lodgehub/business/sdk/web"
	"github.com/lodgehub/lodgehub/business/types/resource"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Auth      *auth.Auth
	TenantBus *tenantbus.Core
	PermBus   *permbus.Core
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Auth)
	authorize := mid.Authorize(cfg.PermBus, resource.Tenant)

	api := newApp(cfg.TenantBus)

	app.HandlerFunc(http.MethodPost, version, "/tenants", api.create, authen, authorize)
	app.HandlerFunc(http.MethodGet, version, "/tenants/{tenant_id}", api.queryByID, authen, authorize)
	app.HandlerFunc(http.MethodPut, version, "/tenants/{tenant_id}", api.update, authen, authorize)
	app.HandlerFunc(http.MethodDelete, version, "/tenants/{tenant_id}", api.delete, authen, authorize)
}
