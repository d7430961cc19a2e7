package orgapp

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/lodgehub/lodgehub/app/sdk/auth"
	"github.com/lodgehub/lodgehub/app/sdk/mid"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/domain/permbus"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/sdk/web"
	"github.com/lodgehub/lodgehub/business/types/resource"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *logger.Logger
	DB      *sqlx.DB
	Auth    *auth.Auth
	OrgBus  *orgbus.Core
	PermBus *permbus.Core
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Auth)
	authorizeOrg := mid.Authorize(cfg.PermBus, resource.Organization)
	authorizePolicy := mid.Authorize(cfg.PermBus, resource.Policy)
	tran := mid.BeginCommitRollback(cfg.Log, sqldb.NewBeginner(cfg.DB))

	api := newApp(cfg.OrgBus)

	app.HandlerFunc(http.MethodGet, version, "/organizations", api.query, authen, authorizeOrg)
	app.HandlerFunc(http.MethodPost, version, "/organizations", api.create, authen, authorizeOrg, tran)
	app.HandlerFunc(http.MethodGet, version, "/organizations/{org_id}", api.queryByID, authen, authorizeOrg)
	app.HandlerFunc(http.MethodPut, version, "/organizations/{org_id}", api.update, authen, authorizeOrg, tran)
	app.HandlerFunc(http.MethodDelete, version, "/organizations/{org_id}", api.delete, authen, authorizeOrg, tran)
	app.HandlerFunc(http.MethodGet, version, "/organizations/{org_id}/subtree", api.querySubtree, authen, authorizeOrg)

	app.HandlerFunc(http.MethodGet, version, "/organizations/{org_id}/policies", api.queryPolicies, authen, authorizePolicy)
	app.HandlerFunc(http.MethodPut, version, "/organizations/{org_id}/policies", api.setPolicies, authen, authorizePolicy, tran)
	app.HandlerFunc(http.MethodPost, version, "/organizations/{org_id}/preset", api.applyPreset, authen, authorizePolicy, tran)
	app.HandlerFunc(http.MethodGet, version, "/presets", api.queryPresets, authen)

	app.HandlerFunc(http.MethodPost, version, "/organizations/{org_id}/tenants", api.linkTenant, authen, authorizeOrg, tran)
	app.HandlerFunc(http.MethodGet, version, "/organizations/{org_id}/tenants", api.queryTenantLinks, authen, authorizeOrg)
	app.HandlerFunc(http.MethodGet, version, "/organizations/{org_id}/accessible-tenants", api.queryAccessibleTenants, authen, authorizeOrg)

	app.HandlerFunc(http.MethodPost, version, "/access/check", api.checkAccess, authen)
}
