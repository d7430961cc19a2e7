// Package orgapp maintains the app layer api for the organization
// hierarchy domain.
package orgapp

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/app/sdk/mid"
	"github.com/lodgehub/lodgehub/app/sdk/query"
	"github.com/lodgehub/lodgehub/business/domain/accessbus"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/sdk/order"
	"github.com/lodgehub/lodgehub/business/sdk/page"
	"github.com/lodgehub/lodgehub/business/sdk/web"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/operation"
	"github.com/lodgehub/lodgehub/business/types/tenantrole"
)

type app struct {
	orgBus *orgbus.Core
}

func newApp(orgBus *orgbus.Core) *app {
	return &app{
		orgBus: orgBus,
	}
}

// executeUnderTransaction swaps the business packages for transactional
// variants when the route runs under the transaction middleware.
func (a *app) executeUnderTransaction(ctx context.Context) (*app, error) {
	tx, err := mid.GetTran(ctx)
	if err != nil {
		return a, nil
	}

	orgBus, err := a.orgBus.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &app{
		orgBus: orgBus,
	}, nil
}

// create adds a new node to the organization tree.
func (a *app) create(ctx context.Context, r *http.Request) web.Encoder {
	a, err := a.executeUnderTransaction(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	var app NewOrganization
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	no, err := toBusNewOrganization(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	actorID, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	org, err := a.orgBus.Create(ctx, actorID, no)
	if err != nil {
		switch {
		case errors.Is(err, orgbus.ErrParentNotFound):
			return errs.New(errs.InvalidArgument, err)
		case errors.Is(err, orgbus.ErrInvalidParent):
			return errs.New(errs.InvalidArgument, err)
		case errors.Is(err, orgbus.ErrLevelExceeded):
			return errs.New(errs.FailedPrecondition, err)
		case errors.Is(err, orgbus.ErrDuplicateCode):
			return errs.New(errs.Aborted, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "create: org[%+v]: %s", app, err)
	}

	return &CreatedOrganization{Organization: toAppOrganization(org)}
}

// update changes a node. Code or parent changes cascade new paths to the
// whole subtree in the same transaction.
func (a *app) update(ctx context.Context, r *http.Request) web.Encoder {
	a, err := a.executeUnderTransaction(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	var app UpdateOrganization
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	uo, err := toBusUpdateOrganization(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	actorID, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	org, err := a.orgBus.QueryByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query: orgID[%s]: %s", orgID, err)
	}

	updOrg, err := a.orgBus.Update(ctx, actorID, org, uo)
	if err != nil {
		switch {
		case errors.Is(err, orgbus.ErrParentNotFound):
			return errs.New(errs.InvalidArgument, err)
		case errors.Is(err, orgbus.ErrInvalidParent):
			return errs.New(errs.InvalidArgument, err)
		case errors.Is(err, orgbus.ErrLevelExceeded):
			return errs.New(errs.FailedPrecondition, err)
		case errors.Is(err, orgbus.ErrDuplicateCode):
			return errs.New(errs.Aborted, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "update: orgID[%s] uo[%+v]: %s", orgID, uo, err)
	}

	return toAppOrganization(updOrg)
}

// delete soft-deletes a leaf node with no linked tenants.
func (a *app) delete(ctx context.Context, r *http.Request) web.Encoder {
	a, err := a.executeUnderTransaction(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	actorID, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	org, err := a.orgBus.QueryByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query: orgID[%s]: %s", orgID, err)
	}

	if err := a.orgBus.Delete(ctx, actorID, org); err != nil {
		switch {
		case errors.Is(err, orgbus.ErrHasChildren):
			return errs.New(errs.FailedPrecondition, err)
		case errors.Is(err, orgbus.ErrHasTenants):
			return errs.New(errs.FailedPrecondition, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "delete: orgID[%s]: %s", orgID, err)
	}

	return nil
}

// queryByID returns one node by its id.
func (a *app) queryByID(ctx context.Context, r *http.Request) web.Encoder {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	org, err := a.orgBus.QueryByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query: orgID[%s]: %s", orgID, err)
	}

	return toAppOrganization(org)
}

// query returns a list of nodes with paging.
func (a *app) query(ctx context.Context, r *http.Request) web.Encoder {
	qp := parseQueryParams(r)

	page, err := page.Parse(qp.Page, qp.Rows)
	if err != nil {
		return errs.NewFieldErrors("page", err)
	}

	filter, err := parseFilter(qp)
	if err != nil {
		if v, ok := err.(*errs.Error); ok {
			return v
		}
		return errs.NewFieldErrors("filter", err)
	}

	orderBy, err := order.Parse(orderByFields, qp.OrderBy, orgbus.DefaultOrderBy)
	if err != nil {
		return errs.NewFieldErrors("order", err)
	}

	orgs, err := a.orgBus.Query(ctx, filter, orderBy, page)
	if err != nil {
		return errs.Errorf(errs.Internal, "query: %s", err)
	}

	total, err := a.orgBus.Count(ctx, filter)
	if err != nil {
		return errs.Errorf(errs.Internal, "count: %s", err)
	}

	return query.NewResult(toAppOrganizations(orgs), total, page)
}

// querySubtree returns a node and its descendants in path order.
func (a *app) querySubtree(ctx context.Context, r *http.Request) web.Encoder {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	depth := orgbus.MaxDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		depth, err = strconv.Atoi(v)
		if err != nil || depth < 0 {
			return errs.Errorf(errs.InvalidArgument, "invalid depth %q", v)
		}
	}

	nodes, err := a.orgBus.QuerySubtree(ctx, orgID, depth)
	if err != nil {
		if errors.Is(err, orgbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query subtree: orgID[%s]: %s", orgID, err)
	}

	return Subtree{
		Root:  orgID.String(),
		Nodes: toAppOrganizations(nodes),
	}
}

// queryPolicies returns the effective per-category policy map, flagging
// which categories have explicit rows.
func (a *app) queryPolicies(ctx context.Context, r *http.Request) web.Encoder {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	effective, err := a.orgBus.ResolvePolicies(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "resolve policies: orgID[%s]: %s", orgID, err)
	}

	explicit, err := a.orgBus.QueryPolicies(ctx, orgID)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "query policies: orgID[%s]: %s", orgID, err)
	}

	return toAppPolicies(orgID, effective, explicit)
}

// setPolicies upserts explicit policy rows for the given categories.
func (a *app) setPolicies(ctx context.Context, r *http.Request) web.Encoder {
	a, err := a.executeUnderTransaction(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	var app SetPolicies
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	policies, err := toBusNewPolicies(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	actorID, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	if _, err := a.orgBus.SetPolicies(ctx, actorID, orgID, policies); err != nil {
		if errors.Is(err, orgbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "set policies: orgID[%s]: %s", orgID, err)
	}

	effective, err := a.orgBus.ResolvePolicies(ctx, orgID)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "resolve policies: orgID[%s]: %s", orgID, err)
	}

	explicit, err := a.orgBus.QueryPolicies(ctx, orgID)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "query policies: orgID[%s]: %s", orgID, err)
	}

	return toAppPolicies(orgID, effective, explicit)
}

// applyPreset replaces the node's explicit policies with a named preset.
func (a *app) applyPreset(ctx context.Context, r *http.Request) web.Encoder {
	a, err := a.executeUnderTransaction(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	var app ApplyPreset
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	actorID, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	org, err := a.orgBus.ApplyPreset(ctx, actorID, orgID, app.PresetID)
	if err != nil {
		switch {
		case errors.Is(err, orgbus.ErrNotFound):
			return errs.New(errs.NotFound, err)
		case errors.Is(err, orgbus.ErrPresetNotFound):
			return errs.New(errs.InvalidArgument, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "apply preset: orgID[%s] preset[%s]: %s", orgID, app.PresetID, err)
	}

	return toAppOrganization(org)
}

// queryPresets lists the available policy presets.
func (a *app) queryPresets(_ context.Context, _ *http.Request) web.Encoder {
	return toAppPresets(orgbus.Presets())
}

// linkTenant attaches a tenant to the node.
func (a *app) linkTenant(ctx context.Context, r *http.Request) web.Encoder {
	a, err := a.executeUnderTransaction(ctx)
	if err != nil {
		return errs.New(errs.Internal, err)
	}

	var app LinkTenant
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	tenantID, err := uuid.Parse(app.TenantID)
	if err != nil {
		return errs.NewFieldErrors("tenantId", err)
	}

	linkRole, err := tenantrole.Parse(app.Role)
	if err != nil {
		return errs.NewFieldErrors("role", err)
	}

	actorID, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	link, err := a.orgBus.LinkTenant(ctx, actorID, tenantID, orgID, linkRole)
	if err != nil {
		switch {
		case errors.Is(err, orgbus.ErrNotFound):
			return errs.New(errs.NotFound, err)
		case errors.Is(err, orgbus.ErrPrimaryLinkTaken):
			return errs.New(errs.Aborted, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "link tenant: orgID[%s] tenantID[%s]: %s", orgID, tenantID, err)
	}

	return toAppTenantLink(link)
}

// queryTenantLinks returns the tenants linked at the node itself.
func (a *app) queryTenantLinks(ctx context.Context, r *http.Request) web.Encoder {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	links, err := a.orgBus.QueryTenantLinks(ctx, orgID)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "query tenant links: orgID[%s]: %s", orgID, err)
	}

	return toAppTenantLinks(links)
}

// queryAccessibleTenants returns every tenant reachable from the node's
// subtree.
func (a *app) queryAccessibleTenants(ctx context.Context, r *http.Request) web.Encoder {
	orgID, err := uuid.Parse(r.PathValue("org_id"))
	if err != nil {
		return errs.NewFieldErrors("org_id", err)
	}

	tenantIDs, err := a.orgBus.AccessibleTenants(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "accessible tenants: orgID[%s]: %s", orgID, err)
	}

	ids := make([]string, len(tenantIDs))
	for i, id := range tenantIDs {
		ids[i] = id.String()
	}

	return AccessibleTenants{
		OrganizationID: orgID.String(),
		TenantIDs:      ids,
	}
}

// checkAccess evaluates one (tenant, category, operation) request against
// the caller's session snapshot. The evaluation never touches the store.
func (a *app) checkAccess(ctx context.Context, r *http.Request) web.Encoder {
	var app CheckAccess
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	tenantID, err := uuid.Parse(app.TenantID)
	if err != nil {
		return errs.NewFieldErrors("tenantId", err)
	}

	category, err := datacategory.Parse(app.Category)
	if err != nil {
		return errs.NewFieldErrors("category", err)
	}

	op, err := operation.Parse(app.Operation)
	if err != nil {
		return errs.NewFieldErrors("operation", err)
	}

	session, err := mid.GetSession(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	decision := accessbus.Check(session, accessbus.Target{
		TenantID:  tenantID,
		Category:  category,
		Operation: op,
	})

	return toAppDecision(decision)
}
