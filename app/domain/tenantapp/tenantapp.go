// Package tenantapp maintains the app layer api for the tenant domain.
package tenantapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/business/domain/tenantbus"
	"github.com/lodgehub/lodgehub/business/sdk/web"
)

type app struct {
	tenantBus *tenantbus.Core
}

func newApp(tenantBus *tenantbus.Core) *app {
	return &app{
		tenantBus: tenantBus,
	}
}

// create adds a new tenant to the system.
func (a *app) create(ctx context.Context, r *http.Request) web.Encoder {
	var app NewTenant
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	nt, err := toBusNewTenant(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	tnt, err := a.tenantBus.Create(ctx, nt)
	if err != nil {
		if errors.Is(err, tenantbus.ErrUniqueSlug) {
			return errs.New(errs.Aborted, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "create: tenant[%+v]: %s", app, err)
	}

	return &CreatedTenant{Tenant: toAppTenant(tnt)}
}

// update updates an existing tenant.
func (a *app) update(ctx context.Context, r *http.Request) web.Encoder {
	var app UpdateTenant
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	tenantID, err := uuid.Parse(r.PathValue("tenant_id"))
	if err != nil {
		return errs.NewFieldErrors("tenant_id", err)
	}

	tnt, err := a.tenantBus.QueryByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenantbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query: tenantID[%s]: %s", tenantID, err)
	}

	ut, err := toBusUpdateTenant(app)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	updTnt, err := a.tenantBus.Update(ctx, tnt, ut)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "update: tenantID[%s] ut[%+v]: %s", tenantID, ut, err)
	}

	return toAppTenant(updTnt)
}

// delete removes a tenant from the system.
func (a *app) delete(ctx context.Context, r *http.Request) web.Encoder {
	tenantID, err := uuid.Parse(r.PathValue("tenant_id"))
	if err != nil {
		return errs.NewFieldErrors("tenant_id", err)
	}

	tnt, err := a.tenantBus.QueryByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenantbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query: tenantID[%s]: %s", tenantID, err)
	}

	if err := a.tenantBus.Delete(ctx, tnt); err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "delete: tenantID[%s]: %s", tenantID, err)
	}

	return nil
}

// queryByID returns a tenant by its id.
func (a *app) queryByID(ctx context.Context, r *http.Request) web.Encoder {
	tenantID, err := uuid.Parse(r.PathValue("tenant_id"))
	if err != nil {
		return errs.NewFieldErrors("tenant_id", err)
	}

	tnt, err := a.tenantBus.QueryByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenantbus.ErrNotFound) {
			return errs.New(errs.NotFound, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "query: tenantID[%s]: %s", tenantID, err)
	}

	return toAppTenant(tnt)
}
