// Package authapp maintains the app layer api for session handling.
package authapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/app/sdk/auth"
	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/app/sdk/mid"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/domain/userbus"
	"github.com/lodgehub/lodgehub/business/sdk/web"
	"github.com/lodgehub/lodgehub/business/types/role"
)

type app struct {
	auth    *auth.Auth
	userBus *userbus.Core
	orgBus  *orgbus.Core
}

func newApp(ath *auth.Auth, userBus *userbus.Core, orgBus *orgbus.Core) *app {
	return &app{
		auth:    ath,
		userBus: userBus,
		orgBus:  orgBus,
	}
}

// login authenticates the credentials and issues a token pair whose claims
// snapshot the caller's hierarchy context at this moment.
func (a *app) login(ctx context.Context, r *http.Request) web.Encoder {
	var req Login
	if err := web.Decode(r, &req); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	addr, err := mail.ParseAddress(req.Email)
	if err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("parsing email: %w", err))
	}

	usr, err := a.userBus.Authenticate(ctx, *addr, req.Password)
	if err != nil {
		if errors.Is(err, userbus.ErrUserDisabled) {
			return errs.New(errs.PermissionDenied, err)
		}
		return errs.New(errs.Unauthenticated, userbus.ErrAuthenticationFailure)
	}

	identity := auth.Identity{
		UserID:   usr.ID,
		TenantID: usr.TenantID,
		Email:    usr.Email.Address,
		Role:     usr.Role,
	}

	org, err := a.orgBus.QueryPrimaryOrg(ctx, usr.TenantID)
	orgID := uuid.Nil
	switch {
	case err == nil:
		orgID = org.ID
	case errors.Is(err, orgbus.ErrNotFound):
		// No primary link. The session degrades to own-tenant access.
	default:
		return errs.Errorf(errs.InternalOnlyLog, "query primary org: tenantID[%s]: %s", usr.TenantID, err)
	}

	session, err := a.auth.IssueSession(ctx, identity, orgID)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "issue session: userID[%s]: %s", usr.ID, err)
	}

	return toAppSession(session)
}

// refresh exchanges a valid refresh token for a fresh pair. The hierarchy
// snapshot is re-resolved so policy changes take effect here.
func (a *app) refresh(ctx context.Context, r *http.Request) web.Encoder {
	token, err := bearerToken(r)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	session, err := a.auth.RefreshSession(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidTokenUse) {
			return errs.New(errs.Unauthenticated, err)
		}
		return errs.New(errs.Unauthenticated, fmt.Errorf("refresh: %w", err))
	}

	return toAppSession(session)
}

// switchOrg re-issues the session against another organization the caller's
// tenant is linked to.
func (a *app) switchOrg(ctx context.Context, r *http.Request) web.Encoder {
	var req SwitchOrg
	if err := web.Decode(r, &req); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return errs.NewFieldErrors("organizationId", err)
	}

	userID, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	tenantID, err := mid.GetTenantID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	links, err := a.orgBus.QueryTenantLinks(ctx, orgID)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "query tenant links: orgID[%s]: %s", orgID, err)
	}

	linked := false
	for _, link := range links {
		if link.TenantID == tenantID {
			linked = true
			break
		}
	}
	if !linked {
		return errs.Errorf(errs.PermissionDenied, "tenant is not linked to organization %s", orgID)
	}

	claims := mid.GetClaims(ctx)
	usrRole, err := role.Parse(claims.Role)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	identity := auth.Identity{
		UserID:   userID,
		TenantID: tenantID,
		Email:    claims.Email,
		Role:     usrRole,
	}

	session, err := a.auth.IssueSession(ctx, identity, orgID)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "issue session: userID[%s]: %s", userID, err)
	}

	return toAppSession(session)
}

func bearerToken(r *http.Request) (string, error) {
	authorization := r.Header.Get("authorization")
	if !strings.HasPrefix(authorization, "Bearer ") {
		return "", errors.New("expected authorization header format: Bearer <token>")
	}
	return authorization[7:], nil
}
