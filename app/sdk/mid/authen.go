package mid

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lodgehub/lodgehub/app/sdk/auth"
	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/business/sdk/web"
)

// Authenticate validates the JWT in the Authorization header and stores
// the claims plus the parsed session snapshot in the context.
func Authenticate(a *auth.Auth) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			authStr := r.Header.Get("authorization")
			if authStr == "" {
				return errs.New(errs.Unauthenticated, errors.New("missing authorization header"))
			}

			parts := strings.Split(authStr, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return errs.New(errs.Unauthenticated, errors.New("expected authorization header format: Bearer <token>"))
			}

			claims, err := a.Authenticate(ctx, authStr)
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			if claims.TokenUse != auth.TokenUseAccess {
				return errs.New(errs.Unauthenticated, auth.ErrInvalidTokenUse)
			}

			session, err := auth.ParseSession(claims)
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			ctx = setUserID(ctx, session.UserID)
			ctx = setTenantID(ctx, session.TenantID)
			ctx = setClaims(ctx, claims)
			ctx = setSession(ctx, session)

			return next(ctx, r)
		}

		return h
	}

	return m
}
