package mid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/business/domain/permbus"
	"github.com/lodgehub/lodgehub/business/sdk/web"
	"github.com/lodgehub/lodgehub/business/types/operation"
	"github.com/lodgehub/lodgehub/business/types/resource"
)

// Authorize validates that the authenticated user may run the operation
// implied by the HTTP method against the resource type the route serves.
func Authorize(perm *permbus.Core, res resource.Resource) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			userID, err := GetUserID(ctx)
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			op, err := mapHTTPMethodToOperation(r.Method)
			if err != nil {
				return errs.New(errs.FailedPrecondition, err)
			}

			check := permbus.Check{
				UserID:    userID,
				Resource:  res,
				Operation: op,
			}

			if err := perm.ValidateAccess(ctx, check); err != nil {
				return errs.New(errs.PermissionDenied, err)
			}

			return next(ctx, r)
		}

		return h
	}

	return m
}

func mapHTTPMethodToOperation(method string) (operation.Operation, error) {
	switch method {
	case http.MethodGet:
		return operation.Read, nil
	case http.MethodPost:
		return operation.Create, nil
	case http.MethodPut, http.MethodPatch:
		return operation.Update, nil
	case http.MethodDelete:
		return operation.Delete, nil
	default:
		return operation.Operation{}, fmt.Errorf("operation: %s", method)
	}
}
