package orgapp

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
)

type queryParams struct {
	Page             string
	Rows             string
	OrderBy          string
	ID               string
	ParentID         string
	Type             string
	Name             string
	Code             string
	PathPrefix       string
	StartCreatedDate string
	EndCreatedDate   string
}

func parseQueryParams(r *http.Request) queryParams {
	values := r.URL.Query()

	return queryParams{
		Page:             values.Get("page"),
		Rows:             values.Get("rows"),
		OrderBy:          values.Get("orderBy"),
		ID:               values.Get("org_id"),
		ParentID:         values.Get("parent_id"),
		Type:             values.Get("type"),
		Name:             values.Get("name"),
		Code:             values.Get("code"),
		PathPrefix:       values.Get("path_prefix"),
		StartCreatedDate: values.Get("start_created_date"),
		EndCreatedDate:   values.Get("end_created_date"),
	}
}

func parseFilter(qp queryParams) (orgbus.QueryFilter, error) {
	var fieldErrors errs.FieldErrors
	var filter orgbus.QueryFilter

	if qp.ID != "" {
		id, err := uuid.Parse(qp.ID)
		switch err {
		case nil:
			filter.ID = &id
		default:
			fieldErrors.Add("org_id", err)
		}
	}

	if qp.ParentID != "" {
		id, err := uuid.Parse(qp.ParentID)
		switch err {
		case nil:
			filter.ParentID = &id
		default:
			fieldErrors.Add("parent_id", err)
		}
	}

	if qp.Type != "" {
		typ, err := orgtype.Parse(qp.Type)
		switch err {
		case nil:
			filter.Type = &typ
		default:
			fieldErrors.Add("type", err)
		}
	}

	if qp.Name != "" {
		nme, err := name.Parse(qp.Name)
		switch err {
		case nil:
			filter.Name = &nme
		default:
			fieldErrors.Add("name", err)
		}
	}

	if qp.Code != "" {
		filter.Code = &qp.Code
	}

	if qp.PathPrefix != "" {
		filter.PathPrefix = &qp.PathPrefix
	}

	if qp.StartCreatedDate != "" {
		t, err := time.Parse(time.RFC3339, qp.StartCreatedDate)
		switch err {
		case nil:
			filter.StartCreatedAt = &t
		default:
			fieldErrors.Add("start_created_date", err)
		}
	}

	if qp.EndCreatedDate != "" {
		t, err := time.Parse(time.RFC3339, qp.EndCreatedDate)
		switch err {
		case nil:
			filter.EndCreatedAt = &t
		default:
			fieldErrors.Add("end_created_date", err)
		}
	}

	if fieldErrors != nil {
		return orgbus.QueryFilter{}, fieldErrors.ToError()
	}

	return filter, nil
}
