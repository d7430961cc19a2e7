package orgdb

import (
	"bytes"

	"github.com/lodgehub/lodgehub/business/domain/orgbus"
)

// applyFilter appends the filter conditions to a query that already
// carries a WHERE clause for the soft-delete check.
func applyFilter(filter orgbus.QueryFilter, data map[string]any, buf *bytes.Buffer) {
	if filter.ID != nil {
		data["filter_org_id"] = *filter.ID
		buf.WriteString(" AND o.org_id = :filter_org_id")
	}

	if filter.ParentID != nil {
		data["filter_parent_id"] = *filter.ParentID
		buf.WriteString(" AND o.parent_id = :filter_parent_id")
	}

	if filter.Type != nil {
		data["filter_org_type"] = filter.Type.String()
		buf.WriteString(" AND o.org_type = :filter_org_type")
	}

	if filter.Name != nil {
		data["filter_name"] = "%" + filter.Name.String() + "%"
		buf.WriteString(" AND o.name LIKE :filter_name")
	}

	if filter.Code != nil {
		data["filter_code"] = *filter.Code
		buf.WriteString(" AND o.code = :filter_code")
	}

	if filter.PathPrefix != nil {
		data["filter_path"] = *filter.PathPrefix + "%"
		buf.WriteString(" AND o.path LIKE :filter_path")
	}

	if filter.StartCreatedAt != nil {
		data["filter_start_created_at"] = filter.StartCreatedAt.UTC()
		buf.WriteString(" AND o.created_at >= :filter_start_created_at")
	}

	if filter.EndCreatedAt != nil {
		data["filter_end_created_at"] = filter.EndCreatedAt.UTC()
		buf.WriteString(" AND o.created_at <= :filter_end_created_at")
	}
}
