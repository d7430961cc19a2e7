package orgdb

import (
	"fmt"

	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/sdk/order"
)

var orderByFields = map[string]string{
	orgbus.OrderByID:        "o.org_id",
	orgbus.OrderByType:      "o.org_type",
	orgbus.OrderByName:      "o.name",
	orgbus.OrderByCode:      "o.code",
	orgbus.OrderByLevel:     "o.level",
	orgbus.OrderByPath:      "o.path",
	orgbus.OrderByCreatedAt: "o.created_at",
}

func orderByClause(orderBy order.By) (string, error) {
	by, exists := orderByFields[orderBy.Field]
	if !exists {
		return "", fmt.Errorf("field %q does not exist", orderBy.Field)
	}

	return " ORDER BY " + by + " " + orderBy.Direction, nil
}
