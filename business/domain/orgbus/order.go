package orgbus

import "github.com/lodgehub/lodgehub/business/sdk/order"

var DefaultOrderBy = order.NewBy(OrderByPath, order.ASC)

const (
	OrderByID        = "a"
	OrderByType      = "b"
	OrderByName      = "c"
	OrderByCode      = "d"
	OrderByLevel     = "e"
	OrderByPath      = "f"
	OrderByCreatedAt = "g"
)
