package orgapp

import (
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
)

var orderByFields = map[string]string{
	"org_id":       orgbus.OrderByID,
	"type":         orgbus.OrderByType,
	"name":         orgbus.OrderByName,
	"code":         orgbus.OrderByCode,
	"level":        orgbus.OrderByLevel,
	"path":         orgbus.OrderByPath,
	"date_created": orgbus.OrderByCreatedAt,
}
