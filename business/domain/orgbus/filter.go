package orgbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
)

type QueryFilter struct {
	ID             *uuid.UUID
	ParentID       *uuid.UUID
	Type           *orgtype.OrgType
	Name           *name.Name
	Code           *string
	PathPrefix     *string
	StartCreatedAt *time.Time
	EndCreatedAt   *time.Time
}
