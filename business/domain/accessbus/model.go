package accessbus

import (
	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
)

// Policy is the resolved (scope, level) pair for one category as embedded
// in the session at mint time.
type Policy struct {
	Scope sharingscope.SharingScope
	Level accesslevel.AccessLevel
}

// HierarchyContext is the actor's organization position and resolved
// policies, snapshotted into the session when the token was issued.
type HierarchyContext struct {
	OrganizationID    uuid.UUID
	OrganizationLevel int
	OrganizationType  orgtype.OrgType
	OrganizationPath  string
	AccessScope       []uuid.UUID
	Policies          map[datacategory.DataCategory]Policy
}

// Session is the parsed capability snapshot an access check runs against.
// AccessibleTenants always includes the actor's own tenant; that invariant
// is enforced at issuance.
type Session struct {
	UserID            uuid.UUID
	TenantID          uuid.UUID
	Hierarchy         *HierarchyContext
	AccessibleTenants []uuid.UUID
}

// CanAccessTenant reports whether the tenant is reachable from the
// session's organization.
func (s Session) CanAccessTenant(tenantID uuid.UUID) bool {
	for _, id := range s.AccessibleTenants {
		if id == tenantID {
			return true
		}
	}
	return false
}
