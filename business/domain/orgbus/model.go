package orgbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/orgcode"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
	"github.com/lodgehub/lodgehub/business/types/tenantrole"
)

// MaxDepth is the maximum number of levels in the organization tree. A
// GROUP root is level 1 and a DEPARTMENT leaf is level 4.
const MaxDepth = 4

// PathSeparator joins the codes of the ancestor chain into the
// materialized path.
const PathSeparator = "/"

// SettingAppliedPreset is the settings key recording the last preset
// applied to a node.
const SettingAppliedPreset = "applied_preset"

// Organization represents one node in the tenant-grouping tree.
type Organization struct {
	ID        uuid.UUID
	Type      orgtype.OrgType
	Name      name.Name
	Code      orgcode.Code
	ParentID  uuid.UUID // uuid.Nil for roots
	Level     int
	Path      string
	Settings  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// AppliedPreset returns the preset id recorded in the settings bag, if any.
func (o Organization) AppliedPreset() string {
	v, ok := o.Settings[SettingAppliedPreset].(string)
	if !ok {
		return ""
	}
	return v
}

// NewOrganization contains information needed to create a new organization
// node.
type NewOrganization struct {
	Type     orgtype.OrgType
	Name     name.Name
	Code     orgcode.Code
	ParentID uuid.UUID
	Settings map[string]any
}

// UpdateOrganization contains information needed to update an organization
// node. A non-nil ParentID re-parents the node and rewrites the subtree.
type UpdateOrganization struct {
	Name     *name.Name
	Code     *orgcode.Code
	ParentID *uuid.UUID
	Settings map[string]any
}

// DataSharingPolicy controls the visibility of one data category at one
// organization node.
type DataSharingPolicy struct {
	OrganizationID uuid.UUID
	Category       datacategory.DataCategory
	Scope          sharingscope.SharingScope
	Level          accesslevel.AccessLevel
	Conditions     map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewDataSharingPolicy contains information needed to upsert a policy for
// one category. The upsert is idempotent on (organization, category).
type NewDataSharingPolicy struct {
	Category   datacategory.DataCategory
	Scope      sharingscope.SharingScope
	Level      accesslevel.AccessLevel
	Conditions map[string]any
}

// EffectivePolicy is the resolved (scope, level) pair for one category,
// either from an explicit row or from the type defaults.
type EffectivePolicy struct {
	Scope sharingscope.SharingScope
	Level accesslevel.AccessLevel
}

// TenantLink connects a tenant to an organization node. A tenant has
// exactly one PRIMARY link and any number of SECONDARY ones.
type TenantLink struct {
	TenantID       uuid.UUID
	OrganizationID uuid.UUID
	Role           tenantrole.TenantRole
	CreatedAt      time.Time
}
