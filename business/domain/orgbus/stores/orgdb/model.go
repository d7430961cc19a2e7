package orgdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/orgcode"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
	"github.com/lodgehub/lodgehub/business/types/tenantrole"
)

type organizationDB struct {
	ID        uuid.UUID     `db:"org_id"`
	Type      string        `db:"org_type"`
	Name      string        `db:"name"`
	Code      string        `db:"code"`
	ParentID  uuid.NullUUID `db:"parent_id"`
	Level     int           `db:"level"`
	Path      string        `db:"path"`
	Settings  []byte        `db:"settings"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
	DeletedAt sql.NullTime  `db:"deleted_at"`
}

func toDBOrganization(bus orgbus.Organization) (organizationDB, error) {
	settings, err := json.Marshal(bus.Settings)
	if err != nil {
		return organizationDB{}, fmt.Errorf("marshal settings: %w", err)
	}

	db := organizationDB{
		ID:        bus.ID,
		Type:      bus.Type.String(),
		Name:      bus.Name.String(),
		Code:      bus.Code.String(),
		Level:     bus.Level,
		Path:      bus.Path,
		Settings:  settings,
		CreatedAt: bus.CreatedAt.UTC(),
		UpdatedAt: bus.UpdatedAt.UTC(),
	}

	if bus.ParentID != uuid.Nil {
		db.ParentID = uuid.NullUUID{UUID: bus.ParentID, Valid: true}
	}

	if bus.DeletedAt != nil {
		db.DeletedAt = sql.NullTime{Time: bus.DeletedAt.UTC(), Valid: true}
	}

	return db, nil
}

func toBusOrganization(db organizationDB) (orgbus.Organization, error) {
	typ, err := orgtype.Parse(db.Type)
	if err != nil {
		return orgbus.Organization{}, fmt.Errorf("parse type: %w", err)
	}

	nme, err := name.Parse(db.Name)
	if err != nil {
		return orgbus.Organization{}, fmt.Errorf("parse name: %w", err)
	}

	code, err := orgcode.Parse(db.Code)
	if err != nil {
		return orgbus.Organization{}, fmt.Errorf("parse code: %w", err)
	}

	var settings map[string]any
	if len(db.Settings) > 0 {
		if err := json.Unmarshal(db.Settings, &settings); err != nil {
			return orgbus.Organization{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	bus := orgbus.Organization{
		ID:        db.ID,
		Type:      typ,
		Name:      nme,
		Code:      code,
		Level:     db.Level,
		Path:      db.Path,
		Settings:  settings,
		CreatedAt: db.CreatedAt.In(time.Local),
		UpdatedAt: db.UpdatedAt.In(time.Local),
	}

	if db.ParentID.Valid {
		bus.ParentID = db.ParentID.UUID
	}

	if db.DeletedAt.Valid {
		t := db.DeletedAt.Time.In(time.Local)
		bus.DeletedAt = &t
	}

	return bus, nil
}

func toBusOrganizations(dbs []organizationDB) ([]orgbus.Organization, error) {
	bus := make([]orgbus.Organization, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusOrganization(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}

// =============================================================================

type policyDB struct {
	OrganizationID uuid.UUID `db:"org_id"`
	Category       string    `db:"category"`
	Scope          string    `db:"scope"`
	Level          string    `db:"access_level"`
	Conditions     []byte    `db:"conditions"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toDBPolicy(bus orgbus.DataSharingPolicy) (policyDB, error) {
	conditions, err := json.Marshal(bus.Conditions)
	if err != nil {
		return policyDB{}, fmt.Errorf("marshal conditions: %w", err)
	}

	return policyDB{
		OrganizationID: bus.OrganizationID,
		Category:       bus.Category.String(),
		Scope:          bus.Scope.String(),
		Level:          bus.Level.String(),
		Conditions:     conditions,
		CreatedAt:      bus.CreatedAt.UTC(),
		UpdatedAt:      bus.UpdatedAt.UTC(),
	}, nil
}

func toBusPolicy(db policyDB) (orgbus.DataSharingPolicy, error) {
	category, err := datacategory.Parse(db.Category)
	if err != nil {
		return orgbus.DataSharingPolicy{}, fmt.Errorf("parse category: %w", err)
	}

	scope, err := sharingscope.Parse(db.Scope)
	if err != nil {
		return orgbus.DataSharingPolicy{}, fmt.Errorf("parse scope: %w", err)
	}

	level, err := accesslevel.Parse(db.Level)
	if err != nil {
		return orgbus.DataSharingPolicy{}, fmt.Errorf("parse level: %w", err)
	}

	var conditions map[string]any
	if len(db.Conditions) > 0 {
		if err := json.Unmarshal(db.Conditions, &conditions); err != nil {
			return orgbus.DataSharingPolicy{}, fmt.Errorf("unmarshal conditions: %w", err)
		}
	}

	return orgbus.DataSharingPolicy{
		OrganizationID: db.OrganizationID,
		Category:       category,
		Scope:          scope,
		Level:          level,
		Conditions:     conditions,
		CreatedAt:      db.CreatedAt.In(time.Local),
		UpdatedAt:      db.UpdatedAt.In(time.Local),
	}, nil
}

func toBusPolicies(dbs []policyDB) ([]orgbus.DataSharingPolicy, error) {
	bus := make([]orgbus.DataSharingPolicy, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusPolicy(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}

// =============================================================================

type tenantLinkDB struct {
	TenantID       uuid.UUID `db:"tenant_id"`
	OrganizationID uuid.UUID `db:"org_id"`
	Role           string    `db:"role"`
	CreatedAt      time.Time `db:"created_at"`
}

func toDBTenantLink(bus orgbus.TenantLink) tenantLinkDB {
	return tenantLinkDB{
		TenantID:       bus.TenantID,
		OrganizationID: bus.OrganizationID,
		Role:           bus.Role.String(),
		CreatedAt:      bus.CreatedAt.UTC(),
	}
}

func toBusTenantLink(db tenantLinkDB) (orgbus.TenantLink, error) {
	role, err := tenantrole.Parse(db.Role)
	if err != nil {
		return orgbus.TenantLink{}, fmt.Errorf("parse role: %w", err)
	}

	return orgbus.TenantLink{
		TenantID:       db.TenantID,
		OrganizationID: db.OrganizationID,
		Role:           role,
		CreatedAt:      db.CreatedAt.In(time.Local),
	}, nil
}

func toBusTenantLinks(dbs []tenantLinkDB) ([]orgbus.TenantLink, error) {
	bus := make([]orgbus.TenantLink, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusTenantLink(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}
