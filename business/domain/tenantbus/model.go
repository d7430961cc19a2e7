package tenantbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/name"
)

// Tenant represents one property operator: a hotel company whose data the
// engine guards. The engine reads tenant metadata for response enrichment
// only, never for access decisions.
type Tenant struct {
	ID        uuid.UUID
	Name      name.Name
	Slug      string
	Domain    string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant contains information needed to create a new tenant.
type NewTenant struct {
	Name   name.Name
	Slug   string
	Domain string
}

// UpdateTenant contains information needed to update a tenant.
type UpdateTenant struct {
	Name    *name.Name
	Domain  *string
	Enabled *bool
}
