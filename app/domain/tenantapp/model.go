package tenantapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/business/domain/tenantbus"
	"github.com/lodgehub/lodgehub/business/types/name"
)

// Tenant represents one property operator.
type Tenant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Domain      string `json:"domain"`
	Enabled     bool   `json:"enabled"`
	DateCreated string `json:"dateCreated"`
	DateUpdated string `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (t Tenant) Encode() ([]byte, string, error) {
	data, err := json.Marshal(t)
	return data, "application/json", err
}

func toAppTenant(bus tenantbus.Tenant) Tenant {
	return Tenant{
		ID:          bus.ID.String(),
		Name:        bus.Name.String(),
		Slug:        bus.Slug,
		Domain:      bus.Domain,
		Enabled:     bus.Enabled,
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
		DateUpdated: bus.UpdatedAt.Format(time.RFC3339),
	}
}

// CreatedTenant wraps a new tenant so create responds with a 201.
type CreatedTenant struct {
	Tenant
}

// HTTPStatus implements the web.HTTPStatus interface.
func (CreatedTenant) HTTPStatus() int {
	return 201
}

// NewTenant defines the data needed to add a new tenant.
type NewTenant struct {
	Name   string `json:"name" validate:"required"`
	Slug   string `json:"slug" validate:"required"`
	Domain string `json:"domain"`
}

// Decode implements the web.Decoder interface.
func (app *NewTenant) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewTenant) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusNewTenant(app NewTenant) (tenantbus.NewTenant, error) {
	nme, err := name.Parse(app.Name)
	if err != nil {
		return tenantbus.NewTenant{}, fmt.Errorf("parse name: %w", err)
	}

	bus := tenantbus.NewTenant{
		Name:   nme,
		Slug:   app.Slug,
		Domain: app.Domain,
	}

	return bus, nil
}

// UpdateTenant defines the data needed to update a tenant.
type UpdateTenant struct {
	Name    *string `json:"name"`
	Domain  *string `json:"domain"`
	Enabled *bool   `json:"enabled"`
}

// Decode implements the web.Decoder interface.
func (app *UpdateTenant) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app UpdateTenant) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusUpdateTenant(app UpdateTenant) (tenantbus.UpdateTenant, error) {
	var nme *name.Name
	if app.Name != nil {
		nm, err := name.Parse(*app.Name)
		if err != nil {
			return tenantbus.UpdateTenant{}, fmt.Errorf("parse name: %w", err)
		}
		nme = &nm
	}

	bus := tenantbus.UpdateTenant{
		Name:    nme,
		Domain:  app.Domain,
		Enabled: app.Enabled,
	}

	return bus, nil
}
