package orgapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/app/sdk/errs"
	"github.com/lodgehub/lodgehub/business/domain/accessbus"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/name"
	"github.com/lodgehub/lodgehub/business/types/orgcode"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
)

// Organization represents one node in the tenant-grouping tree.
type Organization struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Code        string         `json:"code"`
	ParentID    string         `json:"parentId,omitempty"`
	Level       int            `json:"level"`
	Path        string         `json:"path"`
	Settings    map[string]any `json:"settings,omitempty"`
	DateCreated string         `json:"dateCreated"`
	DateUpdated string         `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (o Organization) Encode() ([]byte, string, error) {
	data, err := json.Marshal(o)
	return data, "application/json", err
}

func toAppOrganization(bus orgbus.Organization) Organization {
	parentID := ""
	if bus.ParentID != uuid.Nil {
		parentID = bus.ParentID.String()
	}

	return Organization{
		ID:          bus.ID.String(),
		Type:        bus.Type.String(),
		Name:        bus.Name.String(),
		Code:        bus.Code.String(),
		ParentID:    parentID,
		Level:       bus.Level,
		Path:        bus.Path,
		Settings:    bus.Settings,
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
		DateUpdated: bus.UpdatedAt.Format(time.RFC3339),
	}
}

func toAppOrganizations(orgs []orgbus.Organization) []Organization {
	app := make([]Organization, len(orgs))
	for i, org := range orgs {
		app[i] = toAppOrganization(org)
	}
	return app
}

// CreatedOrganization wraps a new organization so create responds with
// a 201.
type CreatedOrganization struct {
	Organization
}

// HTTPStatus implements the web.HTTPStatus interface.
func (CreatedOrganization) HTTPStatus() int {
	return 201
}

// Subtree carries an organization subtree in path order.
type Subtree struct {
	Root  string         `json:"root"`
	Nodes []Organization `json:"nodes"`
}

// Encode implements the web.Encoder interface.
func (s Subtree) Encode() ([]byte, string, error) {
	data, err := json.Marshal(s)
	return data, "application/json", err
}

// NewOrganization defines the data needed to add a new organization node.
type NewOrganization struct {
	Type     string         `json:"type" validate:"required"`
	Name     string         `json:"name" validate:"required"`
	Code     string         `json:"code" validate:"required"`
	ParentID string         `json:"parentId" validate:"omitempty,uuid"`
	Settings map[string]any `json:"settings"`
}

// Decode implements the web.Decoder interface.
func (app *NewOrganization) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewOrganization) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusNewOrganization(app NewOrganization) (orgbus.NewOrganization, error) {
	typ, err := orgtype.Parse(app.Type)
	if err != nil {
		return orgbus.NewOrganization{}, fmt.Errorf("parse type: %w", err)
	}

	nme, err := name.Parse(app.Name)
	if err != nil {
		return orgbus.NewOrganization{}, fmt.Errorf("parse name: %w", err)
	}

	code, err := orgcode.Parse(app.Code)
	if err != nil {
		return orgbus.NewOrganization{}, fmt.Errorf("parse code: %w", err)
	}

	parentID := uuid.Nil
	if app.ParentID != "" {
		parentID, err = uuid.Parse(app.ParentID)
		if err != nil {
			return orgbus.NewOrganization{}, fmt.Errorf("parse parent id: %w", err)
		}
	}

	bus := orgbus.NewOrganization{
		Type:     typ,
		Name:     nme,
		Code:     code,
		ParentID: parentID,
		Settings: app.Settings,
	}

	return bus, nil
}

// UpdateOrganization defines the data needed to update an organization
// node. Changing the code or the parent rewrites the paths of the whole
// subtree.
type UpdateOrganization struct {
	Name     *string        `json:"name"`
	Code     *string        `json:"code"`
	ParentID *string        `json:"parentId" validate:"omitempty,uuid"`
	Settings map[string]any `json:"settings"`
}

// Decode implements the web.Decoder interface.
func (app *UpdateOrganization) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app UpdateOrganization) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusUpdateOrganization(app UpdateOrganization) (orgbus.UpdateOrganization, error) {
	var nme *name.Name
	if app.Name != nil {
		nm, err := name.Parse(*app.Name)
		if err != nil {
			return orgbus.UpdateOrganization{}, fmt.Errorf("parse name: %w", err)
		}
		nme = &nm
	}

	var code *orgcode.Code
	if app.Code != nil {
		c, err := orgcode.Parse(*app.Code)
		if err != nil {
			return orgbus.UpdateOrganization{}, fmt.Errorf("parse code: %w", err)
		}
		code = &c
	}

	var parentID *uuid.UUID
	if app.ParentID != nil {
		id, err := uuid.Parse(*app.ParentID)
		if err != nil {
			return orgbus.UpdateOrganization{}, fmt.Errorf("parse parent id: %w", err)
		}
		parentID = &id
	}

	bus := orgbus.UpdateOrganization{
		Name:     nme,
		Code:     code,
		ParentID: parentID,
		Settings: app.Settings,
	}

	return bus, nil
}

// Policy represents the resolved sharing policy for one data category.
type Policy struct {
	Category   string         `json:"category"`
	Scope      string         `json:"scope"`
	Level      string         `json:"level"`
	Explicit   bool           `json:"explicit"`
	Conditions map[string]any `json:"conditions,omitempty"`
}

// Policies is the full per-category policy map of one organization.
type Policies struct {
	OrganizationID string   `json:"organizationId"`
	Items          []Policy `json:"items"`
}

// Encode implements the web.Encoder interface.
func (p Policies) Encode() ([]byte, string, error) {
	data, err := json.Marshal(p)
	return data, "application/json", err
}

func toAppPolicies(orgID uuid.UUID, effective map[datacategory.DataCategory]orgbus.EffectivePolicy, explicit []orgbus.DataSharingPolicy) Policies {
	byCategory := make(map[datacategory.DataCategory]orgbus.DataSharingPolicy, len(explicit))
	for _, p := range explicit {
		byCategory[p.Category] = p
	}

	items := make([]Policy, 0, len(effective))
	for _, category := range datacategory.All() {
		eff, exists := effective[category]
		if !exists {
			continue
		}

		item := Policy{
			Category: category.String(),
			Scope:    eff.Scope.String(),
			Level:    eff.Level.String(),
		}
		if row, ok := byCategory[category]; ok {
			item.Explicit = true
			item.Conditions = row.Conditions
		}

		items = append(items, item)
	}

	return Policies{
		OrganizationID: orgID.String(),
		Items:          items,
	}
}

// SetPolicies defines the data needed to upsert sharing policies.
type SetPolicies struct {
	Policies []NewPolicy `json:"policies" validate:"required,min=1,dive"`
}

// NewPolicy defines one policy row to upsert.
type NewPolicy struct {
	Category   string         `json:"category" validate:"required"`
	Scope      string         `json:"scope" validate:"required"`
	Level      string         `json:"level" validate:"required"`
	Conditions map[string]any `json:"conditions"`
}

// Decode implements the web.Decoder interface.
func (app *SetPolicies) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app SetPolicies) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

func toBusNewPolicies(app SetPolicies) ([]orgbus.NewDataSharingPolicy, error) {
	policies := make([]orgbus.NewDataSharingPolicy, len(app.Policies))

	for i, p := range app.Policies {
		category, err := datacategory.Parse(p.Category)
		if err != nil {
			return nil, fmt.Errorf("parse category: %w", err)
		}

		scope, err := sharingscope.Parse(p.Scope)
		if err != nil {
			return nil, fmt.Errorf("parse scope: %w", err)
		}

		level, err := accesslevel.Parse(p.Level)
		if err != nil {
			return nil, fmt.Errorf("parse level: %w", err)
		}

		policies[i] = orgbus.NewDataSharingPolicy{
			Category:   category,
			Scope:      scope,
			Level:      level,
			Conditions: p.Conditions,
		}
	}

	return policies, nil
}

// ApplyPreset defines the data needed to apply a policy preset.
type ApplyPreset struct {
	PresetID string `json:"presetId" validate:"required"`
}

// Decode implements the web.Decoder interface.
func (app *ApplyPreset) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app ApplyPreset) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

// LinkTenant defines the data needed to link a tenant to an organization.
type LinkTenant struct {
	TenantID string `json:"tenantId" validate:"required,uuid"`
	Role     string `json:"role" validate:"required"`
}

// Decode implements the web.Decoder interface.
func (app *LinkTenant) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app LinkTenant) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

// TenantLink represents a tenant's membership at an organization node.
type TenantLink struct {
	TenantID       string `json:"tenantId"`
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
	DateCreated    string `json:"dateCreated"`
}

// Encode implements the web.Encoder interface.
func (t TenantLink) Encode() ([]byte, string, error) {
	data, err := json.Marshal(t)
	return data, "application/json", err
}

func toAppTenantLink(bus orgbus.TenantLink) TenantLink {
	return TenantLink{
		TenantID:       bus.TenantID.String(),
		OrganizationID: bus.OrganizationID.String(),
		Role:           bus.Role.String(),
		DateCreated:    bus.CreatedAt.Format(time.RFC3339),
	}
}

// TenantLinks carries all links of one organization.
type TenantLinks struct {
	Items []TenantLink `json:"items"`
}

// Encode implements the web.Encoder interface.
func (t TenantLinks) Encode() ([]byte, string, error) {
	data, err := json.Marshal(t)
	return data, "application/json", err
}

func toAppTenantLinks(links []orgbus.TenantLink) TenantLinks {
	items := make([]TenantLink, len(links))
	for i, link := range links {
		items[i] = toAppTenantLink(link)
	}
	return TenantLinks{Items: items}
}

// AccessibleTenants lists the tenant ids reachable from an organization.
type AccessibleTenants struct {
	OrganizationID string   `json:"organizationId"`
	TenantIDs      []string `json:"tenantIds"`
}

// Encode implements the web.Encoder interface.
func (a AccessibleTenants) Encode() ([]byte, string, error) {
	data, err := json.Marshal(a)
	return data, "application/json", err
}

// CheckAccess defines the data needed to evaluate one access request
// against the caller's session.
type CheckAccess struct {
	TenantID  string `json:"tenantId" validate:"required,uuid"`
	Category  string `json:"category" validate:"required"`
	Operation string `json:"operation" validate:"required"`
}

// Decode implements the web.Decoder interface.
func (app *CheckAccess) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app CheckAccess) Validate() error {
	if err := errs.Check(app); err != nil {
		return errs.New(errs.InvalidArgument, fmt.Errorf("validate: %w", err))
	}
	return nil
}

// AccessDecision is the outcome of an access evaluation.
type AccessDecision struct {
	Allowed        bool   `json:"allowed"`
	Reason         string `json:"reason,omitempty"`
	EffectiveScope string `json:"effectiveScope,omitempty"`
	EffectiveLevel string `json:"effectiveLevel,omitempty"`
}

// Encode implements the web.Encoder interface.
func (a AccessDecision) Encode() ([]byte, string, error) {
	data, err := json.Marshal(a)
	return data, "application/json", err
}

func toAppDecision(d accessbus.Decision) AccessDecision {
	app := AccessDecision{
		Allowed: d.Allowed,
		Reason:  d.Reason,
	}
	if d.Allowed {
		app.EffectiveScope = d.EffectiveScope.String()
		app.EffectiveLevel = d.EffectiveLevel.String()
	}
	return app
}

// Preset describes one policy preset available to apply.
type Preset struct {
	ID string `json:"id"`
}

// Presets lists the available policy presets.
type Presets struct {
	Items []Preset `json:"items"`
}

// Encode implements the web.Encoder interface.
func (p Presets) Encode() ([]byte, string, error) {
	data, err := json.Marshal(p)
	return data, "application/json", err
}

func toAppPresets(ids []string) Presets {
	items := make([]Preset, len(ids))
	for i, id := range ids {
		items[i] = Preset{ID: id}
	}
	return Presets{Items: items}
}
