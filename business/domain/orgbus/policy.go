package orgbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
	"github.com/lodgehub/lodgehub/foundation/otel"
)

// DefaultPolicy returns the built-in (scope, level) pair for a node type
// and data category. Session tokens are minted against this table whenever
// no explicit policy row exists, so the table is a pure function and must
// stay stable.
func DefaultPolicy(t orgtype.OrgType, category datacategory.DataCategory) EffectivePolicy {
	switch t {
	case orgtype.Group:
		// A group shares everything group wide.
		return EffectivePolicy{Scope: sharingscope.Group, Level: accesslevel.Full}

	case orgtype.Brand:
		// Analytics roll up to the group as summaries only; everything
		// else stays inside the brand.
		if category.Equal(datacategory.Analytics) {
			return EffectivePolicy{Scope: sharingscope.Group, Level: accesslevel.SummaryOnly}
		}
		return EffectivePolicy{Scope: sharingscope.Brand, Level: accesslevel.Full}

	case orgtype.Hotel:
		return EffectivePolicy{Scope: sharingscope.Hotel, Level: accesslevel.Full}

	case orgtype.Department:
		switch category {
		case datacategory.Staff, datacategory.Inventory:
			return EffectivePolicy{Scope: sharingscope.Department, Level: accesslevel.Full}
		case datacategory.Analytics:
			return EffectivePolicy{Scope: sharingscope.Department, Level: accesslevel.AnalyticsOnly}
		default:
			// Guest facing categories are read only at department level.
			return EffectivePolicy{Scope: sharingscope.Department, Level: accesslevel.ReadOnly}
		}
	}

	// Unknown types share nothing.
	return EffectivePolicy{Scope: sharingscope.None, Level: accesslevel.SummaryOnly}
}

// DefaultPolicies expands the default table for every data category.
func DefaultPolicies(t orgtype.OrgType) []NewDataSharingPolicy {
	categories := datacategory.All()

	policies := make([]NewDataSharingPolicy, 0, len(categories))
	for _, category := range categories {
		def := DefaultPolicy(t, category)
		policies = append(policies, NewDataSharingPolicy{
			Category: category,
			Scope:    def.Scope,
			Level:    def.Level,
		})
	}

	return policies
}

// EffectivePolicyFor resolves the (scope, level) pair governing one data
// category at one node: the explicit policy row when present, the type
// default otherwise.
func (c *Core) EffectivePolicyFor(ctx context.Context, orgID uuid.UUID, category datacategory.DataCategory) (EffectivePolicy, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.effectivePolicy")
	defer span.End()

	p, err := c.storer.QueryPolicy(ctx, orgID, category)
	if err == nil {
		return EffectivePolicy{Scope: p.Scope, Level: p.Level}, nil
	}
	if !errors.Is(err, ErrPolicyNotFound) {
		return EffectivePolicy{}, fmt.Errorf("query policy: orgID[%s]: %w", orgID, err)
	}

	org, err := c.storer.QueryByID(ctx, orgID)
	if err != nil {
		return EffectivePolicy{}, fmt.Errorf("query: orgID[%s]: %w", orgID, err)
	}

	return DefaultPolicy(org.Type, category), nil
}

// ResolvePolicies resolves the effective policy for every data category at
// one node, explicit rows overlaid on the type defaults. This is the
// snapshot embedded into session tokens at mint time.
func (c *Core) ResolvePolicies(ctx context.Context, orgID uuid.UUID) (map[datacategory.DataCategory]EffectivePolicy, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.resolvePolicies")
	defer span.End()

	org, err := c.storer.QueryByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("query: orgID[%s]: %w", orgID, err)
	}

	resolved := make(map[datacategory.DataCategory]EffectivePolicy, len(datacategory.All()))
	for _, category := range datacategory.All() {
		resolved[category] = DefaultPolicy(org.Type, category)
	}

	rows, err := c.storer.QueryPolicies(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("query policies: orgID[%s]: %w", orgID, err)
	}

	for _, row := range rows {
		resolved[row.Category] = EffectivePolicy{Scope: row.Scope, Level: row.Level}
	}

	return resolved, nil
}

// QueryPolicies returns the explicit policy rows stored on the node.
func (c *Core) QueryPolicies(ctx context.Context, orgID uuid.UUID) ([]DataSharingPolicy, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.queryPolicies")
	defer span.End()

	rows, err := c.storer.QueryPolicies(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("query policies: orgID[%s]: %w", orgID, err)
	}

	return rows, nil
}
