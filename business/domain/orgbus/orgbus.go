// Package orgbus provides business access to the organization hierarchy:
// node CRUD with materialized-path maintenance, data-sharing policies and
// tenant links.
package orgbus

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/sdk/eventbus"
	"github.com/lodgehub/lodgehub/business/sdk/order"
	"github.com/lodgehub/lodgehub/business/sdk/page"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/tenantrole"
	"github.com/lodgehub/lodgehub/foundation/logger"
	"github.com/lodgehub/lodgehub/foundation/otel"
)

var (
	ErrNotFound         = errors.New("organization not found")
	ErrParentNotFound   = errors.New("parent organization not found")
	ErrLevelExceeded    = errors.New("maximum hierarchy depth exceeded")
	ErrDuplicateCode    = errors.New("code is not unique within parent")
	ErrHasChildren      = errors.New("organization has active children")
	ErrHasTenants       = errors.New("organization has linked tenants")
	ErrInvalidParent    = errors.New("invalid parent organization")
	ErrPolicyNotFound   = errors.New("data sharing policy not found")
	ErrPresetNotFound   = errors.New("preset not found")
	ErrPrimaryLinkTaken = errors.New("tenant already has a primary organization")
)

// Storer defines the behavior required by the orgbus to interact with the
// database.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)

	Create(ctx context.Context, org Organization) error
	Update(ctx context.Context, org Organization) error
	Delete(ctx context.Context, org Organization) error
	QueryByID(ctx context.Context, orgID uuid.UUID) (Organization, error)
	QueryByParentAndCode(ctx context.Context, parentID uuid.UUID, code string) (Organization, error)
	QuerySubtree(ctx context.Context, rootID uuid.UUID, maxDepth int) ([]Organization, error)
	Query(ctx context.Context, filter QueryFilter, orderBy order.By, page page.Page) ([]Organization, error)
	Count(ctx context.Context, filter QueryFilter) (int, error)
	CountActiveChildren(ctx context.Context, orgID uuid.UUID) (int, error)
	CountTenantLinks(ctx context.Context, orgID uuid.UUID) (int, error)

	UpsertPolicy(ctx context.Context, p DataSharingPolicy) error
	QueryPolicy(ctx context.Context, orgID uuid.UUID, category datacategory.DataCategory) (DataSharingPolicy, error)
	QueryPolicies(ctx context.Context, orgID uuid.UUID) ([]DataSharingPolicy, error)

	CreateTenantLink(ctx context.Context, link TenantLink) error
	QueryTenantLinks(ctx context.Context, orgID uuid.UUID) ([]TenantLink, error)
	QueryAccessibleTenants(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
	QueryPrimaryLink(ctx context.Context, tenantID uuid.UUID) (TenantLink, error)
}

// Invalidator is implemented by storers that maintain cached hierarchy
// state. Mutations through the Core invalidate the affected node only; the
// cache TTL is the backstop for relatives.
type Invalidator interface {
	Invalidate(orgID uuid.UUID)
}

// Core manages the set of APIs for organization hierarchy access.
type Core struct {
	storer      Storer
	log         *logger.Logger
	publisher   eventbus.Publisher
	afterCommit func(fn func())
}

// NewCore constructs a core for organization api access.
func NewCore(log *logger.Logger, storer Storer, publisher eventbus.Publisher) *Core {
	return &Core{
		storer:    storer,
		log:       log,
		publisher: publisher,
	}
}

// NewWithTx constructs a new Core value replacing the Storer
// value with a Storer value that is currently inside a transaction.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, fmt.Errorf("newWithTx: %w", err)
	}

	core := NewCore(c.log, storer, c.publisher)

	// Inside a transaction, cache invalidation and event publication wait
	// for the commit. A rollback must leave no trace outside the store.
	if ac, ok := tx.(sqldb.AfterCommitter); ok {
		core.afterCommit = ac.AfterCommit
	}

	return core, nil
}

// Create adds a new organization node to the hierarchy. The node's level
// and path are derived from the parent and the default data-sharing
// policies for its type are seeded.
func (c *Core) Create(ctx context.Context, actorID uuid.UUID, no NewOrganization) (Organization, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.create")
	defer span.End()

	level := 1
	path := no.Code.String()

	if no.ParentID != uuid.Nil {
		parent, err := c.storer.QueryByID(ctx, no.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Organization{}, fmt.Errorf("query parent: %w", ErrParentNotFound)
			}
			return Organization{}, fmt.Errorf("query parent: %w", err)
		}

		level = parent.Level + 1
		if level > MaxDepth {
			return Organization{}, ErrLevelExceeded
		}

		path = parent.Path + PathSeparator + no.Code.String()
	} else if !no.Type.Equal(orgtype.Group) {
		return Organization{}, fmt.Errorf("%w: only GROUP nodes can be roots", ErrInvalidParent)
	}

	if _, err := c.storer.QueryByParentAndCode(ctx, no.ParentID, no.Code.String()); err == nil {
		return Organization{}, ErrDuplicateCode
	} else if !errors.Is(err, ErrNotFound) {
		return Organization{}, fmt.Errorf("query sibling code: %w", err)
	}

	now := time.Now()

	settings := no.Settings
	if settings == nil {
		settings = map[string]any{}
	}

	org := Organization{
		ID:        uuid.New(),
		Type:      no.Type,
		Name:      no.Name,
		Code:      no.Code,
		ParentID:  no.ParentID,
		Level:     level,
		Path:      path,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storer.Create(ctx, org); err != nil {
		return Organization{}, fmt.Errorf("create: %w", err)
	}

	for _, p := range DefaultPolicies(org.Type) {
		policy := DataSharingPolicy{
			OrganizationID: org.ID,
			Category:       p.Category,
			Scope:          p.Scope,
			Level:          p.Level,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := c.storer.UpsertPolicy(ctx, policy); err != nil {
			return Organization{}, fmt.Errorf("seed policy[%s]: %w", p.Category, err)
		}
	}

	c.publish(ctx, ChangeEvent{
		Operation:      OpCreate,
		OrganizationID: org.ID,
		ActorID:        actorID,
		AfterState:     &org,
		Timestamp:      now,
	})

	return org, nil
}

// Update modifies data about an organization node. A code or parent change
// rewrites the materialized path of the node and every descendant.
func (c *Core) Update(ctx context.Context, actorID uuid.UUID, org Organization, uo UpdateOrganization) (Organization, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.update")
	defer span.End()

	before := org
	rewire := false

	if uo.Name != nil {
		org.Name = *uo.Name
	}

	if uo.Code != nil && !uo.Code.Equal(org.Code) {
		org.Code = *uo.Code
		rewire = true
	}

	if uo.Settings != nil {
		org.Settings = uo.Settings
	}

	newParentID := org.ParentID
	if uo.ParentID != nil && *uo.ParentID != org.ParentID {
		newParentID = *uo.ParentID
		rewire = true
	}

	// Load the subtree before the paths change so descendants can be
	// rewritten and reported in the change event.
	subtree, err := c.storer.QuerySubtree(ctx, org.ID, MaxDepth)
	if err != nil {
		return Organization{}, fmt.Errorf("query subtree: %w", err)
	}

	if rewire {
		// A code change checks against the current siblings; a re-parent
		// checks against the destination's children. Either way the node
		// cannot collide with itself, one of code or parent differs.
		if _, err := c.storer.QueryByParentAndCode(ctx, newParentID, org.Code.String()); err == nil {
			return Organization{}, ErrDuplicateCode
		} else if !errors.Is(err, ErrNotFound) {
			return Organization{}, fmt.Errorf("query sibling code: %w", err)
		}

		newLevel := 1
		newPath := org.Code.String()

		if newParentID != uuid.Nil {
			parent, err := c.storer.QueryByID(ctx, newParentID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return Organization{}, fmt.Errorf("query parent: %w", ErrParentNotFound)
				}
				return Organization{}, fmt.Errorf("query parent: %w", err)
			}

			// Re-parenting into the node's own subtree would create a cycle.
			if parent.ID == org.ID || strings.HasPrefix(parent.Path+PathSeparator, before.Path+PathSeparator) {
				return Organization{}, fmt.Errorf("%w: new parent is inside the subtree", ErrInvalidParent)
			}

			newLevel = parent.Level + 1
			newPath = parent.Path + PathSeparator + org.Code.String()
		} else if !org.Type.Equal(orgtype.Group) {
			return Organization{}, fmt.Errorf("%w: only GROUP nodes can be roots", ErrInvalidParent)
		}

		levelShift := newLevel - before.Level
		deepest := before.Level
		for _, d := range subtree {
			if d.Level > deepest {
				deepest = d.Level
			}
		}
		if deepest+levelShift > MaxDepth {
			return Organization{}, ErrLevelExceeded
		}

		org.ParentID = newParentID
		org.Level = newLevel
		org.Path = newPath
	}

	now := time.Now()
	org.UpdatedAt = now

	if err := c.storer.Update(ctx, org); err != nil {
		return Organization{}, fmt.Errorf("update: %w", err)
	}

	var affected []uuid.UUID
	if rewire {
		affected, err = c.rewriteDescendants(ctx, before, org, subtree, now)
		if err != nil {
			return Organization{}, err
		}
	}

	c.invalidate(org.ID)
	for _, id := range affected {
		c.invalidate(id)
	}

	c.publish(ctx, ChangeEvent{
		Operation:        OpUpdate,
		OrganizationID:   org.ID,
		ActorID:          actorID,
		BeforeState:      &before,
		AfterState:       &org,
		AffectedChildren: affected,
		Timestamp:        now,
	})

	return org, nil
}

// rewriteDescendants replays the node's path and level change onto every
// descendant, shallowest first so parents are always rewritten before
// their children. Each write is its own statement; atomicity comes from
// the caller's transaction.
func (c *Core) rewriteDescendants(ctx context.Context, before Organization, after Organization, subtree []Organization, now time.Time) ([]uuid.UUID, error) {
	oldPrefix := before.Path + PathSeparator
	newPrefix := after.Path + PathSeparator
	levelShift := after.Level - before.Level

	descendants := make([]Organization, 0, len(subtree))
	for _, d := range subtree {
		if d.ID == before.ID {
			continue
		}
		descendants = append(descendants, d)
	}

	sort.Slice(descendants, func(i, j int) bool {
		return descendants[i].Level < descendants[j].Level
	})

	affected := make([]uuid.UUID, 0, len(descendants))
	for _, d := range descendants {
		if !strings.HasPrefix(d.Path, oldPrefix) {
			continue
		}

		d.Path = newPrefix + strings.TrimPrefix(d.Path, oldPrefix)
		d.Level += levelShift
		d.UpdatedAt = now

		if err := c.storer.Update(ctx, d); err != nil {
			return nil, fmt.Errorf("rewrite descendant[%s]: %w", d.ID, err)
		}

		affected = append(affected, d.ID)
	}

	return affected, nil
}

// Delete soft-deletes an organization node. The node must have no active
// children and no linked tenants.
func (c *Core) Delete(ctx context.Context, actorID uuid.UUID, org Organization) error {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.delete")
	defer span.End()

	children, err := c.storer.CountActiveChildren(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("count children: %w", err)
	}
	if children > 0 {
		return ErrHasChildren
	}

	links, err := c.storer.CountTenantLinks(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("count tenant links: %w", err)
	}
	if links > 0 {
		return ErrHasTenants
	}

	now := time.Now()
	org.UpdatedAt = now
	org.DeletedAt = &now

	if err := c.storer.Delete(ctx, org); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	c.invalidate(org.ID)

	c.publish(ctx, ChangeEvent{
		Operation:      OpDelete,
		OrganizationID: org.ID,
		ActorID:        actorID,
		BeforeState:    &org,
		Timestamp:      now,
	})

	return nil
}

// SetPolicies upserts the given data-sharing policies on the node. The
// upsert is idempotent per category and invalidates only this node's cache
// entry; policies are not inherited downward.
func (c *Core) SetPolicies(ctx context.Context, actorID uuid.UUID, orgID uuid.UUID, policies []NewDataSharingPolicy) ([]DataSharingPolicy, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.setPolicies")
	defer span.End()

	org, err := c.storer.QueryByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("query: orgID[%s]: %w", orgID, err)
	}

	now := time.Now()

	result := make([]DataSharingPolicy, 0, len(policies))
	for _, np := range policies {
		// An upsert keeps the original creation time in the store, so the
		// returned row must keep it too.
		createdAt := now
		if existing, err := c.storer.QueryPolicy(ctx, org.ID, np.Category); err == nil {
			createdAt = existing.CreatedAt
		} else if !errors.Is(err, ErrPolicyNotFound) {
			return nil, fmt.Errorf("query policy[%s]: %w", np.Category, err)
		}

		p := DataSharingPolicy{
			OrganizationID: org.ID,
			Category:       np.Category,
			Scope:          np.Scope,
			Level:          np.Level,
			Conditions:     np.Conditions,
			CreatedAt:      createdAt,
			UpdatedAt:      now,
		}
		if err := c.storer.UpsertPolicy(ctx, p); err != nil {
			return nil, fmt.Errorf("upsert policy[%s]: %w", np.Category, err)
		}
		result = append(result, p)
	}

	c.invalidate(org.ID)

	c.publish(ctx, ChangeEvent{
		Operation:      OpSetPolicy,
		OrganizationID: org.ID,
		ActorID:        actorID,
		Timestamp:      now,
	})

	return result, nil
}

// ApplyPreset expands a named policy bundle into individual policy upserts
// and records the preset id in the node settings.
func (c *Core) ApplyPreset(ctx context.Context, actorID uuid.UUID, orgID uuid.UUID, presetID string) (Organization, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.applyPreset")
	defer span.End()

	policies, err := PresetPolicies(presetID)
	if err != nil {
		return Organization{}, err
	}

	if _, err := c.SetPolicies(ctx, actorID, orgID, policies); err != nil {
		return Organization{}, fmt.Errorf("set policies: %w", err)
	}

	org, err := c.storer.QueryByID(ctx, orgID)
	if err != nil {
		return Organization{}, fmt.Errorf("query: orgID[%s]: %w", orgID, err)
	}

	if org.Settings == nil {
		org.Settings = map[string]any{}
	}
	org.Settings[SettingAppliedPreset] = presetID
	org.UpdatedAt = time.Now()

	if err := c.storer.Update(ctx, org); err != nil {
		return Organization{}, fmt.Errorf("update settings: %w", err)
	}

	c.invalidate(org.ID)

	return org, nil
}

// LinkTenant connects a tenant to an organization node. A tenant can hold
// only one PRIMARY link.
func (c *Core) LinkTenant(ctx context.Context, actorID uuid.UUID, tenantID uuid.UUID, orgID uuid.UUID, role tenantrole.TenantRole) (TenantLink, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.linkTenant")
	defer span.End()

	org, err := c.storer.QueryByID(ctx, orgID)
	if err != nil {
		return TenantLink{}, fmt.Errorf("query: orgID[%s]: %w", orgID, err)
	}

	if role.Equal(tenantrole.Primary) {
		if _, err := c.storer.QueryPrimaryLink(ctx, tenantID); err == nil {
			return TenantLink{}, ErrPrimaryLinkTaken
		} else if !errors.Is(err, ErrNotFound) {
			return TenantLink{}, fmt.Errorf("query primary link: %w", err)
		}
	}

	now := time.Now()

	link := TenantLink{
		TenantID:       tenantID,
		OrganizationID: org.ID,
		Role:           role,
		CreatedAt:      now,
	}

	if err := c.storer.CreateTenantLink(ctx, link); err != nil {
		return TenantLink{}, fmt.Errorf("create tenant link: %w", err)
	}

	c.invalidate(org.ID)

	c.publish(ctx, ChangeEvent{
		Operation:       OpLinkTenant,
		OrganizationID:  org.ID,
		ActorID:         actorID,
		AffectedTenants: []uuid.UUID{tenantID},
		Timestamp:       now,
	})

	return link, nil
}

// QueryByID finds the organization node by the specified ID.
func (c *Core) QueryByID(ctx context.Context, orgID uuid.UUID) (Organization, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.queryByID")
	defer span.End()

	org, err := c.storer.QueryByID(ctx, orgID)
	if err != nil {
		return Organization{}, fmt.Errorf("query: orgID[%s]: %w", orgID, err)
	}

	return org, nil
}

// QuerySubtree returns the active nodes of the subtree rooted at the given
// node, the root included, limited to maxDepth levels below the root.
func (c *Core) QuerySubtree(ctx context.Context, rootID uuid.UUID, maxDepth int) ([]Organization, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.querySubtree")
	defer span.End()

	subtree, err := c.storer.QuerySubtree(ctx, rootID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("query subtree: rootID[%s]: %w", rootID, err)
	}

	return subtree, nil
}

// Query retrieves a list of existing organization nodes.
func (c *Core) Query(ctx context.Context, filter QueryFilter, orderBy order.By, page page.Page) ([]Organization, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.query")
	defer span.End()

	orgs, err := c.storer.Query(ctx, filter, orderBy, page)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return orgs, nil
}

// Count returns the total number of organization nodes.
func (c *Core) Count(ctx context.Context, filter QueryFilter) (int, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.count")
	defer span.End()

	return c.storer.Count(ctx, filter)
}

// AccessibleTenants returns the ids of every tenant linked to any node of
// the subtree rooted at the given organization.
func (c *Core) AccessibleTenants(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.accessibleTenants")
	defer span.End()

	tenants, err := c.storer.QueryAccessibleTenants(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("query accessible tenants: orgID[%s]: %w", orgID, err)
	}

	return tenants, nil
}

// QueryTenantLinks returns the tenant links attached directly to the node.
func (c *Core) QueryTenantLinks(ctx context.Context, orgID uuid.UUID) ([]TenantLink, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.queryTenantLinks")
	defer span.End()

	links, err := c.storer.QueryTenantLinks(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("query tenant links: orgID[%s]: %w", orgID, err)
	}

	return links, nil
}

// QueryPrimaryOrg returns the organization a tenant is primarily linked to.
func (c *Core) QueryPrimaryOrg(ctx context.Context, tenantID uuid.UUID) (Organization, error) {
	ctx, span := otel.AddSpan(ctx, "business.orgbus.queryPrimaryOrg")
	defer span.End()

	link, err := c.storer.QueryPrimaryLink(ctx, tenantID)
	if err != nil {
		return Organization{}, fmt.Errorf("query primary link: tenantID[%s]: %w", tenantID, err)
	}

	org, err := c.storer.QueryByID(ctx, link.OrganizationID)
	if err != nil {
		return Organization{}, fmt.Errorf("query: orgID[%s]: %w", link.OrganizationID, err)
	}

	return org, nil
}

// invalidate drops cached hierarchy state for the node when the configured
// storer maintains one. The cache TTL covers ancestors and descendants.
// Under a transaction the drop waits for the commit, so a concurrent read
// cannot repopulate the cache from pre-commit state.
func (c *Core) invalidate(orgID uuid.UUID) {
	inv, ok := c.storer.(Invalidator)
	if !ok {
		return
	}

	if c.afterCommit != nil {
		c.afterCommit(func() { inv.Invalidate(orgID) })
		return
	}

	inv.Invalidate(orgID)
}

// publish emits a hierarchy change event. Under a transaction the event
// waits for the commit; a rolled-back mutation never emits. Publication is
// best effort: a failure is logged and never rolls back the mutation.
func (c *Core) publish(ctx context.Context, event ChangeEvent) {
	if c.publisher == nil {
		return
	}

	event.EventType = EventTypeHierarchyChange

	if c.afterCommit != nil {
		c.afterCommit(func() { c.send(ctx, event) })
		return
	}

	c.send(ctx, event)
}

func (c *Core) send(ctx context.Context, event ChangeEvent) {
	if err := c.publisher.Publish(ctx, event.OrganizationID.String(), event); err != nil {
		c.log.Error(ctx, "orgbus: publish change event failed", "operation", event.Operation, "org_id", event.OrganizationID, "err", err)
	}
}
