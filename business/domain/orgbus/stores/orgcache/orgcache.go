// Package orgcache contains organization hierarchy related CRUD
// functionality with a read-through cache in front of the database. The
// subtree and accessible-tenant reads dominate token minting, so those two
// are cached per node with single-flight loading; everything else goes
// straight to the database.
package orgcache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/sdk/order"
	"github.com/lodgehub/lodgehub/business/sdk/page"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/foundation/logger"
	"github.com/viccon/sturdyc"
)

const (
	capacity           = 10_000
	numShards          = 64
	evictionPercentage = 10
)

// Store manages the set of APIs for organization data and caching.
type Store struct {
	log      *logger.Logger
	storer   orgbus.Storer
	subtrees *sturdyc.Client[[]orgbus.Organization]
	tenants  *sturdyc.Client[[]uuid.UUID]
	bypass   bool
}

// NewStore constructs the api for data and caching access. The ttl bounds
// how long a relative of a mutated node can serve a stale snapshot.
func NewStore(log *logger.Logger, storer orgbus.Storer, ttl time.Duration) *Store {
	return &Store{
		log:      log,
		storer:   storer,
		subtrees: sturdyc.New[[]orgbus.Organization](capacity, numShards, ttl, evictionPercentage),
		tenants:  sturdyc.New[[]uuid.UUID](capacity, numShards, ttl, evictionPercentage),
	}
}

// NewWithTx constructs a new Store value replacing the storer value with a
// storer value that is currently inside a transaction. Reads inside the
// transaction bypass the cache so they see uncommitted writes; the cache
// itself stays shared so invalidation still lands.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (orgbus.Storer, error) {
	storer, err := s.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	store := Store{
		log:      s.log,
		storer:   storer,
		subtrees: s.subtrees,
		tenants:  s.tenants,
		bypass:   true,
	}

	return &store, nil
}

// Invalidate drops the cached snapshots of the given node.
func (s *Store) Invalidate(orgID uuid.UUID) {
	for depth := 0; depth <= orgbus.MaxDepth; depth++ {
		s.subtrees.Delete(subtreeKey(orgID, depth))
	}
	s.tenants.Delete(tenantsKey(orgID))
}

// Create inserts a new organization node into the database.
func (s *Store) Create(ctx context.Context, org orgbus.Organization) error {
	return s.storer.Create(ctx, org)
}

// Update replaces an organization node in the database.
func (s *Store) Update(ctx context.Context, org orgbus.Organization) error {
	return s.storer.Update(ctx, org)
}

// Delete marks an organization node as deleted.
func (s *Store) Delete(ctx context.Context, org orgbus.Organization) error {
	return s.storer.Delete(ctx, org)
}

// QueryByID gets the specified organization node from the database.
func (s *Store) QueryByID(ctx context.Context, orgID uuid.UUID) (orgbus.Organization, error) {
	return s.storer.QueryByID(ctx, orgID)
}

// QueryByParentAndCode gets the active sibling carrying the given code.
func (s *Store) QueryByParentAndCode(ctx context.Context, parentID uuid.UUID, code string) (orgbus.Organization, error) {
	return s.storer.QueryByParentAndCode(ctx, parentID, code)
}

// QuerySubtree returns the active subtree rooted at the given node,
// serving the cached snapshot when present. Concurrent misses for the same
// node collapse into a single database read.
func (s *Store) QuerySubtree(ctx context.Context, rootID uuid.UUID, maxDepth int) ([]orgbus.Organization, error) {
	if s.bypass {
		return s.storer.QuerySubtree(ctx, rootID, maxDepth)
	}

	subtree, err := s.subtrees.GetOrFetch(ctx, subtreeKey(rootID, maxDepth), func(ctx context.Context) ([]orgbus.Organization, error) {
		return s.storer.QuerySubtree(ctx, rootID, maxDepth)
	})
	if err != nil {
		return nil, err
	}

	return subtree, nil
}

// Query retrieves a list of existing organization nodes from the database.
func (s *Store) Query(ctx context.Context, filter orgbus.QueryFilter, orderBy order.By, page page.Page) ([]orgbus.Organization, error) {
	return s.storer.Query(ctx, filter, orderBy, page)
}

// Count returns the total number of organization nodes in the DB.
func (s *Store) Count(ctx context.Context, filter orgbus.QueryFilter) (int, error) {
	return s.storer.Count(ctx, filter)
}

// CountActiveChildren returns the number of active direct children.
func (s *Store) CountActiveChildren(ctx context.Context, orgID uuid.UUID) (int, error) {
	return s.storer.CountActiveChildren(ctx, orgID)
}

// CountTenantLinks returns the number of tenants linked to the node.
func (s *Store) CountTenantLinks(ctx context.Context, orgID uuid.UUID) (int, error) {
	return s.storer.CountTenantLinks(ctx, orgID)
}

// UpsertPolicy inserts or replaces the policy row for one category.
func (s *Store) UpsertPolicy(ctx context.Context, p orgbus.DataSharingPolicy) error {
	return s.storer.UpsertPolicy(ctx, p)
}

// QueryPolicy gets the explicit policy row for one category.
func (s *Store) QueryPolicy(ctx context.Context, orgID uuid.UUID, category datacategory.DataCategory) (orgbus.DataSharingPolicy, error) {
	return s.storer.QueryPolicy(ctx, orgID, category)
}

// QueryPolicies returns every explicit policy row stored on the node.
func (s *Store) QueryPolicies(ctx context.Context, orgID uuid.UUID) ([]orgbus.DataSharingPolicy, error) {
	return s.storer.QueryPolicies(ctx, orgID)
}

// CreateTenantLink connects a tenant to an organization node.
func (s *Store) CreateTenantLink(ctx context.Context, link orgbus.TenantLink) error {
	return s.storer.CreateTenantLink(ctx, link)
}

// QueryTenantLinks returns the tenant links attached to the node.
func (s *Store) QueryTenantLinks(ctx context.Context, orgID uuid.UUID) ([]orgbus.TenantLink, error) {
	return s.storer.QueryTenantLinks(ctx, orgID)
}

// QueryAccessibleTenants returns the ids of every tenant linked anywhere
// in the subtree rooted at the given node, serving the cached snapshot
// when present.
func (s *Store) QueryAccessibleTenants(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	if s.bypass {
		return s.storer.QueryAccessibleTenants(ctx, orgID)
	}

	tenants, err := s.tenants.GetOrFetch(ctx, tenantsKey(orgID), func(ctx context.Context) ([]uuid.UUID, error) {
		return s.storer.QueryAccessibleTenants(ctx, orgID)
	})
	if err != nil {
		return nil, err
	}

	return tenants, nil
}

// QueryPrimaryLink returns the PRIMARY link of the given tenant.
func (s *Store) QueryPrimaryLink(ctx context.Context, tenantID uuid.UUID) (orgbus.TenantLink, error) {
	return s.storer.QueryPrimaryLink(ctx, tenantID)
}

func subtreeKey(orgID uuid.UUID, maxDepth int) string {
	return fmt.Sprintf("subtree:%s:%d", orgID, maxDepth)
}

func tenantsKey(orgID uuid.UUID) string {
	return fmt.Sprintf("tenants:%s", orgID)
}
