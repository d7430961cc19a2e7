// Package orgdb contains organization hierarchy related CRUD functionality.
package orgdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lodgehub/lodgehub/business/domain/orgbus"
	"github.com/lodgehub/lodgehub/business/sdk/order"
	"github.com/lodgehub/lodgehub/business/sdk/page"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

// Store manages the set of APIs for organization database access.
type Store struct {
	log *logger.Logger
	db  sqlx.ExtContext
}

// NewStore constructs the api for data access.
func NewStore(log *logger.Logger, db *sqlx.DB) *Store {
	return &Store{
		log: log,
		db:  db,
	}
}

// NewWithTx constructs a new Store value replacing the sqlx DB
// value with a sqlx DB value that is currently inside a transaction.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (orgbus.Storer, error) {
	ec, err := sqldb.GetExtContext(tx)
	if err != nil {
		return nil, err
	}

	store := Store{
		log: s.log,
		db:  ec,
	}

	return &store, nil
}

// Create inserts a new organization node into the database.
func (s *Store) Create(ctx context.Context, org orgbus.Organization) error {
	const q = `
	INSERT INTO "public"."organizations"
		(org_id, org_type, name, code, parent_id, level, path, settings, created_at, updated_at)
	VALUES
		(:org_id, :org_type, :name, :code, :parent_id, :level, :path, :settings, :created_at, :updated_at)`

	db, err := toDBOrganization(org)
	if err != nil {
		return err
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, db); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			switch dupErr.Column {
			case "code", "uq_org_parent_code", "uq_org_path":
				return fmt.Errorf("namedexeccontext: %w", orgbus.ErrDuplicateCode)
			}
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Update replaces an organization node in the database.
func (s *Store) Update(ctx context.Context, org orgbus.Organization) error {
	const q = `
	UPDATE
		"public"."organizations"
	SET
		name = :name,
		code = :code,
		parent_id = :parent_id,
		level = :level,
		path = :path,
		settings = :settings,
		updated_at = :updated_at
	WHERE
		org_id = :org_id`

	db, err := toDBOrganization(org)
	if err != nil {
		return err
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, db); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			switch dupErr.Column {
			case "code", "uq_org_parent_code", "uq_org_path":
				return orgbus.ErrDuplicateCode
			}
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Delete marks an organization node as deleted. The row is kept for the
// audit trail.
func (s *Store) Delete(ctx context.Context, org orgbus.Organization) error {
	const q = `
	UPDATE
		"public"."organizations"
	SET
		deleted_at = :deleted_at,
		updated_at = :updated_at
	WHERE
		org_id = :org_id`

	db, err := toDBOrganization(org)
	if err != nil {
		return err
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, db); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Query retrieves a list of active organization nodes from the database.
func (s *Store) Query(ctx context.Context, filter orgbus.QueryFilter, orderBy order.By, page page.Page) ([]orgbus.Organization, error) {
	data := map[string]any{
		"offset":        (page.Number() - 1) * page.RowsPerPage(),
		"rows_per_page": page.RowsPerPage(),
	}

	const q = `
	SELECT
		o.org_id, o.org_type, o.name, o.code, o.parent_id, o.level, o.path, o.settings, o.created_at, o.updated_at, o.deleted_at
	FROM
		"public"."organizations" AS o
	WHERE
		o.deleted_at IS NULL`

	buf := bytes.NewBufferString(q)
	applyFilter(filter, data, buf)

	orderByClause, err := orderByClause(orderBy)
	if err != nil {
		return nil, err
	}

	buf.WriteString(orderByClause)
	buf.WriteString(" OFFSET :offset ROWS FETCH NEXT :rows_per_page ROWS ONLY")

	var dbOrgs []organizationDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, buf.String(), data, &dbOrgs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusOrganizations(dbOrgs)
}

// Count returns the total number of active organization nodes matching the
// filter.
func (s *Store) Count(ctx context.Context, filter orgbus.QueryFilter) (int, error) {
	data := map[string]any{}

	const q = `
	SELECT
		count(1)
	FROM
		"public"."organizations" AS o
	WHERE
		o.deleted_at IS NULL`

	buf := bytes.NewBufferString(q)
	applyFilter(filter, data, buf)

	var count struct {
		Count int `db:"count"`
	}
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, buf.String(), data, &count); err != nil {
		return 0, fmt.Errorf("db: %w", err)
	}

	return count.Count, nil
}

// QueryByID gets the specified active organization node from the database.
func (s *Store) QueryByID(ctx context.Context, orgID uuid.UUID) (orgbus.Organization, error) {
	data := struct {
		ID string `db:"org_id"`
	}{
		ID: orgID.String(),
	}

	const q = `
	SELECT
		o.org_id, o.org_type, o.name, o.code, o.parent_id, o.level, o.path, o.settings, o.created_at, o.updated_at, o.deleted_at
	FROM
		"public"."organizations" AS o
	WHERE
		o.org_id = :org_id AND o.deleted_at IS NULL`

	var dbOrg organizationDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbOrg); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return orgbus.Organization{}, fmt.Errorf("db: %w", orgbus.ErrNotFound)
		}
		return orgbus.Organization{}, fmt.Errorf("db: %w", err)
	}

	return toBusOrganization(dbOrg)
}

// QueryByParentAndCode gets the active sibling carrying the given code
// under the given parent. Roots share the nil parent.
func (s *Store) QueryByParentAndCode(ctx context.Context, parentID uuid.UUID, code string) (orgbus.Organization, error) {
	data := map[string]any{
		"parent_id": parentID.String(),
		"code":      code,
	}

	q := `
	SELECT
		o.org_id, o.org_type, o.name, o.code, o.parent_id, o.level, o.path, o.settings, o.created_at, o.updated_at, o.deleted_at
	FROM
		"public"."organizations" AS o
	WHERE
		o.parent_id = :parent_id AND o.code = :code AND o.deleted_at IS NULL`

	if parentID == uuid.Nil {
		q = `
	SELECT
		o.org_id, o.org_type, o.name, o.code, o.parent_id, o.level, o.path, o.settings, o.created_at, o.updated_at, o.deleted_at
	FROM
		"public"."organizations" AS o
	WHERE
		o.parent_id IS NULL AND o.code = :code AND o.deleted_at IS NULL`
	}

	var dbOrg organizationDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbOrg); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return orgbus.Organization{}, fmt.Errorf("db: %w", orgbus.ErrNotFound)
		}
		return orgbus.Organization{}, fmt.Errorf("db: %w", err)
	}

	return toBusOrganization(dbOrg)
}

// QuerySubtree returns the active subtree rooted at the given node, the
// root included, limited to maxDepth levels below the root. The rows come
// back ordered by path so parents always precede their children.
func (s *Store) QuerySubtree(ctx context.Context, rootID uuid.UUID, maxDepth int) ([]orgbus.Organization, error) {
	data := struct {
		ID       string `db:"org_id"`
		MaxDepth int    `db:"max_depth"`
	}{
		ID:       rootID.String(),
		MaxDepth: maxDepth,
	}

	const q = `
	SELECT
		o.org_id, o.org_type, o.name, o.code, o.parent_id, o.level, o.path, o.settings, o.created_at, o.updated_at, o.deleted_at
	FROM
		"public"."organizations" AS o,
		"public"."organizations" AS r
	WHERE
		r.org_id = :org_id
		AND r.deleted_at IS NULL
		AND o.deleted_at IS NULL
		AND (o.path = r.path OR o.path LIKE r.path || '/%')
		AND o.level <= r.level + :max_depth
	ORDER BY
		o.path`

	var dbOrgs []organizationDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbOrgs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	if len(dbOrgs) == 0 {
		return nil, orgbus.ErrNotFound
	}

	return toBusOrganizations(dbOrgs)
}

// CountActiveChildren returns the number of active direct children of the
// given node.
func (s *Store) CountActiveChildren(ctx context.Context, orgID uuid.UUID) (int, error) {
	data := struct {
		ID string `db:"org_id"`
	}{
		ID: orgID.String(),
	}

	const q = `
	SELECT
		count(1)
	FROM
		"public"."organizations" AS o
	WHERE
		o.parent_id = :org_id AND o.deleted_at IS NULL`

	var count struct {
		Count int `db:"count"`
	}
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &count); err != nil {
		return 0, fmt.Errorf("db: %w", err)
	}

	return count.Count, nil
}

// CountTenantLinks returns the number of tenants linked to the given node.
func (s *Store) CountTenantLinks(ctx context.Context, orgID uuid.UUID) (int, error) {
	data := struct {
		ID string `db:"org_id"`
	}{
		ID: orgID.String(),
	}

	const q = `
	SELECT
		count(1)
	FROM
		"public"."organization_tenants" AS ot
	WHERE
		ot.org_id = :org_id`

	var count struct {
		Count int `db:"count"`
	}
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &count); err != nil {
		return 0, fmt.Errorf("db: %w", err)
	}

	return count.Count, nil
}

// =============================================================================

// UpsertPolicy inserts or replaces the policy row for one (organization,
// category) pair.
func (s *Store) UpsertPolicy(ctx context.Context, p orgbus.DataSharingPolicy) error {
	const q = `
	INSERT INTO "public"."data_sharing_policies"
		(org_id, category, scope, access_level, conditions, created_at, updated_at)
	VALUES
		(:org_id, :category, :scope, :access_level, :conditions, :created_at, :updated_at)
	ON CONFLICT (org_id, category) DO UPDATE SET
		scope = :scope,
		access_level = :access_level,
		conditions = :conditions,
		updated_at = :updated_at`

	db, err := toDBPolicy(p)
	if err != nil {
		return err
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, db); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// QueryPolicy gets the explicit policy row for one (organization, category)
// pair.
func (s *Store) QueryPolicy(ctx context.Context, orgID uuid.UUID, category datacategory.DataCategory) (orgbus.DataSharingPolicy, error) {
	data := struct {
		ID       string `db:"org_id"`
		Category string `db:"category"`
	}{
		ID:       orgID.String(),
		Category: category.String(),
	}

	const q = `
	SELECT
		p.org_id, p.category, p.scope, p.access_level, p.conditions, p.created_at, p.updated_at
	FROM
		"public"."data_sharing_policies" AS p
	WHERE
		p.org_id = :org_id AND p.category = :category`

	var dbPolicy policyDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbPolicy); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return orgbus.DataSharingPolicy{}, fmt.Errorf("db: %w", orgbus.ErrPolicyNotFound)
		}
		return orgbus.DataSharingPolicy{}, fmt.Errorf("db: %w", err)
	}

	return toBusPolicy(dbPolicy)
}

// QueryPolicies returns every explicit policy row stored on the node.
func (s *Store) QueryPolicies(ctx context.Context, orgID uuid.UUID) ([]orgbus.DataSharingPolicy, error) {
	data := struct {
		ID string `db:"org_id"`
	}{
		ID: orgID.String(),
	}

	const q = `
	SELECT
		p.org_id, p.category, p.scope, p.access_level, p.conditions, p.created_at, p.updated_at
	FROM
		"public"."data_sharing_policies" AS p
	WHERE
		p.org_id = :org_id
	ORDER BY
		p.category`

	var dbPolicies []policyDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbPolicies); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusPolicies(dbPolicies)
}

// =============================================================================

// CreateTenantLink connects a tenant to an organization node.
func (s *Store) CreateTenantLink(ctx context.Context, link orgbus.TenantLink) error {
	const q = `
	INSERT INTO "public"."organization_tenants"
		(tenant_id, org_id, role, created_at)
	VALUES
		(:tenant_id, :org_id, :role, :created_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBTenantLink(link)); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			if dupErr.Column == "uq_tenant_primary" {
				return fmt.Errorf("namedexeccontext: %w", orgbus.ErrPrimaryLinkTaken)
			}
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// QueryTenantLinks returns the tenant links attached to the given node.
func (s *Store) QueryTenantLinks(ctx context.Context, orgID uuid.UUID) ([]orgbus.TenantLink, error) {
	data := struct {
		ID string `db:"org_id"`
	}{
		ID: orgID.String(),
	}

	const q = `
	SELECT
		ot.tenant_id, ot.org_id, ot.role, ot.created_at
	FROM
		"public"."organization_tenants" AS ot
	WHERE
		ot.org_id = :org_id
	ORDER BY
		ot.created_at`

	var dbLinks []tenantLinkDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbLinks); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusTenantLinks(dbLinks)
}

// QueryAccessibleTenants returns the ids of every tenant linked anywhere in
// the active subtree rooted at the given node.
func (s *Store) QueryAccessibleTenants(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	data := struct {
		ID string `db:"org_id"`
	}{
		ID: orgID.String(),
	}

	const q = `
	SELECT DISTINCT
		ot.tenant_id
	FROM
		"public"."organization_tenants" AS ot
	JOIN
		"public"."organizations" AS o ON o.org_id = ot.org_id,
		"public"."organizations" AS r
	WHERE
		r.org_id = :org_id
		AND r.deleted_at IS NULL
		AND o.deleted_at IS NULL
		AND (o.path = r.path OR o.path LIKE r.path || '/%')`

	var rows []struct {
		TenantID uuid.UUID `db:"tenant_id"`
	}
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &rows); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	tenants := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		tenants[i] = row.TenantID
	}

	return tenants, nil
}

// QueryPrimaryLink returns the PRIMARY link of the given tenant.
func (s *Store) QueryPrimaryLink(ctx context.Context, tenantID uuid.UUID) (orgbus.TenantLink, error) {
	data := struct {
		ID string `db:"tenant_id"`
	}{
		ID: tenantID.String(),
	}

	const q = `
	SELECT
		ot.tenant_id, ot.org_id, ot.role, ot.created_at
	FROM
		"public"."organization_tenants" AS ot
	WHERE
		ot.tenant_id = :tenant_id AND ot.role = 'PRIMARY'`

	var dbLink tenantLinkDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbLink); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return orgbus.TenantLink{}, fmt.Errorf("db: %w", orgbus.ErrNotFound)
		}
		return orgbus.TenantLink{}, fmt.Errorf("db: %w", err)
	}

	return toBusTenantLink(dbLink)
}
