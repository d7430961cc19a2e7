// Package permdb contains permission grant related CRUD functionality.
package permdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lodgehub/lodgehub/business/domain/permbus"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/role"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

// Store manages the set of APIs for permission database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (permbus.Storer, error) {
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

// Grant inserts a permission grant into the database.
func (s *Store) Grant(ctx context.Context, userID uuid.UUID, ng permbus.NewGrant) error {
	const q = `
	INSERT INTO "public"."permission_grants"
		(user_id, resource, operations)
	VALUES
		(:user_id, :resource, :operations::text[])
	ON CONFLICT (user_id, resource) DO UPDATE SET
		operations = :operations::text[]`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBGrant(userID, ng.Resource, ng.Operations)); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			return fmt.Errorf("namedexeccontext: %w", permbus.ErrUniqueGrant)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Revoke removes a permission grant from the database.
func (s *Store) Revoke(ctx context.Context, userID uuid.UUID, ng permbus.NewGrant) error {
	const q = `
	DELETE FROM
		"public"."permission_grants"
	WHERE
		user_id = :user_id AND resource = :resource`

	data := struct {
		UserID   uuid.UUID `db:"user_id"`
		Resource string    `db:"resource"`
	}{
		UserID:   userID,
		Resource: ng.Resource.String(),
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, data); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// ValidateAccess checks whether the user holds the operation on the
// resource type. ADMIN users pass unconditionally.
func (s *Store) ValidateAccess(ctx context.Context, check permbus.Check) error {
	const q = `
	SELECT
		count(1)
	FROM
		"public"."permission_grants" AS pg
	WHERE
		pg.user_id = :user_id
		AND pg.resource = :resource
		AND pg.operations @> :operations::text[]`

	data := struct {
		UserID     uuid.UUID `db:"user_id"`
		Resource   string    `db:"resource"`
		Operations []string  `db:"operations"`
	}{
		UserID:     check.UserID,
		Resource:   check.Resource.String(),
		Operations: []string{check.Operation.String()},
	}

	var count struct {
		Count int `db:"count"`
	}
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &count); err != nil {
		return fmt.Errorf("namedquerystruct: %w", err)
	}

	if count.Count > 0 {
		return nil
	}

	const qRole = `
	SELECT
		count(1)
	FROM
		"public"."users" AS u
	WHERE
		u.user_id = :user_id AND u.role = 'ADMIN'`

	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, qRole, data, &count); err != nil {
		return fmt.Errorf("namedquerystruct: %w", err)
	}

	if count.Count > 0 {
		return nil
	}

	return permbus.ErrAccessDenied
}

// SyncUserRole has nothing to persist here: the role lives on the user
// row and is read directly by ValidateAccess.
func (s *Store) SyncUserRole(ctx context.Context, userID uuid.UUID, r role.Role) error {
	return nil
}

// QueryGrants retrieves every permission grant defined in the system.
func (s *Store) QueryGrants(ctx context.Context) ([]permbus.Grant, error) {
	const q = `
	SELECT
		pg.user_id, pg.resource, pg.operations
	FROM
		"public"."permission_grants" AS pg`

	var dbGrants []grantDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, struct{}{}, &dbGrants); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusGrants(dbGrants)
}

// QueryUserRoles retrieves the role of every user for cache warm-up.
func (s *Store) QueryUserRoles(ctx context.Context) (map[uuid.UUID]role.Role, error) {
	const q = `
	SELECT
		u.user_id, u.role
	FROM
		"public"."users" AS u
	WHERE
		u.enabled = true`

	var rows []struct {
		UserID uuid.UUID `db:"user_id"`
		Role   string    `db:"role"`
	}
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, struct{}{}, &rows); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	roles := make(map[uuid.UUID]role.Role, len(rows))
	for _, row := range rows {
		r, err := role.Parse(row.Role)
		if err != nil {
			return nil, fmt.Errorf("parse role: %w", err)
		}
		roles[row.UserID] = r
	}

	return roles, nil
}
