// Package permbus provides business access to the admin-surface
// permission grants: which user may run which operation against which
// resource type. Access decisions for tenant data live in accessbus; this
// package only guards the mutation API's own routes.
package permbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/role"
	"github.com/lodgehub/lodgehub/foundation/otel"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrUniqueGrant  = errors.New("grant already exists")
)

// Storer defines the behavior required by the permbus to interact with
// grant storage.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)
	Grant(ctx context.Context, userID uuid.UUID, ng NewGrant) error
	Revoke(ctx context.Context, userID uuid.UUID, ng NewGrant) error
	ValidateAccess(ctx context.Context, check Check) error
	SyncUserRole(ctx context.Context, userID uuid.UUID, r role.Role) error
	QueryGrants(ctx context.Context) ([]Grant, error)
	QueryUserRoles(ctx context.Context) (map[uuid.UUID]role.Role, error)
}

// Core manages the set of APIs for permission access.
type Core struct {
	storer Storer
}

// NewCore constructs a core for permission api access.
func NewCore(storer Storer) *Core {
	return &Core{
		storer: storer,
	}
}

// NewWithTx constructs a new Core value replacing the Storer
// value with a Storer value that is currently inside a transaction.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, fmt.Errorf("newWithTx: %w", err)
	}

	return NewCore(storer), nil
}

// Grant adds a permission grant for the user.
func (c *Core) Grant(ctx context.Context, userID uuid.UUID, ng NewGrant) error {
	ctx, span := otel.AddSpan(ctx, "business.permbus.grant")
	defer span.End()

	if err := c.storer.Grant(ctx, userID, ng); err != nil {
		return fmt.Errorf("grant: %w", err)
	}

	return nil
}

// Revoke removes a permission grant from the user.
func (c *Core) Revoke(ctx context.Context, userID uuid.UUID, ng NewGrant) error {
	ctx, span := otel.AddSpan(ctx, "business.permbus.revoke")
	defer span.End()

	if err := c.storer.Revoke(ctx, userID, ng); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	return nil
}

// ValidateAccess reports whether the user may run the operation against
// the resource type. A nil error means allowed.
func (c *Core) ValidateAccess(ctx context.Context, check Check) error {
	ctx, span := otel.AddSpan(ctx, "business.permbus.validateAccess")
	defer span.End()

	if err := c.storer.ValidateAccess(ctx, check); err != nil {
		return fmt.Errorf("validate access: userID[%s] resource[%s] op[%s]: %w", check.UserID, check.Resource, check.Operation, err)
	}

	return nil
}

// SyncUserRole records a role change so role-wide rules apply immediately.
func (c *Core) SyncUserRole(ctx context.Context, userID uuid.UUID, r role.Role) error {
	ctx, span := otel.AddSpan(ctx, "business.permbus.syncUserRole")
	defer span.End()

	if err := c.storer.SyncUserRole(ctx, userID, r); err != nil {
		return fmt.Errorf("sync user role: %w", err)
	}

	return nil
}

// QueryGrants retrieves every grant defined in the system.
func (c *Core) QueryGrants(ctx context.Context) ([]Grant, error) {
	ctx, span := otel.AddSpan(ctx, "business.permbus.queryGrants")
	defer span.End()

	grants, err := c.storer.QueryGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}

	return grants, nil
}
