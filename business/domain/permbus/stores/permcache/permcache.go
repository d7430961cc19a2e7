// Package permcache implements the permbus.Storer interface with a
// write-through casbin rule set in front of the database store. The rule
// set is warmed from the database at construction.
package permcache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/domain/permbus"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb"
	"github.com/lodgehub/lodgehub/business/types/role"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

// Store manages the set of APIs for permission data and caching.
type Store struct {
	log    *logger.Logger
	storer permbus.Storer
	cache  *memoryCache
}

// NewStore constructs the cached store and warms the rule set.
func NewStore(log *logger.Logger, storer permbus.Storer) (*Store, error) {
	mem, err := newMemoryCache(log)
	if err != nil {
		return nil, err
	}

	s := &Store{
		log:    log,
		storer: storer,
		cache:  mem,
	}

	// Warm-up runs at startup, outside of any request.
	if err := s.syncCache(context.Background()); err != nil {
		return nil, fmt.Errorf("sync cache: %w", err)
	}

	return s, nil
}

// NewWithTx constructs a new Store value replacing the storer value with a
// storer value that is currently inside a transaction. The rule set stays
// shared so write-through updates land.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (permbus.Storer, error) {
	storer, err := s.storer.NewWithTx(tx)
	if err != nil {
		return nil, err
	}

	return &Store{
		log:    s.log,
		storer: storer,
		cache:  s.cache,
	}, nil
}

// Grant writes the grant and mirrors it into the rule set.
func (s *Store) Grant(ctx context.Context, userID uuid.UUID, ng permbus.NewGrant) error {
	if err := s.storer.Grant(ctx, userID, ng); err != nil {
		return err
	}

	s.cache.clearResourceRules(ctx, userID, ng.Resource)
	for _, op := range ng.Operations {
		s.cache.add(ctx, userID, ng.Resource, op)
	}

	return nil
}

// Revoke removes the grant and its mirrored rules.
func (s *Store) Revoke(ctx context.Context, userID uuid.UUID, ng permbus.NewGrant) error {
	if err := s.storer.Revoke(ctx, userID, ng); err != nil {
		return err
	}

	s.cache.clearResourceRules(ctx, userID, ng.Resource)

	return nil
}

// ValidateAccess checks the in-memory rules first and falls back to the
// database, repairing the rule set on a successful fallback.
func (s *Store) ValidateAccess(ctx context.Context, check permbus.Check) error {
	if err := s.cache.check(ctx, check.UserID, check.Resource, check.Operation); err == nil {
		return nil
	}

	if err := s.storer.ValidateAccess(ctx, check); err != nil {
		return err
	}

	s.log.Info(ctx, "permcache: cache miss/repair triggered", "user_id", check.UserID, "resource", check.Resource)
	s.cache.add(ctx, check.UserID, check.Resource, check.Operation)

	return nil
}

// SyncUserRole updates the in-memory rules to reflect the user's new role
// immediately.
func (s *Store) SyncUserRole(ctx context.Context, userID uuid.UUID, r role.Role) error {
	if err := s.storer.SyncUserRole(ctx, userID, r); err != nil {
		return err
	}

	s.cache.setUserRole(ctx, userID, r)

	return nil
}

// QueryGrants retrieves every grant defined in the system.
func (s *Store) QueryGrants(ctx context.Context) ([]permbus.Grant, error) {
	return s.storer.QueryGrants(ctx)
}

// QueryUserRoles retrieves the role of every user.
func (s *Store) QueryUserRoles(ctx context.Context) (map[uuid.UUID]role.Role, error) {
	return s.storer.QueryUserRoles(ctx)
}

func (s *Store) syncCache(ctx context.Context) error {
	userRoles, err := s.storer.QueryUserRoles(ctx)
	if err != nil {
		return fmt.Errorf("fetch user roles: %w", err)
	}

	s.cache.loadRoles(ctx, userRoles)

	grants, err := s.storer.QueryGrants(ctx)
	if err != nil {
		return fmt.Errorf("fetch grants: %w", err)
	}

	for _, g := range grants {
		for _, op := range g.Operations {
			s.cache.add(ctx, g.UserID, g.Resource, op)
		}
	}

	return nil
}
