package permcache

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/operation"
	"github.com/lodgehub/lodgehub/business/types/resource"
	"github.com/lodgehub/lodgehub/business/types/role"
	"github.com/lodgehub/lodgehub/foundation/logger"
)

const casbinModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, "ROLE:ADMIN") || (g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act)
`

type memoryCache struct {
	log      *logger.Logger
	enforcer *casbin.Enforcer
}

func newMemoryCache(log *logger.Logger) (*memoryCache, error) {
	m, err := model.NewModelFromString(casbinModel)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	return &memoryCache{
		log:      log,
		enforcer: e,
	}, nil
}

// add inserts a grant rule. Failures are logged, never fatal.
func (c *memoryCache) add(ctx context.Context, userID uuid.UUID, res resource.Resource, op operation.Operation) {
	sub := userID.String()
	obj := res.String()
	act := op.String()

	if _, err := c.enforcer.AddPolicy(sub, obj, act); err != nil {
		c.log.Error(ctx, "permcache: casbin add policy failed", "sub", sub, "obj", obj, "act", act, "err", err)
	}
}

// clearResourceRules removes the user's rules for one resource type.
func (c *memoryCache) clearResourceRules(ctx context.Context, userID uuid.UUID, res resource.Resource) {
	sub := userID.String()
	obj := res.String()

	if _, err := c.enforcer.RemoveFilteredPolicy(0, sub, obj); err != nil {
		c.log.Error(ctx, "permcache: casbin clear resource rules failed", "sub", sub, "obj", obj, "err", err)
	}
}

// check validates permission against the in-memory rule set.
func (c *memoryCache) check(ctx context.Context, userID uuid.UUID, res resource.Resource, op operation.Operation) error {
	ok, err := c.enforcer.Enforce(userID.String(), res.String(), op.String())
	if err != nil {
		return fmt.Errorf("enforce: %w", err)
	}
	if !ok {
		return fmt.Errorf("denied in cache")
	}

	return nil
}

// loadRoles populates the role grouping rules.
func (c *memoryCache) loadRoles(ctx context.Context, userRoles map[uuid.UUID]role.Role) {
	for uid, r := range userRoles {
		c.setUserRole(ctx, uid, r)
	}
}

// setUserRole replaces the user's role grouping rule.
func (c *memoryCache) setUserRole(ctx context.Context, userID uuid.UUID, r role.Role) {
	sub := userID.String()
	roleName := "ROLE:" + strings.ToUpper(r.String())

	if _, err := c.enforcer.RemoveFilteredGroupingPolicy(0, sub); err != nil {
		c.log.Error(ctx, "permcache: casbin failed to remove old role", "sub", sub, "err", err)
	}

	if _, err := c.enforcer.AddGroupingPolicy(sub, roleName); err != nil {
		c.log.Error(ctx, "permcache: casbin failed to set new role", "sub", sub, "role", roleName, "err", err)
	}
}
