package permdb

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/domain/permbus"
	"github.com/lodgehub/lodgehub/business/sdk/sqldb/dbarray"
	"github.com/lodgehub/lodgehub/business/types/operation"
	"github.com/lodgehub/lodgehub/business/types/resource"
)

type grantDB struct {
	UserID     uuid.UUID      `db:"user_id"`
	Resource   string         `db:"resource"`
	Operations dbarray.String `db:"operations"`
}

func toDBGrant(userID uuid.UUID, res resource.Resource, ops []operation.Operation) grantDB {
	opsStr := make(dbarray.String, len(ops))
	for i, op := range ops {
		opsStr[i] = op.String()
	}

	return grantDB{
		UserID:     userID,
		Resource:   res.String(),
		Operations: opsStr,
	}
}

func toBusGrant(db grantDB) (permbus.Grant, error) {
	res, err := resource.Parse(db.Resource)
	if err != nil {
		return permbus.Grant{}, fmt.Errorf("parse resource: %w", err)
	}

	ops := make([]operation.Operation, len(db.Operations))
	for i, raw := range db.Operations {
		if ops[i], err = operation.Parse(raw); err != nil {
			return permbus.Grant{}, fmt.Errorf("parse operation: %w", err)
		}
	}

	return permbus.Grant{
		UserID:     db.UserID,
		Resource:   res,
		Operations: ops,
	}, nil
}

func toBusGrants(dbs []grantDB) ([]permbus.Grant, error) {
	bus := make([]permbus.Grant, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusGrant(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}
