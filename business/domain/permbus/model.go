package permbus

import (
	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/operation"
	"github.com/lodgehub/lodgehub/business/types/resource"
)

// Grant names the operations one user may run against one resource type
// on the admin surface.
type Grant struct {
	UserID     uuid.UUID
	Resource   resource.Resource
	Operations []operation.Operation
}

// NewGrant contains information needed to create a grant.
type NewGrant struct {
	Resource   resource.Resource
	Operations []operation.Operation
}

// Check is one authorization question: may this user run this operation
// against this resource type.
type Check struct {
	UserID    uuid.UUID
	Resource  resource.Resource
	Operation operation.Operation
}
