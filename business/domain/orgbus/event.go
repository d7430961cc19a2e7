package orgbus

import (
	"time"

	"github.com/google/uuid"
)

// EventTypeHierarchyChange tags every event this package emits.
const EventTypeHierarchyChange = "HIERARCHY_CHANGE"

// Set of operations carried on change events.
const (
	OpCreate     = "CREATE"
	OpUpdate     = "UPDATE"
	OpDelete     = "DELETE"
	OpSetPolicy  = "SET_POLICY"
	OpLinkTenant = "LINK_TENANT"
)

// ChangeEvent is published after a hierarchy mutation commits. Consumers
// use it to refresh caches and force token re-issue for affected sessions.
type ChangeEvent struct {
	EventType        string        `json:"eventType"`
	Operation        string        `json:"operation"`
	OrganizationID   uuid.UUID     `json:"organizationId"`
	ActorID          uuid.UUID     `json:"actorId"`
	BeforeState      *Organization `json:"beforeState,omitempty"`
	AfterState       *Organization `json:"afterState,omitempty"`
	AffectedChildren []uuid.UUID   `json:"affectedChildren,omitempty"`
	AffectedTenants  []uuid.UUID   `json:"affectedTenants,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
}
