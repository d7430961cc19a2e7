// Package accessbus provides the access decision function. Given a parsed
// session snapshot and a (tenant, category, operation) target it returns
// allow or deny with a stable reason code. The function is pure: it never
// reaches back to the store or cache, so it is safe to call from any
// number of request goroutines without synchronization.
package accessbus

import (
	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/operation"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
)

// Set of deny reason codes.
const (
	ReasonAuthenticationRequired  = "AUTHENTICATION_REQUIRED"
	ReasonTenantAccessDenied      = "TENANT_ACCESS_DENIED"
	ReasonNoPolicyForCategory     = "NO_POLICY_FOR_CATEGORY"
	ReasonInsufficientAccessLevel = "INSUFFICIENT_ACCESS_LEVEL"
)

// Target names the data a caller wants to touch.
type Target struct {
	TenantID  uuid.UUID
	Category  datacategory.DataCategory
	Operation operation.Operation
}

// Decision is the outcome of an access check. Reason is set only on deny;
// the effective scope and level are set only on allow, for downstream
// auditing.
type Decision struct {
	Allowed        bool
	Reason         string
	EffectiveScope sharingscope.SharingScope
	EffectiveLevel accesslevel.AccessLevel
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Check evaluates one access request against the session snapshot. Each
// step short-circuits on failure, so every call terminates with exactly
// one reason code or an allow.
func Check(session Session, target Target) Decision {

	// The session must identify a tenant and carry a hierarchy context.
	// A token minted without either never reaches this point with broad
	// access: issuance substitutes the degraded own-tenant context.
	if session.TenantID == uuid.Nil || session.Hierarchy == nil {
		return deny(ReasonAuthenticationRequired)
	}

	// The target tenant must be reachable from the session's organization.
	// The actor's own tenant is guaranteed present at issuance, never
	// re-derived here.
	if !session.CanAccessTenant(target.TenantID) {
		return deny(ReasonTenantAccessDenied)
	}

	// Absence of a policy is never an implicit allow.
	policy, exists := session.Hierarchy.Policies[target.Category]
	if !exists {
		return deny(ReasonNoPolicyForCategory)
	}

	// A NONE scope blocks the category outright. Writes need FULL; reads
	// pass at any level.
	if policy.Scope.IsNone() {
		return deny(ReasonInsufficientAccessLevel)
	}
	if target.Operation.IsWrite() && !policy.Level.AllowsWrite() {
		return deny(ReasonInsufficientAccessLevel)
	}

	return Decision{
		Allowed:        true,
		EffectiveScope: policy.Scope,
		EffectiveLevel: policy.Level,
	}
}
