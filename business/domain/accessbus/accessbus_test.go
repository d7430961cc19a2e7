package accessbus_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lodgehub/lodgehub/business/domain/accessbus"
	"github.com/lodgehub/lodgehub/business/types/accesslevel"
	"github.com/lodgehub/lodgehub/business/types/datacategory"
	"github.com/lodgehub/lodgehub/business/types/operation"
	"github.com/lodgehub/lodgehub/business/types/orgtype"
	"github.com/lodgehub/lodgehub/business/types/sharingscope"
)

var (
	groupOrgID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	ownTenant   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	siblingTen  = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	foreignTen  = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	sessionUser = uuid.MustParse("55555555-5555-5555-5555-555555555555")
)

func groupSession() accessbus.Session {
	return accessbus.Session{
		UserID:   sessionUser,
		TenantID: ownTenant,
		Hierarchy: &accessbus.HierarchyContext{
			OrganizationID:    groupOrgID,
			OrganizationLevel: 1,
			OrganizationType:  orgtype.Group,
			OrganizationPath:  "acme",
			Policies: map[datacategory.DataCategory]accessbus.Policy{
				datacategory.Customer:    {Scope: sharingscope.Group, Level: accesslevel.Full},
				datacategory.Reservation: {Scope: sharingscope.Group, Level: accesslevel.ReadOnly},
				datacategory.Analytics:   {Scope: sharingscope.Group, Level: accesslevel.SummaryOnly},
				datacategory.Financial:   {Scope: sharingscope.None, Level: accesslevel.SummaryOnly},
			},
		},
		AccessibleTenants: []uuid.UUID{ownTenant, siblingTen},
	}
}

func Test_Check_AllowsReachableTenantWithFullPolicy(t *testing.T) {
	decision := accessbus.Check(groupSession(), accessbus.Target{
		TenantID:  siblingTen,
		Category:  datacategory.Customer,
		Operation: operation.Update,
	})

	if !decision.Allowed {
		t.Fatalf("got deny with reason %q, want allow", decision.Reason)
	}
	if !decision.EffectiveScope.Equal(sharingscope.Group) {
		t.Errorf("got effective scope %s, want GROUP", decision.EffectiveScope)
	}
	if !decision.EffectiveLevel.Equal(accesslevel.Full) {
		t.Errorf("got effective level %s, want FULL", decision.EffectiveLevel)
	}
}

func Test_Check_DeniesUnreachableTenant(t *testing.T) {
	decision := accessbus.Check(groupSession(), accessbus.Target{
		TenantID:  foreignTen,
		Category:  datacategory.Customer,
		Operation: operation.Read,
	})

	if decision.Allowed {
		t.Fatal("got allow, want deny for an unreachable tenant")
	}
	if decision.Reason != accessbus.ReasonTenantAccessDenied {
		t.Fatalf("got reason %q, want %q", decision.Reason, accessbus.ReasonTenantAccessDenied)
	}
}

func Test_Check_DeniesMissingPolicy(t *testing.T) {
	decision := accessbus.Check(groupSession(), accessbus.Target{
		TenantID:  ownTenant,
		Category:  datacategory.Staff,
		Operation: operation.Read,
	})

	if decision.Allowed {
		t.Fatal("got allow, want deny when no policy covers the category")
	}
	if decision.Reason != accessbus.ReasonNoPolicyForCategory {
		t.Fatalf("got reason %q, want %q", decision.Reason, accessbus.ReasonNoPolicyForCategory)
	}
}

func Test_Check_DeniesWriteOnReadOnlyPolicy(t *testing.T) {
	decision := accessbus.Check(groupSession(), accessbus.Target{
		TenantID:  ownTenant,
		Category:  datacategory.Reservation,
		Operation: operation.Create,
	})

	if decision.Allowed {
		t.Fatal("got allow, want deny for a write under READ_ONLY")
	}
	if decision.Reason != accessbus.ReasonInsufficientAccessLevel {
		t.Fatalf("got reason %q, want %q", decision.Reason, accessbus.ReasonInsufficientAccessLevel)
	}

	// The same policy still serves reads.
	read := accessbus.Check(groupSession(), accessbus.Target{
		TenantID:  ownTenant,
		Category:  datacategory.Reservation,
		Operation: operation.Read,
	})
	if !read.Allowed {
		t.Fatalf("got deny with reason %q, want read allowed", read.Reason)
	}
}

func Test_Check_DeniesNoneScopeEvenForReads(t *testing.T) {
	decision := accessbus.Check(groupSession(), accessbus.Target{
		TenantID:  ownTenant,
		Category:  datacategory.Financial,
		Operation: operation.Read,
	})

	if decision.Allowed {
		t.Fatal("got allow, want deny under a NONE scope")
	}
	if decision.Reason != accessbus.ReasonInsufficientAccessLevel {
		t.Fatalf("got reason %q, want %q", decision.Reason, accessbus.ReasonInsufficientAccessLevel)
	}
}

func Test_Check_DeniesWithoutHierarchy(t *testing.T) {
	session := groupSession()
	session.Hierarchy = nil

	decision := accessbus.Check(session, accessbus.Target{
		TenantID:  ownTenant,
		Category:  datacategory.Customer,
		Operation: operation.Read,
	})

	if decision.Allowed {
		t.Fatal("got allow, want deny without a hierarchy context")
	}
	if decision.Reason != accessbus.ReasonAuthenticationRequired {
		t.Fatalf("got reason %q, want %q", decision.Reason, accessbus.ReasonAuthenticationRequired)
	}
}

func Test_Check_DeniesZeroTenantSession(t *testing.T) {
	session := groupSession()
	session.TenantID = uuid.Nil

	decision := accessbus.Check(session, accessbus.Target{
		TenantID:  ownTenant,
		Category:  datacategory.Customer,
		Operation: operation.Read,
	})

	if decision.Reason != accessbus.ReasonAuthenticationRequired {
		t.Fatalf("got reason %q, want %q", decision.Reason, accessbus.ReasonAuthenticationRequired)
	}
}

// Every (category, operation) combination must land on exactly one outcome:
// either an allow or one of the published reason codes.
func Test_Check_Totality(t *testing.T) {
	session := groupSession()

	validReasons := map[string]bool{
		accessbus.ReasonAuthenticationRequired:  true,
		accessbus.ReasonTenantAccessDenied:      true,
		accessbus.ReasonNoPolicyForCategory:     true,
		accessbus.ReasonInsufficientAccessLevel: true,
	}

	for _, category := range datacategory.All() {
		for _, op := range []operation.Operation{operation.Read, operation.Create, operation.Update, operation.Delete} {
			decision := accessbus.Check(session, accessbus.Target{
				TenantID:  ownTenant,
				Category:  category,
				Operation: op,
			})

			switch {
			case decision.Allowed && decision.Reason != "":
				t.Errorf("category %s op %s: allow carries reason %q", category, op, decision.Reason)
			case !decision.Allowed && !validReasons[decision.Reason]:
				t.Errorf("category %s op %s: unknown reason %q", category, op, decision.Reason)
			}
		}
	}
}
