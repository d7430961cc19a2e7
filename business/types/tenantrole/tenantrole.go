// Package tenantrole represents the role of a tenant link to an
// organization node.
package tenantrole

import "fmt"

// The set of tenant link roles that can be used.
var (
	Primary   = newTenantRole("PRIMARY")
	Secondary = newTenantRole("SECONDARY")
)

// =============================================================================

// Set of known tenant link roles.
var tenantRoles = make(map[string]TenantRole)

// TenantRole represents a tenant link role in the system.
type TenantRole struct {
	value string
}

func newTenantRole(role string) TenantRole {
	tr := TenantRole{role}
	tenantRoles[role] = tr
	return tr
}

// String returns the name of the tenant link role.
func (tr TenantRole) String() string {
	return tr.value
}

// Equal provides support for the go-cmp package and testing.
func (tr TenantRole) Equal(tr2 TenantRole) bool {
	return tr.value == tr2.value
}

// MarshalText provides support for logging and any marshal needs.
func (tr TenantRole) MarshalText() ([]byte, error) {
	return []byte(tr.value), nil
}

// =============================================================================

// Parse parses the string value and returns a tenant link role if one exists.
func Parse(value string) (TenantRole, error) {
	role, exists := tenantRoles[value]
	if !exists {
		return TenantRole{}, fmt.Errorf("invalid tenant role %q", value)
	}

	return role, nil
}

// MustParse parses the string value and returns a tenant link role if one
// exists. If an error occurs the function panics.
func MustParse(value string) TenantRole {
	role, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return role
}
