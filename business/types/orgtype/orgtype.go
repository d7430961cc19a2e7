// Package orgtype represents the organization node type in the system.
package orgtype

import "fmt"

// The set of organization types that can be used.
var (
	Group      = newOrgType("GROUP")
	Brand      = newOrgType("BRAND")
	Hotel      = newOrgType("HOTEL")
	Department = newOrgType("DEPARTMENT")
)

// =============================================================================

// Set of known organization types.
var orgTypes = make(map[string]OrgType)

// OrgType represents an organization node type in the system.
type OrgType struct {
	value string
}

func newOrgType(orgType string) OrgType {
	ot := OrgType{orgType}
	orgTypes[orgType] = ot
	return ot
}

// String returns the name of the organization type.
func (ot OrgType) String() string {
	return ot.value
}

// Equal provides support for the go-cmp package and testing.
func (ot OrgType) Equal(ot2 OrgType) bool {
	return ot.value == ot2.value
}

// MarshalText provides support for logging and any marshal needs.
func (ot OrgType) MarshalText() ([]byte, error) {
	return []byte(ot.value), nil
}

// =============================================================================

// Parse parses the string value and returns an organization type if one exists.
func Parse(value string) (OrgType, error) {
	orgType, exists := orgTypes[value]
	if !exists {
		return OrgType{}, fmt.Errorf("invalid organization type %q", value)
	}

	return orgType, nil
}

// MustParse parses the string value and returns an organization type if one
// exists. If an error occurs the function panics.
func MustParse(value string) OrgType {
	orgType, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return orgType
}
