// Package sharingscope represents the organizational breadth at which a
// data category is visible.
package sharingscope

import "fmt"

// The set of sharing scopes that can be used.
var (
	Group      = newSharingScope("GROUP")
	Brand      = newSharingScope("BRAND")
	Hotel      = newSharingScope("HOTEL")
	Department = newSharingScope("DEPARTMENT")
	None       = newSharingScope("NONE")
)

// =============================================================================

// Set of known sharing scopes.
var sharingScopes = make(map[string]SharingScope)

// SharingScope represents a sharing scope in the system.
type SharingScope struct {
	value string
}

func newSharingScope(scope string) SharingScope {
	ss := SharingScope{scope}
	sharingScopes[scope] = ss
	return ss
}

// String returns the name of the sharing scope.
func (ss SharingScope) String() string {
	return ss.value
}

// IsNone reports whether the scope blocks all visibility.
func (ss SharingScope) IsNone() bool {
	return ss.value == None.value
}

// Equal provides support for the go-cmp package and testing.
func (ss SharingScope) Equal(ss2 SharingScope) bool {
	return ss.value == ss2.value
}

// MarshalText provides support for logging and any marshal needs.
func (ss SharingScope) MarshalText() ([]byte, error) {
	return []byte(ss.value), nil
}

// =============================================================================

// Parse parses the string value and returns a sharing scope if one exists.
func Parse(value string) (SharingScope, error) {
	scope, exists := sharingScopes[value]
	if !exists {
		return SharingScope{}, fmt.Errorf("invalid sharing scope %q", value)
	}

	return scope, nil
}

// MustParse parses the string value and returns a sharing scope if one
// exists. If an error occurs the function panics.
func MustParse(value string) SharingScope {
	scope, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return scope
}
