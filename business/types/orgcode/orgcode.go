// Package orgcode represents an organization node code in the system. Codes
// are the path segments of the materialized path, so the character set is
// restricted and the separator is forbidden.
package orgcode

import (
	"fmt"
	"regexp"
)

// Code represents an organization code in the system.
type Code struct {
	value string
}

// String returns the value of the code.
func (c Code) String() string {
	return c.value
}

// Equal provides support for the go-cmp package and testing.
func (c Code) Equal(c2 Code) bool {
	return c.value == c2.value
}

// MarshalText provides support for logging and any marshal needs.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.value), nil
}

// =============================================================================

// codeRegEx forbids "/" so a code is always a single path segment.
var codeRegEx = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,31}$`)

// Parse parses the string value and returns a code if the value complies
// with the rules for a code.
func Parse(value string) (Code, error) {
	if !codeRegEx.MatchString(value) {
		return Code{}, fmt.Errorf("invalid organization code %q", value)
	}

	return Code{value}, nil
}

// MustParse parses the string value and returns a code if the value
// complies with the rules for a code. If an error occurs the function panics.
func MustParse(value string) Code {
	code, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return code
}
