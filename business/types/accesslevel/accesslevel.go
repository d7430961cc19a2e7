// Package accesslevel represents the operation ceiling granted for a data
// category at a scope.
package accesslevel

import "fmt"

// The set of access levels that can be used.
var (
	Full          = newAccessLevel("FULL")
	ReadOnly      = newAccessLevel("READ_ONLY")
	AnalyticsOnly = newAccessLevel("ANALYTICS_ONLY")
	SummaryOnly   = newAccessLevel("SUMMARY_ONLY")
)

// =============================================================================

// Set of known access levels.
var accessLevels = make(map[string]AccessLevel)

// AccessLevel represents an access level in the system.
type AccessLevel struct {
	value string
}

func newAccessLevel(level string) AccessLevel {
	al := AccessLevel{level}
	accessLevels[level] = al
	return al
}

// String returns the name of the access level.
func (al AccessLevel) String() string {
	return al.value
}

// AllowsWrite reports whether the level permits create, update and delete
// operations. Only FULL does.
func (al AccessLevel) AllowsWrite() bool {
	return al.value == Full.value
}

// Equal provides support for the go-cmp package and testing.
func (al AccessLevel) Equal(al2 AccessLevel) bool {
	return al.value == al2.value
}

// MarshalText provides support for logging and any marshal needs.
func (al AccessLevel) MarshalText() ([]byte, error) {
	return []byte(al.value), nil
}

// =============================================================================

// Parse parses the string value and returns an access level if one exists.
func Parse(value string) (AccessLevel, error) {
	level, exists := accessLevels[value]
	if !exists {
		return AccessLevel{}, fmt.Errorf("invalid access level %q", value)
	}

	return level, nil
}

// MustParse parses the string value and returns an access level if one
// exists. If an error occurs the function panics.
func MustParse(value string) AccessLevel {
	level, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return level
}
