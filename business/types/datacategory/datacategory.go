// Package datacategory represents the business data classes whose sharing
// is policy controlled.
package datacategory

import "fmt"

// The set of data categories that can be used.
var (
	Customer    = newDataCategory("CUSTOMER")
	Reservation = newDataCategory("RESERVATION")
	Analytics   = newDataCategory("ANALYTICS")
	Financial   = newDataCategory("FINANCIAL")
	Staff       = newDataCategory("STAFF")
	Inventory   = newDataCategory("INVENTORY")
)

// =============================================================================

// Set of known data categories.
var dataCategories = make(map[string]DataCategory)

// ordered keeps the declaration order for All.
var ordered []DataCategory

// DataCategory represents a data category in the system.
type DataCategory struct {
	value string
}

func newDataCategory(category string) DataCategory {
	dc := DataCategory{category}
	dataCategories[category] = dc
	ordered = append(ordered, dc)
	return dc
}

// All returns the complete set of data categories in declaration order.
func All() []DataCategory {
	all := make([]DataCategory, len(ordered))
	copy(all, ordered)
	return all
}

// String returns the name of the data category.
func (dc DataCategory) String() string {
	return dc.value
}

// Equal provides support for the go-cmp package and testing.
func (dc DataCategory) Equal(dc2 DataCategory) bool {
	return dc.value == dc2.value
}

// MarshalText provides support for logging and any marshal needs.
func (dc DataCategory) MarshalText() ([]byte, error) {
	return []byte(dc.value), nil
}

// =============================================================================

// Parse parses the string value and returns a data category if one exists.
func Parse(value string) (DataCategory, error) {
	category, exists := dataCategories[value]
	if !exists {
		return DataCategory{}, fmt.Errorf("invalid data category %q", value)
	}

	return category, nil
}

// MustParse parses the string value and returns a data category if one
// exists. If an error occurs the function panics.
func MustParse(value string) DataCategory {
	category, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return category
}
