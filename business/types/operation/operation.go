// Package operation represents the operation type in the system.
package operation

import "fmt"

// The set of operations that can be used.
var (
	Read   = newOperation("READ")
	Create = newOperation("CREATE")
	Update = newOperation("UPDATE")
	Delete = newOperation("DELETE")
)

// =============================================================================

// Set of known operations.
var operations = make(map[string]Operation)

// Operation represents an operation in the system.
type Operation struct {
	value string
}

func newOperation(operation string) Operation {
	op := Operation{operation}
	operations[operation] = op
	return op
}

// String returns the name of the operation.
func (op Operation) String() string {
	return op.value
}

// IsWrite reports whether the operation mutates data.
func (op Operation) IsWrite() bool {
	return op.value != Read.value
}

// Equal provides support for the go-cmp package and testing.
func (op Operation) Equal(op2 Operation) bool {
	return op.value == op2.value
}

// MarshalText provides support for logging and any marshal needs.
func (op Operation) MarshalText() ([]byte, error) {
	return []byte(op.value), nil
}

// =============================================================================

// Parse parses the string value and returns an operation if one exists.
func Parse(value string) (Operation, error) {
	operation, exists := operations[value]
	if !exists {
		return Operation{}, fmt.Errorf("invalid operation %q", value)
	}

	return operation, nil
}

// MustParse parses the string value and returns an operation if one exists.
// If an error occurs the function panics.
func MustParse(value string) Operation {
	operation, err := Parse(value)
	if err != nil {
		panic(err)
	}

	return operation
}
