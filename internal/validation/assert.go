// Package validation provides helpers for contract enforcement in constructors.
package validation

import "fmt"

// AssertNotNil panics with "<pkg>: <name> cannot be nil" if ptr is nil.
// It is meant for mandatory pointer dependencies, where a nil value is a
// programmer error rather than a runtime condition.
//
// Usage:
//
//	validation.AssertNotNil(pool, "store", "database pool")
func AssertNotNil[T any](ptr *T, pkg, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("%s: %s cannot be nil", pkg, name))
	}
}
