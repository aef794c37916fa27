// Package validation casts environment variables to the types declared by a
// schema and checks them against the field constraints.
//
// Validate reports every failing field at once through *Error; it never stops
// at the first problem.
package validation
