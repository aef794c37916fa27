package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrSchema classifies every structurally invalid schema.
var ErrSchema = errors.New("schema error")

// Error reports schema problems. Fields holds one message per offending
// field; Err holds a problem with the schema as a whole.
type Error struct {
	Source string
	Fields map[string]string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(ErrSchema.Error())
	if e.Source != "" {
		fmt.Fprintf(&b, " in %s", e.Source)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	for i, name := range names {
		if i == 0 && e.Err == nil {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %s", name, e.Fields[name])
	}
	return b.String()
}

// Unwrap exposes the schema-wide cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports Error as ErrSchema.
func (e *Error) Is(target error) bool {
	return target == ErrSchema
}
