package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrValidation classifies every validation failure.
var ErrValidation = errors.New("validation failed")

// Error carries one message per failing field.
type Error struct {
	Fields map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Is reports Error as ErrValidation.
func (e *Error) Is(target error) bool {
	return target == ErrValidation
}
