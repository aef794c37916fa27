package schema

import (
	"regexp"
	"slices"
)

// ValidatorFunc is a custom predicate over a cast value.
type ValidatorFunc func(value any) bool

// TransformFunc maps a cast value to the value stored in the result.
type TransformFunc func(value any) (any, error)

// Constraints restrict the accepted values of a field. Nil pointers and a nil
// Choices slice mean "no constraint".
type Constraints struct {
	Regex   string
	Choices []any
	Min     *float64
	Max     *float64
	MinLen  *int
	MaxLen  *int

	pattern *regexp.Regexp
}

// Pattern returns the compiled Regex anchored at the start of the value, or
// nil when no regex is set. It is populated by Normalize.
func (c *Constraints) Pattern() *regexp.Regexp {
	return c.pattern
}

func (c *Constraints) compile() error {
	if c.Regex == "" {
		c.pattern = nil
		return nil
	}
	pattern, err := regexp.Compile(`^(?:` + c.Regex + `)`)
	if err != nil {
		return err
	}
	c.pattern = pattern
	return nil
}

// Field describes one environment variable. When both Required and Default
// are set, Required wins.
type Field struct {
	Name        string
	Type        *Type
	Required    bool
	Default     any
	Description string
	Constraints Constraints
	Validator   ValidatorFunc
	Transform   TransformFunc
}

// HasDefault reports whether a default value is declared.
func (f *Field) HasDefault() bool {
	return f.Default != nil
}

// Schema maps variable names to fields.
type Schema map[string]*Field

// Names returns the field names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Float64 returns a pointer to v, for building Constraints literals.
func Float64(v float64) *float64 {
	return &v
}

// Length returns a pointer to v, for building Constraints literals.
func Length(v int) *int {
	return &v
}
