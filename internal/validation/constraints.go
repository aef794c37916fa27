package validation

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/eugenenazirov/envsmith/internal/schema"
)

// checkConstraints returns the first violated constraint as a message, or ""
// when value passes. Nil values only reach the custom validator.
func checkConstraints(field *schema.Field, value any) string {
	c := &field.Constraints

	if value != nil {
		if pattern := c.Pattern(); pattern != nil {
			if !pattern.MatchString(display(value)) {
				return fmt.Sprintf("%s value '%s' does not match pattern '%s'", field.Name, display(value), c.Regex)
			}
		}

		if c.Choices != nil && !contains(c.Choices, value) {
			return fmt.Sprintf("%s value '%s' is not one of %v", field.Name, display(value), c.Choices)
		}

		if n, ok := number(value); ok {
			if c.Min != nil && n < *c.Min {
				return fmt.Sprintf("%s value %s is less than minimum %s", field.Name, display(value), formatLimit(*c.Min))
			}
			if c.Max != nil && n > *c.Max {
				return fmt.Sprintf("%s value %s is greater than maximum %s", field.Name, display(value), formatLimit(*c.Max))
			}
		}

		if size, ok := length(value); ok {
			if c.MinLen != nil && size < *c.MinLen {
				return fmt.Sprintf("%s length %d is less than minimum length %d", field.Name, size, *c.MinLen)
			}
			if c.MaxLen != nil && size > *c.MaxLen {
				return fmt.Sprintf("%s length %d is greater than maximum length %d", field.Name, size, *c.MaxLen)
			}
		}
	}

	if field.Validator != nil && !field.Validator(value) {
		return fmt.Sprintf("%s custom validation failed for value '%s'", field.Name, display(value))
	}
	return ""
}

func contains(choices []any, value any) bool {
	for _, choice := range choices {
		if equal(choice, value) {
			return true
		}
	}
	return false
}

// length reports the size of strings (in runes) and collections.
func length(value any) (int, bool) {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v), true
	case []any:
		return len(v), true
	case Set:
		return len(v), true
	case Tuple:
		return len(v), true
	case map[string]any:
		return len(v), true
	default:
		return 0, false
	}
}

func display(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func formatLimit(limit float64) string {
	return strconv.FormatFloat(limit, 'g', -1, 64)
}
