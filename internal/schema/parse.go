package schema

import (
	"fmt"
	"strconv"
	"strings"
)

var primitives = map[string]*Type{
	"str":   String,
	"int":   Int,
	"float": Float,
	"bool":  Bool,
	"list":  List,
	"dict":  Dict,
	"tuple": Tuple,
	"set":   Set,
}

// ParseType parses a type annotation such as "int", "list[str]",
// "dict[str, int]", "Optional[float]", "Union[int, str]" or
// `Literal["a", "b"]`. Container element types other than str, int, float
// and bool degrade to an untyped container.
func ParseType(annotation string) (*Type, error) {
	s := strings.TrimSpace(annotation)
	if t, ok := primitives[s]; ok {
		return t, nil
	}

	base, args, ok := splitGeneric(s)
	if !ok {
		return nil, fmt.Errorf("cannot parse type annotation: %q", annotation)
	}

	switch base {
	case "list":
		return ListOf(parseElem(args)), nil
	case "set":
		return SetOf(parseElem(args)), nil
	case "tuple":
		return TupleOf(parseElem(strings.TrimSuffix(strings.TrimSpace(args), ", ..."))), nil
	case "dict":
		parts := splitTopLevel(args)
		if len(parts) != 2 {
			return Dict, nil
		}
		return DictOf(parseElem(parts[0]), parseElem(parts[1])), nil
	case "Optional":
		inner, err := ParseType(args)
		if err != nil {
			return nil, fmt.Errorf("cannot parse type annotation: %q: %w", annotation, err)
		}
		return OptionalOf(inner), nil
	case "Union":
		parts := splitTopLevel(args)
		members := make([]*Type, 0, len(parts))
		for _, part := range parts {
			member, err := ParseType(part)
			if err != nil {
				return nil, fmt.Errorf("cannot parse type annotation: %q: %w", annotation, err)
			}
			members = append(members, member)
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("cannot parse type annotation: %q: union needs at least one member", annotation)
		}
		return UnionOf(members...), nil
	case "Literal":
		parts := splitTopLevel(args)
		values := make([]any, 0, len(parts))
		for _, part := range parts {
			values = append(values, parseLiteralValue(part))
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("cannot parse type annotation: %q: literal needs at least one value", annotation)
		}
		return LiteralOf(values...), nil
	default:
		return nil, fmt.Errorf("cannot parse type annotation: %q: unknown base type %q", annotation, base)
	}
}

// splitGeneric splits "base[args]" into base and args.
func splitGeneric(s string) (string, string, bool) {
	open := strings.IndexByte(s, '[')
	if open <= 0 || !strings.HasSuffix(s, "]") {
		return "", "", false
	}
	return strings.TrimSpace(s[:open]), s[open+1 : len(s)-1], true
}

// splitTopLevel splits s on commas that are not nested in brackets or quotes.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(parts) > 0 {
		parts = append(parts, last)
	}
	return parts
}

func parseElem(s string) *Type {
	t, ok := primitives[strings.TrimSpace(s)]
	if !ok || !t.IsScalar() {
		return nil
	}
	return t
}

// parseLiteralValue tries bool, int, float and finally string.
func parseLiteralValue(raw string) any {
	v := strings.Trim(strings.TrimSpace(raw), `"'`)
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
