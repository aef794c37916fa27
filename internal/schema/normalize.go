package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"go.uber.org/zap"
)

var knownOptions = map[string]struct{}{
	"type":        {},
	"required":    {},
	"default":     {},
	"description": {},
	"regex":       {},
	"choices":     {},
	"min":         {},
	"max":         {},
	"min_len":     {},
	"max_len":     {},
	"validator":   {},
	"transform":   {},
}

var errNotMapping = errors.New("schema must be a mapping")

// Normalize converts a shorthand or extended schema into a Schema. raw may be
// a Schema, a map[string]any or a map[any]any as produced by YAML decoding.
// Every field is checked before failing; the returned *Error lists one
// message per invalid field.
func Normalize(raw any, logger *zap.Logger) (Schema, error) {
	return normalize(raw, "", logger)
}

func normalize(raw any, source string, logger *zap.Logger) (Schema, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &normalizer{source: source, logger: logger, problems: make(map[string]string)}

	out := make(Schema)
	switch tree := raw.(type) {
	case Schema:
		for name, field := range tree {
			if f, ok := n.checkField(name, field); ok {
				out[name] = f
			}
		}
	case map[string]any:
		for name, value := range tree {
			if f, ok := n.field(name, value); ok {
				out[name] = f
			}
		}
	case map[any]any:
		for key, value := range tree {
			name, ok := key.(string)
			if !ok {
				n.fail(fmt.Sprint(key), "schema keys must be strings, got %T", key)
				continue
			}
			if f, ok := n.field(name, value); ok {
				out[name] = f
			}
		}
	default:
		return nil, &Error{Source: source, Err: fmt.Errorf("%w, got %T", errNotMapping, raw)}
	}

	if len(n.problems) > 0 {
		return nil, &Error{Source: source, Fields: n.problems}
	}
	logger.Debug("normalized schema", zap.Int("fields", len(out)), zap.String("source", source))
	return out, nil
}

type normalizer struct {
	source   string
	logger   *zap.Logger
	problems map[string]string
}

func (n *normalizer) fail(name, format string, args ...any) {
	if _, exists := n.problems[name]; exists {
		return
	}
	n.problems[name] = fmt.Sprintf(format, args...)
}

func (n *normalizer) field(name string, value any) (*Field, bool) {
	switch v := value.(type) {
	case *Type:
		if v == nil {
			n.fail(name, "type must not be nil")
			return nil, false
		}
		return &Field{Name: name, Type: v}, true
	case string:
		t, err := ParseType(v)
		if err != nil {
			n.fail(name, "invalid type annotation: %v", err)
			return nil, false
		}
		return &Field{Name: name, Type: t}, true
	case *Field:
		return n.checkField(name, v)
	case map[string]any:
		return n.extended(name, v)
	case map[any]any:
		opts := make(map[string]any, len(v))
		for key, option := range v {
			optName, ok := key.(string)
			if !ok {
				n.fail(name, "option names must be strings, got %T", key)
				return nil, false
			}
			opts[optName] = option
		}
		return n.extended(name, opts)
	default:
		n.fail(name, "invalid schema value of type %T", value)
		return nil, false
	}
}

func (n *normalizer) extended(name string, opts map[string]any) (*Field, bool) {
	for option := range opts {
		if _, ok := knownOptions[option]; !ok {
			n.logger.Warn("unknown schema field",
				zap.String("field", name),
				zap.String("option", option),
				zap.String("source", n.source),
			)
		}
	}

	rawType, ok := opts["type"]
	if !ok {
		n.fail(name, "missing 'type'")
		return nil, false
	}

	f := &Field{Name: name}
	switch t := rawType.(type) {
	case *Type:
		f.Type = t
	case string:
		parsed, err := ParseType(t)
		if err != nil {
			n.fail(name, "invalid type annotation: %v", err)
			return nil, false
		}
		f.Type = parsed
	default:
		n.fail(name, "type must be a type annotation string or *schema.Type, got %T", rawType)
		return nil, false
	}

	if v, ok := opts["required"]; ok {
		required, isBool := v.(bool)
		if !isBool {
			n.fail(name, "required must be boolean, got %T", v)
			return nil, false
		}
		f.Required = required
	}

	f.Default = opts["default"]

	if v, ok := opts["description"]; ok && v != nil {
		f.Description = fmt.Sprint(v)
	}

	if v, ok := opts["regex"]; ok {
		regex, isString := v.(string)
		if !isString {
			n.fail(name, "regex must be string, got %T", v)
			return nil, false
		}
		f.Constraints.Regex = regex
	}

	if v, ok := opts["choices"]; ok {
		choices, isList := toList(v)
		if !isList {
			n.fail(name, "choices must be a list, got %T", v)
			return nil, false
		}
		f.Constraints.Choices = choices
	}

	for _, option := range []string{"min", "max"} {
		v, ok := opts[option]
		if !ok {
			continue
		}
		number, isNumber := toFloat(v)
		if !isNumber {
			n.fail(name, "%s must be numeric, got %T", option, v)
			return nil, false
		}
		if option == "min" {
			f.Constraints.Min = &number
		} else {
			f.Constraints.Max = &number
		}
	}

	for _, option := range []string{"min_len", "max_len"} {
		v, ok := opts[option]
		if !ok {
			continue
		}
		number, isNumber := toFloat(v)
		if !isNumber {
			n.fail(name, "%s must be numeric, got %T", option, v)
			return nil, false
		}
		if number != math.Trunc(number) {
			n.fail(name, "%s must be an integer, got %v", option, number)
			return nil, false
		}
		length := int(number)
		if option == "min_len" {
			f.Constraints.MinLen = &length
		} else {
			f.Constraints.MaxLen = &length
		}
	}

	if v, ok := opts["validator"]; ok {
		validator, isFunc := toValidator(v)
		if !isFunc {
			n.fail(name, "validator must be callable, got %T", v)
			return nil, false
		}
		f.Validator = validator
	}

	if v, ok := opts["transform"]; ok {
		transform, isFunc := toTransform(v)
		if !isFunc {
			n.fail(name, "transform must be callable, got %T", v)
			return nil, false
		}
		f.Transform = transform
	}

	return n.checkField(name, f)
}

// checkField validates invariants shared by every field form and compiles
// the regex constraint.
func (n *normalizer) checkField(name string, f *Field) (*Field, bool) {
	if f == nil || f.Type == nil {
		n.fail(name, "missing 'type'")
		return nil, false
	}
	if f.Constraints.Choices != nil && len(f.Constraints.Choices) == 0 {
		n.fail(name, "choices cannot be empty")
		return nil, false
	}

	out := *f
	out.Name = name
	if err := out.Constraints.compile(); err != nil {
		n.fail(name, "invalid regex %q: %v", out.Constraints.Regex, err)
		return nil, false
	}
	return &out, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toValidator(v any) (ValidatorFunc, bool) {
	switch fn := v.(type) {
	case ValidatorFunc:
		return fn, fn != nil
	case func(any) bool:
		return fn, fn != nil
	default:
		return nil, false
	}
}

func toTransform(v any) (TransformFunc, bool) {
	switch fn := v.(type) {
	case TransformFunc:
		return fn, fn != nil
	case func(any) (any, error):
		return fn, fn != nil
	case func(any) any:
		if fn == nil {
			return nil, false
		}
		return func(value any) (any, error) { return fn(value), nil }, true
	default:
		return nil, false
	}
}
