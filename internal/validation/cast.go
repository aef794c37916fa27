package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/eugenenazirov/envsmith/internal/schema"
)

var (
	errUnsupportedType = errors.New("unsupported type")
	errTrailingData    = errors.New("unexpected data after JSON value")
)

// Cast converts raw to the Go representation of t. The literals "none",
// "null" and "" (any case) become nil unless t is exactly str.
func Cast(raw string, t *schema.Type) (any, error) {
	if t == nil {
		return nil, errUnsupportedType
	}
	if t.Kind != schema.KindString && isNullLiteral(raw) {
		return nil, nil
	}

	switch t.Kind {
	case schema.KindString:
		return raw, nil
	case schema.KindInt:
		return castInt(raw)
	case schema.KindFloat:
		return castFloat(raw)
	case schema.KindBool:
		return castBool(raw)
	case schema.KindList:
		items, err := castSequence(raw, t.Elem, false)
		if err != nil {
			return nil, err
		}
		return items, nil
	case schema.KindSet:
		items, err := castSequence(raw, t.Elem, false)
		if err != nil {
			return nil, err
		}
		return newSet(items), nil
	case schema.KindTuple:
		items, err := castSequence(raw, t.Elem, true)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	case schema.KindDict:
		return castDict(raw)
	case schema.KindOptional, schema.KindUnion:
		return castUnion(raw, t)
	case schema.KindLiteral:
		return castLiteral(raw, t.Values)
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedType, t)
	}
}

func isNullLiteral(raw string) bool {
	switch strings.ToLower(raw) {
	case "none", "null", "":
		return true
	default:
		return false
	}
}

func castInt(raw string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("cannot convert %q to int", raw)
	}
	return i, nil
}

func castFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %q to float", raw)
	}
	return f, nil
}

func castBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no":
		return false, nil
	default:
		return false, fmt.Errorf("cannot convert %q to bool", raw)
	}
}

// castSequence reads a JSON array when raw is bracketed and falls back to a
// comma-separated list otherwise. Tuples also accept a parenthesized list.
func castSequence(raw string, elem *schema.Type, tuple bool) ([]any, error) {
	value := strings.TrimSpace(raw)

	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		var decoded []any
		if err := decodeJSON(value, &decoded); err == nil {
			items := make([]any, len(decoded))
			for i, item := range decoded {
				coerced, err := coerce(plain(item), elem)
				if err != nil {
					return nil, fmt.Errorf("item %d: %w", i, err)
				}
				items[i] = coerced
			}
			return items, nil
		}
	}
	if tuple && strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		value = value[1 : len(value)-1]
	}

	items := make([]any, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if elem == nil {
			items = append(items, part)
			continue
		}
		item, err := Cast(part, elem)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func castDict(raw string) (map[string]any, error) {
	value := strings.TrimSpace(raw)
	if !strings.HasPrefix(value, "{") || !strings.HasSuffix(value, "}") {
		return nil, fmt.Errorf("dict values must be valid JSON: %s", raw)
	}
	var decoded map[string]any
	if err := decodeJSON(value, &decoded); err != nil {
		return nil, fmt.Errorf("cannot parse %q as JSON dict: %w", raw, err)
	}
	return plain(decoded).(map[string]any), nil
}

func castUnion(raw string, t *schema.Type) (any, error) {
	for _, member := range t.Members {
		if v, err := Cast(raw, member); err == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %q to any of %s", raw, t)
}

func castLiteral(raw string, values []any) (any, error) {
	for _, want := range values {
		var (
			got any
			err error
		)
		switch want.(type) {
		case bool:
			got, err = castBool(raw)
		case int:
			got, err = castInt(raw)
		case float64:
			got, err = castFloat(raw)
		default:
			got = raw
		}
		if err == nil && equal(got, want) {
			return want, nil
		}
	}
	return nil, fmt.Errorf("%q is not one of the literal values %v", raw, values)
}

func decodeJSON(value string, target any) error {
	decoder := json.NewDecoder(bytes.NewReader([]byte(value)))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	var extra any
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

// plain replaces json.Number with int when integral and float64 otherwise.
func plain(v any) any {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return int(i)
		}
		f, _ := value.Float64()
		return f
	case map[string]any:
		for key, item := range value {
			value[key] = plain(item)
		}
		return value
	case []any:
		for i, item := range value {
			value[i] = plain(item)
		}
		return value
	default:
		return v
	}
}

// coerce converts a JSON-decoded element to elem. A nil elem keeps the value.
func coerce(v any, elem *schema.Type) (any, error) {
	if elem == nil || v == nil {
		return v, nil
	}

	switch elem.Kind {
	case schema.KindString:
		switch value := v.(type) {
		case string:
			return value, nil
		case int, float64, bool:
			return fmt.Sprint(value), nil
		}
	case schema.KindInt:
		switch value := v.(type) {
		case int:
			return value, nil
		case float64:
			if value == math.Trunc(value) {
				return int(value), nil
			}
		case string:
			return castInt(value)
		}
	case schema.KindFloat:
		switch value := v.(type) {
		case int:
			return float64(value), nil
		case float64:
			return value, nil
		case string:
			return castFloat(value)
		}
	case schema.KindBool:
		switch value := v.(type) {
		case bool:
			return value, nil
		case string:
			return castBool(value)
		}
	}
	return nil, fmt.Errorf("cannot convert %v to %s", v, elem)
}
