// Package output renders variable mappings as a table, JSON or env-file text.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Format selects a renderer.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatEnv   Format = "env"
)

const (
	keyColumnWidth = 30
	maxValueWidth  = 50
	ruleWidth      = 50
)

// ErrUnknownFormat is returned for format names other than table, json and env.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the accepted format names.
func Formats() []string {
	return []string{string(FormatTable), string(FormatJSON), string(FormatEnv)}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatTable, FormatJSON, FormatEnv:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Strings widens a string mapping for Write.
func Strings(values map[string]string) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}

// Write renders data to w in the given format. Keys are written in sorted
// order. The title is only used by the table format.
func Write(w io.Writer, format Format, title string, data map[string]any) error {
	switch format {
	case FormatTable:
		return writeTable(w, title, data)
	case FormatJSON:
		return writeJSON(w, data)
	case FormatEnv:
		return writeEnv(w, data)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func writeTable(w io.Writer, title string, data map[string]any) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", title)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", runewidth.StringWidth(title)+2))
	fmt.Fprintf(&b, "%s %s\n", runewidth.FillRight("Key", keyColumnWidth), "Value")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", ruleWidth))

	for _, key := range sortedKeys(data) {
		value, err := text(data[key])
		if err != nil {
			return fmt.Errorf("render %s: %w", key, err)
		}
		value = runewidth.Truncate(value, maxValueWidth, "...")
		fmt.Fprintf(&b, "%s %s\n", runewidth.FillRight(key, keyColumnWidth), value)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeEnv(w io.Writer, data map[string]any) error {
	var b strings.Builder
	for _, key := range sortedKeys(data) {
		var value string
		switch v := data[key].(type) {
		case string:
			if strings.ContainsAny(v, "\"\n") {
				value = "'" + v + "'"
			} else {
				value = `"` + v + `"`
			}
		default:
			encoded, err := compactJSON(v)
			if err != nil {
				return fmt.Errorf("render %s: %w", key, err)
			}
			value = encoded
		}
		fmt.Fprintf(&b, "%s=%s\n", key, value)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// text renders strings verbatim and everything else as compact JSON.
func text(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return compactJSON(value)
}

func compactJSON(value any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
