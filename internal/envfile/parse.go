package envfile

import "strings"

// Pair is one parsed KEY=VALUE entry.
type Pair struct {
	Key   string
	Value string
}

// ParseLine parses a single env file line. It returns ok=false for blank and
// comment lines and an *InvalidLineError when the line has no '=' or an empty
// key.
func ParseLine(line string) (pair Pair, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Pair{}, false, nil
	}

	rawKey, rawValue, found := strings.Cut(line, "=")
	if !found {
		return Pair{}, false, &InvalidLineError{Text: line, Reason: "invalid line format (missing '=')"}
	}

	key := strings.TrimSpace(rawKey)
	if key == "" {
		return Pair{}, false, &InvalidLineError{Text: line, Reason: "empty key"}
	}

	return Pair{Key: key, Value: unquote(strings.TrimSpace(rawValue))}, true, nil
}

// unquote strips a matching pair of quotes and processes escapes. The
// replacements run in sequence with \\ last; "\\n" therefore decodes to a
// backslash followed by a newline.
func unquote(value string) string {
	if len(value) < 2 {
		return value
	}

	quote := value[0]
	if (quote != '"' && quote != '\'') || value[len(value)-1] != quote {
		return value
	}

	inner := value[1 : len(value)-1]
	inner = strings.ReplaceAll(inner, `\`+string(quote), string(quote))
	inner = strings.ReplaceAll(inner, `\n`, "\n")
	inner = strings.ReplaceAll(inner, `\t`, "\t")
	inner = strings.ReplaceAll(inner, `\\`, `\`)
	return inner
}
