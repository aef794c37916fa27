package envfile

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// MaxExpansionDepth bounds the number of nested expansion passes.
const MaxExpansionDepth = 10

var referencePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Expander substitutes ${NAME} references.
type Expander struct {
	logger   *zap.Logger
	maxDepth int
}

// NewExpander creates an Expander. A non-positive maxDepth selects
// MaxExpansionDepth.
func NewExpander(logger *zap.Logger, maxDepth int) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDepth <= 0 {
		maxDepth = MaxExpansionDepth
	}
	return &Expander{logger: logger, maxDepth: maxDepth}
}

// fragment is a piece of the value being expanded together with the chain of
// names whose substitution produced it.
type fragment struct {
	text  string
	chain []string
}

// Expand replaces every ${NAME} in value, looking NAME up in environ first and
// loaded second. Unknown names expand to the empty string. Substituted text is
// rescanned until no references remain.
func (e *Expander) Expand(value string, loaded, environ map[string]string) (string, error) {
	fragments := []fragment{{text: value}}

	for pass := 0; ; pass++ {
		if !containsReference(fragments) {
			return joinFragments(fragments), nil
		}
		if pass >= e.maxDepth {
			return "", fmt.Errorf("%w: %q still has references after %d passes", ErrMaxDepthExceeded, value, e.maxDepth)
		}

		next := make([]fragment, 0, len(fragments))
		for _, frag := range fragments {
			expanded, err := e.expandFragment(frag, loaded, environ)
			if err != nil {
				return "", err
			}
			next = append(next, expanded...)
		}
		fragments = coalesce(next)
	}
}

// coalesce merges runs of fragments that together form a reference, so a
// marker assembled from several substitutions is expanded on the next pass.
// The merged fragment carries every name from the chains it absorbed.
func coalesce(fragments []fragment) []fragment {
	if len(fragments) < 2 {
		return fragments
	}

	starts := make([]int, len(fragments)+1)
	var b strings.Builder
	for i, frag := range fragments {
		starts[i] = b.Len()
		b.WriteString(frag.text)
	}
	starts[len(fragments)] = b.Len()

	owner := func(offset int) int {
		return sort.Search(len(fragments), func(i int) bool { return starts[i+1] > offset })
	}

	type span struct{ first, last int }
	var spans []span
	for _, m := range referencePattern.FindAllStringIndex(b.String(), -1) {
		sp := span{first: owner(m[0]), last: owner(m[1] - 1)}
		if sp.first == sp.last {
			continue
		}
		if n := len(spans); n > 0 && sp.first <= spans[n-1].last {
			spans[n-1].last = max(spans[n-1].last, sp.last)
			continue
		}
		spans = append(spans, sp)
	}
	if len(spans) == 0 {
		return fragments
	}

	out := make([]fragment, 0, len(fragments))
	next := 0
	for _, sp := range spans {
		out = append(out, fragments[next:sp.first]...)
		var merged fragment
		var text strings.Builder
		for _, frag := range fragments[sp.first : sp.last+1] {
			text.WriteString(frag.text)
			for _, name := range frag.chain {
				if !slices.Contains(merged.chain, name) {
					merged.chain = append(merged.chain, name)
				}
			}
		}
		merged.text = text.String()
		out = append(out, merged)
		next = sp.last + 1
	}
	return append(out, fragments[next:]...)
}

func (e *Expander) expandFragment(frag fragment, loaded, environ map[string]string) ([]fragment, error) {
	matches := referencePattern.FindAllStringSubmatchIndex(frag.text, -1)
	if len(matches) == 0 {
		return []fragment{frag}, nil
	}

	out := make([]fragment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		name := frag.text[m[2]:m[3]]
		chain := append(slices.Clone(frag.chain), name)
		if slices.Contains(frag.chain, name) {
			return nil, fmt.Errorf("%w: %s", ErrCircularReference, strings.Join(chain, " -> "))
		}

		if m[0] > last {
			out = append(out, fragment{text: frag.text[last:m[0]], chain: frag.chain})
		}
		out = append(out, fragment{text: e.lookup(name, loaded, environ), chain: chain})
		last = m[1]
	}
	if last < len(frag.text) {
		out = append(out, fragment{text: frag.text[last:], chain: frag.chain})
	}
	return out, nil
}

func (e *Expander) lookup(name string, loaded, environ map[string]string) string {
	if value, ok := environ[name]; ok {
		return value
	}
	if value, ok := loaded[name]; ok {
		return value
	}
	e.logger.Warn("undefined variable reference", zap.String("name", name))
	return ""
}

func containsReference(fragments []fragment) bool {
	for _, frag := range fragments {
		if referencePattern.MatchString(frag.text) {
			return true
		}
	}
	return false
}

func joinFragments(fragments []fragment) string {
	if len(fragments) == 1 {
		return fragments[0].text
	}
	var b strings.Builder
	for _, frag := range fragments {
		b.WriteString(frag.text)
	}
	return b.String()
}
