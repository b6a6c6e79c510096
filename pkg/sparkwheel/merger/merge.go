// Package merger implements sparkwheel's layered-configuration merge
// (spec.md §4.2): an ordered list of raw trees folded into one, honoring
// the `=` (replace) and `~` (delete) key-prefix operators and the
// default compose policy (map recursive-merge, sequence append, scalar
// replace).
//
// Grounded on the example corpus's pkg/graft/merger package: the
// Merger/MultiError shape, the path-qualified ansi-colored diagnostics,
// and the DEBUG-logged recursive descent all follow graft's
// merger/merge.go directly. graft's own vocabulary is a family of
// `(( merge ))`/`(( replace ))`/`(( append ))` *list* operators; ours is
// the simpler `=K`/`~K` *key-prefix* vocabulary spec.md defines, so the
// operator-detection and list-surgery logic is rewritten rather than
// copied, but the overall shape (accumulate into a MultiError, recurse
// with a growing path for diagnostics) is unchanged.
package merger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/geofffranks/yaml"
	"github.com/starkandwayne/goutils/ansi"

	"github.com/project-lighter/sparkwheel/internal/swlog"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/path"
)

// MultiError aggregates every diagnostic produced during one merge,
// grounded on pkg/graft/errors.go's MultiError.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = fmt.Sprintf(" - %s", err)
	}
	sort.Strings(msgs)
	return fmt.Sprintf("%d merge error(s) detected:\n%s", len(e.Errors), strings.Join(msgs, "\n"))
}

// Append records err, flattening nested MultiErrors.
func (e *MultiError) Append(err error) {
	if err == nil {
		return
	}
	if nested, ok := err.(MultiError); ok {
		e.Errors = append(e.Errors, nested.Errors...)
		return
	}
	e.Errors = append(e.Errors, err)
}

// Count returns the number of recorded errors.
func (e *MultiError) Count() int { return len(e.Errors) }

type op int

const (
	opCompose op = iota
	opReplace
	opDelete
)

// Merger accumulates diagnostics while folding raw trees together.
// A sequence under a key with no operator is always appended to; there
// is no knob to change that policy.
type Merger struct {
	Errors MultiError
}

// Merge folds layers in order into a single tree, applying compose by
// default and the `=`/`~` prefix operators where present. It is pure:
// it never evaluates references or expressions, and never inspects
// instantiation directive keys (spec.md §4.2's closing paragraph).
func Merge(layers ...map[string]interface{}) (map[string]interface{}, error) {
	m := &Merger{}
	result := map[string]interface{}{}
	for _, layer := range layers {
		result = m.mergeMap(result, layer, path.Root())
	}
	if err := m.Error(); err != nil {
		return nil, err
	}
	return result, nil
}

// Error returns the accumulated MultiError, or nil if merging was clean.
func (m *Merger) Error() error {
	if m.Errors.Count() > 0 {
		return m.Errors
	}
	return nil
}

func (m *Merger) mergeMap(base map[string]interface{}, next map[string]interface{}, at path.Identifier) map[string]interface{} {
	if base == nil {
		base = map[string]interface{}{}
	}

	keys := make([]string, 0, len(next))
	for k := range next {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		val := next[rawKey]
		o, key := splitOperator(rawKey)
		childPath := at.AppendKey(key)

		switch o {
		case opReplace:
			if _, exists := base[key]; !exists {
				m.Errors.Append(ansi.Errorf("@m{%s}: @R{cannot} @c{=%s} @R{a key that does not exist in the base configuration}", childPath, key))
				continue
			}
			swlog.DEBUG("%s: replacing (=%s) with override value", childPath, key)
			base[key] = deepCopy(val)

		case opDelete:
			m.applyDelete(base, key, val, childPath)

		default:
			if existing, exists := base[key]; exists {
				swlog.DEBUG("%s: composing with existing value", childPath)
				base[key] = m.mergeValue(existing, val, childPath)
			} else {
				swlog.DEBUG("%s: no existing value, adding override as-is", childPath)
				base[key] = deepCopy(val)
			}
		}
	}

	return base
}

func (m *Merger) mergeValue(base, next interface{}, at path.Identifier) interface{} {
	switch n := next.(type) {
	case map[string]interface{}:
		if b, ok := base.(map[string]interface{}); ok {
			return m.mergeMap(b, n, at)
		}
		if base == nil {
			return m.mergeMap(map[string]interface{}{}, n, at)
		}
		swlog.DEBUG("%s: replacing with mapping override (base was not a mapping)", at)
		return deepCopy(n)

	case []interface{}:
		if base == nil {
			return deepCopy(n)
		}
		b, ok := base.([]interface{})
		if !ok {
			m.Errors.Append(ansi.Errorf("@m{%s}: @R{cannot append: base value is} @c{%T}@R{, not a sequence}", at, base))
			return base
		}
		merged := make([]interface{}, 0, len(b)+len(n))
		merged = append(merged, b...)
		for _, v := range n {
			merged = append(merged, deepCopy(v))
		}
		return merged

	default:
		return deepCopy(next)
	}
}

// applyDelete implements the `~K` operator's three forms (spec.md §4.2).
func (m *Merger) applyDelete(base map[string]interface{}, key string, directive interface{}, at path.Identifier) {
	if isNullOrEmpty(directive) {
		swlog.DEBUG("%s: deleting key (idempotent)", at)
		delete(base, key)
		return
	}

	list, ok := directive.([]interface{})
	if !ok {
		m.Errors.Append(ansi.Errorf("@m{%s}: @R{~%s must be null, empty, or a list of indices/keys}", at, key))
		return
	}

	current, exists := base[key]
	if !exists {
		// Only the null/empty form is idempotent against an absent key
		// (spec.md §4.2 Validation); a key-list form names specific
		// entries to remove, so the key itself must already exist.
		m.Errors.Append(ansi.Errorf("@m{%s}: @R{cannot} @c{~%s} @R{a key that does not exist in the base configuration}", at, key))
		return
	}

	switch c := current.(type) {
	case []interface{}:
		indices := map[int]bool{}
		for _, item := range list {
			idx, ok := asInt(item)
			if !ok {
				m.Errors.Append(ansi.Errorf("@m{%s}: @R{~%s list entry} @c{%v} @R{is not an index}", at, key, item))
				return
			}
			if idx < 0 {
				idx += len(c)
			}
			indices[idx] = true
		}
		sorted := make([]int, 0, len(indices))
		for i := range indices {
			sorted = append(sorted, i)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

		result := append([]interface{}{}, c...)
		for _, idx := range sorted {
			if idx < 0 || idx >= len(result) {
				continue
			}
			result = append(result[:idx], result[idx+1:]...)
		}
		base[key] = result

	case map[string]interface{}:
		for _, item := range list {
			name, ok := item.(string)
			if !ok {
				m.Errors.Append(ansi.Errorf("@m{%s}: @R{~%s list entry} @c{%v} @R{is not a child key name}", at, key, item))
				return
			}
			if _, ok := c[name]; !ok {
				m.Errors.Append(ansi.Errorf("@m{%s}: @R{~%s: child key} @c{%q} @R{does not exist}", at, key, name))
				continue
			}
			delete(c, name)
		}

	default:
		m.Errors.Append(ansi.Errorf("@m{%s}: @R{~%s with a list requires} @c{%s} @R{to be a sequence or mapping}", at, key, key))
	}
}

func isNullOrEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case []interface{}:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// splitOperator separates a raw override-tree key into its operator
// and the underlying key name.
func splitOperator(raw string) (op, string) {
	if strings.HasPrefix(raw, "=") {
		return opReplace, strings.TrimPrefix(raw, "=")
	}
	if strings.HasPrefix(raw, "~") {
		return opDelete, strings.TrimPrefix(raw, "~")
	}
	return opCompose, raw
}

// OverrideTree translates a list of `[~|=]<identifier>=<literal>` CLI
// override strings (spec.md §4.2/§6) into a single raw tree suitable for
// merging as the final (highest-priority) layer passed to Merge.
func OverrideTree(overrides []string) (map[string]interface{}, error) {
	m := &Merger{}
	root := map[string]interface{}{}

	// Fold without interpreting operators, so each `=`/`~` leaf key is
	// kept as-is for the later Merge to apply.
	var fold func(dst, src map[string]interface{})
	fold = func(dst, src map[string]interface{}) {
		for k, v := range src {
			if sub, ok := v.(map[string]interface{}); ok {
				if existing, ok := dst[k].(map[string]interface{}); ok {
					fold(existing, sub)
					continue
				}
			}
			dst[k] = v
		}
	}

	for _, raw := range overrides {
		node, err := overrideStringToTree(raw)
		if err != nil {
			m.Errors.Append(err)
			continue
		}
		fold(root, node)
	}

	if err := m.Error(); err != nil {
		return nil, err
	}
	return root, nil
}

func overrideStringToTree(raw string) (map[string]interface{}, error) {
	var o op
	text := raw
	switch {
	case strings.HasPrefix(text, "="):
		o = opReplace
		text = strings.TrimPrefix(text, "=")
	case strings.HasPrefix(text, "~"):
		o = opDelete
		text = strings.TrimPrefix(text, "~")
	default:
		o = opCompose
	}

	var identifierText string
	var literal interface{}

	if idx := strings.Index(text, "="); idx >= 0 {
		identifierText = text[:idx]
		literal = decodeLiteral(text[idx+1:])
	} else {
		if o != opDelete {
			return nil, ansi.Errorf("@R{malformed override string} @c{%q}@R{: expected} @c{<identifier>=<literal>}", raw)
		}
		identifierText = text
		literal = nil
	}

	id, err := path.Parse(identifierText)
	if err != nil {
		return nil, err
	}
	if len(id.Segments) == 0 {
		return nil, ansi.Errorf("@R{malformed override string} @c{%q}@R{: empty identifier}", raw)
	}

	leafKey := id.Segments[len(id.Segments)-1].String()
	switch o {
	case opReplace:
		leafKey = "=" + leafKey
	case opDelete:
		leafKey = "~" + leafKey
	}

	node := map[string]interface{}{leafKey: literal}
	for i := len(id.Segments) - 2; i >= 0; i-- {
		node = map[string]interface{}{id.Segments[i].String(): node}
	}
	return node, nil
}

// decodeLiteral tries, in order: a structured YAML scalar/collection
// (covers numbers, booleans, null, flow lists/objects with relaxed key
// quoting), falling back to the raw string. Using a YAML decoder here
// (rather than hand-rolling a literal grammar) is the same trick the
// teacher's cmd/graft/main.go and every pkg/graft test use YAML parsing
// libraries for: let the format's own parser own literal typing.
func decodeLiteral(text string) interface{} {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	var decoded interface{}
	if err := yaml.Unmarshal([]byte(trimmed), &decoded); err == nil {
		if s, ok := decoded.(string); ok && s != trimmed {
			// yaml quoting/escaping changed the text; prefer the literal string as typed.
			return text
		}
		return normalizeDecoded(decoded)
	}
	return text
}

// normalizeDecoded converts yaml.v2-shaped map[interface{}]interface{}
// nodes (and nested slices) to the map[string]interface{} shape the
// rest of sparkwheel works with.
func normalizeDecoded(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeDecoded(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeDecoded(val)
		}
		return out
	case int:
		return int(t)
	default:
		return t
	}
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
