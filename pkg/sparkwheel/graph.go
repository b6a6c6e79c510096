package sparkwheel

import (
	"sort"
	"strings"

	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/path"
)

// ConfigItem is one node of the flattened graph: its canonical
// identifier and the raw (pre-resolution) node at that identifier.
// Grounded on the teacher's document.go notion of a path-addressed
// tree node, generalized from a single opaque document to an
// explicitly flattened per-identifier item (spec.md §4.4).
type ConfigItem struct {
	ID  path.Identifier
	Raw Node

	// Opaque marks an item produced by `%` macro splicing: its raw
	// node is a verbatim copy of another subtree and is never scanned
	// for markers or treated as an instantiation site on resolve,
	// per spec.md §8 scenario 8 ("macro copy before resolution").
	Opaque bool
}

// Node is an alias of path.Node for callers that only import this
// package.
type Node = path.Node

// FileLoader loads and normalizes the raw tree of an external YAML
// file, used to resolve `%FILE::ID` macros (spec.md §4.3/§4.4).
type FileLoader func(file string) (Node, error)

// Graph is the flattened configuration: one ConfigItem per interior
// and leaf node of the merged tree, keyed by canonical identifier.
// Grounded on spec.md §4.4's `get`/`resolve`/`has`/`keys`/`set`/
// `update` surface; the macro-splicing build step is grounded on the
// teacher's document.go tree-normalization pass, generalized to the
// spliced-subtree-substitution semantics spec.md defines (the teacher
// has no macro concept of its own — graft's closest analogue is its
// `(( grab ))` operator, which is a *resolved* reference, not a raw
// pre-resolution splice).
type Graph struct {
	root  Node
	items map[string]*ConfigItem
	order []string

	loader   FileLoader
	resolver *Resolver
}

const macroDepthLimit = 4096

// NewGraph flattens root (already the product of a layered merge)
// into a Graph, splicing `%` raw macros first per spec.md §4.4.
// loader may be nil if no `%FILE::ID` macros are used by the
// configuration; a nil loader used against a file-qualified macro
// fails with a ParseError.
func NewGraph(root Node, loader FileLoader) (*Graph, error) {
	spliced, opaqueRoots, err := spliceMacros(root, loader)
	if err != nil {
		return nil, err
	}

	g := &Graph{root: spliced, loader: loader}
	g.items = map[string]*ConfigItem{}
	path.Traverse(spliced, func(id path.Identifier, node path.Node) {
		key := id.StringKey()
		g.items[key] = &ConfigItem{ID: id, Raw: node, Opaque: underAnyRoot(key, opaqueRoots)}
		g.order = append(g.order, key)
	})
	sort.Strings(g.order)
	return g, nil
}

// underAnyRoot reports whether key names an identifier equal to, or a
// descendant of, one of roots.
func underAnyRoot(key string, roots []string) bool {
	for _, root := range roots {
		if key == root || strings.HasPrefix(key, root+"::") {
			return true
		}
	}
	return false
}

// Get returns the raw (pre-resolution) node at id.
func (g *Graph) Get(id path.Identifier) (Node, error) {
	item, ok := g.items[id.StringKey()]
	if !ok {
		return nil, g.notFound(id)
	}
	return item.Raw, nil
}

// Resolve delegates to the attached Resolver (spec.md §4.4's
// `resolve(id)`).
func (g *Graph) Resolve(id path.Identifier) (interface{}, error) {
	if g.resolver == nil {
		return nil, NewValidationError(id.StringKey(), "graph has no resolver attached")
	}
	return g.resolver.Resolve(id)
}

// Has reports whether id names an item in the graph.
func (g *Graph) Has(id path.Identifier) bool {
	_, ok := g.items[id.StringKey()]
	return ok
}

// Keys returns every identifier string in the graph, grouped by their
// top-level section (the first segment) and sorted within each
// section, for listing purposes (spec.md §4.4).
func (g *Graph) Keys() map[string][]string {
	sections := map[string][]string{}
	for _, key := range g.order {
		section := key
		if idx := strings.Index(key, "::"); idx >= 0 {
			section = key[:idx]
		} else if key == "" {
			section = ""
		}
		sections[section] = append(sections[section], key)
	}
	for section := range sections {
		sort.Strings(sections[section])
	}
	return sections
}

// Set replaces the raw node at id and invalidates its resolved cache
// entry (and anything depending on it, via the resolver).
func (g *Graph) Set(id path.Identifier, value Node) {
	key := id.StringKey()
	g.items[key] = &ConfigItem{ID: id, Raw: value}
	if !contains(g.order, key) {
		g.order = append(g.order, key)
		sort.Strings(g.order)
	}
	if g.resolver != nil {
		g.resolver.invalidate(key)
	}
}

// Update sets each identifier text in overrides to its value as a
// batch of Set calls, invalidating every affected entry. A key that
// does not parse as an identifier is skipped.
func (g *Graph) Update(overrides map[string]Node) {
	for keyText, value := range overrides {
		id, err := path.Parse(keyText)
		if err != nil {
			continue
		}
		g.Set(id, value)
	}
}

func (g *Graph) notFound(id path.Identifier) error {
	candidates := make([]string, 0, len(g.order))
	candidates = append(candidates, g.order...)
	suggestion := ClosestKey(id.StringKey(), candidates)
	return NewKeyNotFoundError(id.StringKey(), suggestion)
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// spliceMacros expands `%ID` and `%FILE::ID` raw-macro scalars
// throughout tree before the graph is built, per spec.md §4.4. A
// macro whose target is itself a macro is followed iteratively,
// bounded by macroDepthLimit; a direct cycle (a macro chain that
// revisits its own starting text) fails with a CycleError.
func spliceMacros(root Node, loader FileLoader) (Node, []string, error) {
	fileCache := map[string]Node{}
	steps := 0
	var opaqueRoots []string

	var resolveMacro func(text string, trail []string, at path.Identifier) (Node, error)
	var walk func(n Node, at path.Identifier) (Node, error)

	resolveMacro = func(text string, trail []string, at path.Identifier) (Node, error) {
		steps++
		if steps > macroDepthLimit {
			return nil, NewCycleError([]string{text, "... macro depth limit exceeded"})
		}
		for _, seen := range trail {
			if seen == text {
				return nil, NewCycleError(append(append([]string{}, trail...), text))
			}
		}
		trail = append(trail, text)

		file, idText, ok := parseMacro(text)
		if !ok {
			return text, nil
		}

		var source Node
		if file != "" {
			cached, ok := fileCache[file]
			if !ok {
				if loader == nil {
					return nil, NewParseError("macro references file \""+file+"\" but no file loader is configured", nil)
				}
				loaded, err := loader(file)
				if err != nil {
					return nil, NewParseError("loading macro source file \""+file+"\"", err)
				}
				cached = NormalizeNode(loaded)
				fileCache[file] = cached
			}
			source = cached
		} else {
			source = root
		}

		id, err := path.Parse(idText)
		if err != nil {
			return nil, err
		}
		node, err := path.Descend(source, id)
		if err != nil {
			return nil, err
		}

		if s, isStr := node.(string); isStr {
			if _, _, stillMacro := parseMacro(s); stillMacro {
				return resolveMacro(s, trail, at)
			}
		}

		// The spliced subtree is a verbatim raw copy: it is never
		// itself re-scanned for markers, and everything at or beneath
		// `at` is marked opaque so the resolver returns it as literal
		// data (spec.md §8 scenario 8).
		opaqueRoots = append(opaqueRoots, at.StringKey())
		return deepCopyNode(node), nil
	}

	walk = func(n Node, at path.Identifier) (Node, error) {
		switch v := n.(type) {
		case string:
			if _, _, ok := parseMacro(v); ok {
				return resolveMacro(v, nil, at)
			}
			return v, nil
		case map[string]interface{}:
			out := make(map[string]interface{}, len(v))
			for k, val := range v {
				nv, err := walk(val, at.AppendKey(k))
				if err != nil {
					return nil, err
				}
				out[k] = nv
			}
			return out, nil
		case []interface{}:
			out := make([]interface{}, len(v))
			for i, val := range v {
				nv, err := walk(val, at.AppendIndex(i))
				if err != nil {
					return nil, err
				}
				out[i] = nv
			}
			return out, nil
		default:
			return v, nil
		}
	}

	spliced, err := walk(root, path.Root())
	return spliced, opaqueRoots, err
}

// parseMacro splits a `%[FILE::]ID` marker into its optional file
// qualifier and identifier text. FILE is recognized by a "::"-joined
// prefix that looks like a filename (contains a path separator or a
// recognized YAML/JSON extension); this disambiguation is not fully
// specified by spec.md's grammar and is this implementation's resolved
// reading of it (see DESIGN.md).
func parseMacro(text string) (file, idText string, ok bool) {
	if !strings.HasPrefix(text, "%") {
		return "", "", false
	}
	rest := text[1:]
	if rest == "" {
		return "", "", false
	}
	if idx := strings.Index(rest, "::"); idx >= 0 {
		candidate := rest[:idx]
		if looksLikeFile(candidate) {
			return candidate, rest[idx+2:], true
		}
	}
	return "", rest, true
}

func looksLikeFile(s string) bool {
	return strings.Contains(s, "/") ||
		strings.HasSuffix(s, ".yml") ||
		strings.HasSuffix(s, ".yaml") ||
		strings.HasSuffix(s, ".json")
}

func deepCopyNode(v Node) Node {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopyNode(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopyNode(val)
		}
		return out
	default:
		return v
	}
}
