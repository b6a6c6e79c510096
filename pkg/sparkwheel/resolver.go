package sparkwheel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/project-lighter/sparkwheel/internal/swlog"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/path"
)

// ResolveOptions are the per-instance resolution toggles spec.md §6
// exposes as environment switches.
type ResolveOptions struct {
	// AllowMissingReference degrades an unresolvable `@` reference to
	// nil with a warning instead of failing resolution.
	AllowMissingReference bool
	// StrictKeys rejects a YAML mapping that repeats the same key twice
	// within one parsed file (spec.md §6). Applied at load time
	// (Engine.Load/LoadFile and `%FILE::ID` macro sources); it has no
	// effect on a tree already constructed in memory.
	StrictKeys bool
	// DisableExpressions returns every `$SRC` marker as its literal
	// source string instead of evaluating it (spec.md §6).
	DisableExpressions bool
	// Debug enables verbose resolution tracing via internal/swlog.
	Debug bool
}

// Resolver materializes identifiers against a Graph, owning the
// resolved cache and in-progress set (spec.md §4.3). Grounded on the
// teacher's evaluator.go (DataFlow/CheckForCycles own the same two
// pieces of state for the whole-graph case); this resolver instead
// tracks them per-identifier with a simple in-progress stack, per
// spec.md §9's own recommendation, rather than graft's whole-graph
// topological pre-pass.
type Resolver struct {
	graph     *Graph
	opts      ResolveOptions
	evaluator ExpressionEvaluator
	registry  *Registry

	cache      map[string]interface{}
	inProgress map[string]bool
	stack      []string
	dependents map[string][]string
}

// NewResolver builds a Resolver over g and attaches itself to it so
// Graph.Resolve/Set/Update can drive cache invalidation.
func NewResolver(g *Graph, opts ResolveOptions, evaluator ExpressionEvaluator, registry *Registry) *Resolver {
	r := &Resolver{
		graph:      g,
		opts:       opts,
		evaluator:  evaluator,
		registry:   registry,
		cache:      map[string]interface{}{},
		inProgress: map[string]bool{},
		dependents: map[string][]string{},
	}
	if opts.Debug {
		swlog.DebugOn = true
	}
	g.resolver = r
	return r
}

// Resolve materializes id's value, per the five-step algorithm of
// spec.md §4.3.
func (r *Resolver) Resolve(id path.Identifier) (interface{}, error) {
	return r.resolve(id, "")
}

// ResolveAll resolves every item in the graph. Supplemented feature
// (SPEC_FULL.md §9): not named by spec.md, but useful for eagerly
// validating a whole configuration. It walks identifiers in the same
// sorted order Graph.Keys() exposes them in, which gives a stable,
// if not strictly dependency-ordered, overall pass — matching
// sparkwheel's per-resolve (not whole-graph topological) cycle
// handling; the teacher's batch equivalent (evaluator.go's DataFlow)
// pre-sorts by a Kahn topological pass, which this keeps as an
// option via the dataflowOrder argument.
func (r *Resolver) ResolveAll(dataflowOrder bool) (map[string]interface{}, error) {
	ids := make([]string, 0, len(r.graph.items))
	for key := range r.graph.items {
		ids = append(ids, key)
	}
	sort.Strings(ids)

	if dataflowOrder {
		ids = kahnOrder(r.graph, ids)
	}

	out := make(map[string]interface{}, len(ids))
	var errs MultiError
	for _, key := range ids {
		id := r.graph.items[key].ID
		val, err := r.resolve(id, "")
		if err != nil {
			errs.Append(err)
			continue
		}
		out[key] = val
	}
	if errs.Count() > 0 {
		return out, errs
	}
	return out, nil
}

// kahnOrder orders ids so that every identifier appears after the
// other graph identifiers its raw scalar content references,
// mirroring the teacher's DataFlow topological pre-pass. Items whose
// dependencies fall outside the graph (external references, or none)
// simply keep their relative position.
func kahnOrder(g *Graph, ids []string) []string {
	indegree := map[string]int{}
	adj := map[string][]string{}
	for _, key := range ids {
		indegree[key] = 0
	}
	for _, key := range ids {
		item := g.items[key]
		for _, dep := range scanDependencies(item.Raw) {
			depID, err := path.Parse(dep)
			if err != nil {
				continue
			}
			depKey := path.Join(item.ID, depID).StringKey()
			if _, ok := indegree[depKey]; !ok {
				continue
			}
			adj[depKey] = append(adj[depKey], key)
			indegree[key]++
		}
	}

	var queue, out []string
	for _, key := range ids {
		if indegree[key] == 0 {
			queue = append(queue, key)
		}
	}
	sort.Strings(queue)
	seen := map[string]bool{}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		var freed []string
		for _, dependent := range adj[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}
	// Anything left over is part of a cycle; append in original order
	// so ResolveAll still attempts it (and surfaces the CycleError).
	for _, key := range ids {
		if !seen[key] {
			out = append(out, key)
		}
	}
	return out
}

// scanDependencies extracts every referenced identifier from a raw
// scalar string, syntactically (no evaluation), per spec.md §4.3.
func scanDependencies(node Node) []string {
	s, ok := node.(string)
	if !ok {
		return nil
	}
	if idText, ok := wholeReference(s); ok {
		return []string{idText}
	}
	if src, ok := wholeExpr(s); ok {
		return embeddedReferences(src)
	}
	return embeddedReferences(s)
}

func (r *Resolver) resolve(id path.Identifier, parentKey string) (interface{}, error) {
	key := id.StringKey()
	if parentKey != "" {
		r.addDependent(key, parentKey)
	}

	if v, ok := r.cache[key]; ok {
		return v, nil
	}
	if r.inProgress[key] {
		cycle := append(append([]string{}, r.stack...), key)
		return nil, NewCycleError(cycle)
	}

	item, ok := r.graph.items[key]
	if !ok {
		err := r.graph.notFound(id)
		if r.opts.AllowMissingReference {
			swlog.PrintfStdErr("warning: %s\n", err)
			return nil, nil
		}
		return nil, err
	}

	if item.Opaque {
		// A macro-spliced subtree is raw data, never resolved further
		// (spec.md §8 scenario 8).
		r.cache[key] = item.Raw
		return item.Raw, nil
	}

	r.inProgress[key] = true
	r.stack = append(r.stack, key)
	swlog.DEBUG("resolving %s", key)

	value, err := r.resolveNode(id, key, item.Raw)

	delete(r.inProgress, key)
	r.stack = r.stack[:len(r.stack)-1]

	if err != nil {
		swlog.DEBUG("resolving %s failed: %s", key, err)
		return nil, err
	}

	r.cache[key] = value
	swlog.DEBUG("resolved %s", key)
	return value, nil
}

func (r *Resolver) resolveNode(id path.Identifier, key string, raw Node) (interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		if isInstantiationSite(v) {
			return r.instantiate(id, key, v)
		}
		out := make(map[string]interface{}, len(v))
		names := make([]string, 0, len(v))
		for k := range v {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			val, err := r.resolve(id.AppendKey(k), key)
			if err != nil {
				return nil, err
			}
			out[k] = val
		}
		return out, nil

	case []interface{}:
		out := make([]interface{}, len(v))
		for i := range v {
			val, err := r.resolve(id.AppendIndex(i), key)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	case string:
		if idText, ok := wholeReference(v); ok {
			refID, err := path.Parse(idText)
			if err != nil {
				return nil, err
			}
			return r.resolve(path.Join(id, refID), key)
		}
		if src, ok := wholeExpr(v); ok {
			if r.opts.DisableExpressions {
				return v, nil
			}
			return r.evaluateExpression(id, key, src)
		}
		if refTexts := embeddedReferences(v); len(refTexts) > 0 {
			return r.substituteEmbeddedReferences(id, key, v, refTexts)
		}
		return v, nil

	default:
		return raw, nil
	}
}

// substituteEmbeddedReferences resolves each `@ID` occurrence embedded
// in a larger, non-expression string and splices its value back in via
// fmt.Sprintf("%v", ...) (spec.md §6: "otherwise reference substitution
// is textual and the result is a string"; SPEC_FULL.md §10.2/spec.md §9
// Open Question 2).
func (r *Resolver) substituteEmbeddedReferences(id path.Identifier, key, text string, refTexts []string) (string, error) {
	out := text
	for _, refText := range uniqueByLengthDesc(refTexts) {
		refID, err := path.Parse(refText)
		if err != nil {
			return "", NewExpressionError(key, fmt.Sprintf("malformed reference %q in string", refText), err)
		}
		val, err := r.resolve(path.Join(id, refID), key)
		if err != nil {
			return "", err
		}
		out = strings.ReplaceAll(out, "@"+refText, fmt.Sprintf("%v", val))
	}
	return out, nil
}

// evaluateExpression implements the `$SRC` marker's contract (spec.md
// §4.3): every embedded `@ID` occurrence is resolved and rewritten to
// a unique binding name before the source is handed to the evaluator.
func (r *Resolver) evaluateExpression(id path.Identifier, key, src string) (interface{}, error) {
	refTexts := uniqueByLengthDesc(embeddedReferences(src))
	bindings := map[string]interface{}{}
	rewritten := src

	for i, refText := range refTexts {
		refID, err := path.Parse(refText)
		if err != nil {
			return nil, NewExpressionError(key, fmt.Sprintf("malformed reference %q in expression", refText), err)
		}
		val, err := r.resolve(path.Join(id, refID), key)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("ref%d", i)
		bindings[name] = val
		rewritten = strings.ReplaceAll(rewritten, "@"+refText, name)
	}

	if r.evaluator == nil {
		return nil, NewExpressionError(key, "no expression evaluator configured", nil)
	}
	result, err := r.evaluator.Evaluate(rewritten, bindings)
	if err != nil {
		return nil, NewExpressionError(key, err.Error(), err)
	}
	return result, nil
}

// uniqueByLengthDesc deduplicates refs (preserving only first
// occurrence) and orders them longest-first so that replacing "@a::b"
// can't be clobbered by a prior replacement of the shorter "@a".
func uniqueByLengthDesc(refs []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range refs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func (r *Resolver) addDependent(childKey, parentKey string) {
	for _, existing := range r.dependents[childKey] {
		if existing == parentKey {
			return
		}
	}
	r.dependents[childKey] = append(r.dependents[childKey], parentKey)
}

// invalidate drops key and everything transitively resolved from it
// out of the cache, per spec.md §4.3's "resolved cache is monotonic
// ... invalidated only when mutated by update() or merge()".
func (r *Resolver) invalidate(key string) {
	var drop func(k string)
	visited := map[string]bool{}
	drop = func(k string) {
		if visited[k] {
			return
		}
		visited[k] = true
		delete(r.cache, k)
		for _, dep := range r.dependents[k] {
			drop(dep)
		}
		delete(r.dependents, k)
	}
	drop(key)
}
