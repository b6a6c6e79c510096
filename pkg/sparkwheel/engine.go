package sparkwheel

import (
	"github.com/Knetic/govaluate"

	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/merger"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/path"
)

// Options configures an Engine instance: the four environment
// toggles of spec.md §6, plus the function namespace exposed to
// every `$SRC` expression.
type Options struct {
	ResolveOptions
	Functions map[string]govaluate.ExpressionFunction
	// Loader overrides how `%FILE::ID` macros load external YAML
	// files. Defaults to reading from the local filesystem.
	Loader FileLoader
}

// Engine is sparkwheel's top-level API: load layers, merge them, and
// resolve identifiers against the resulting graph. One Engine holds
// one configuration instance, per spec.md §5's single-threaded
// cooperative concurrency model — it is not safe for concurrent use
// by multiple goroutines.
type Engine struct {
	opts     Options
	layers   []map[string]interface{}
	graph    *Graph
	resolver *Resolver
	registry *Registry
}

// New returns an Engine with the built-in component registry attached
// (spec.md §4.5's locate(path) targets: vault, aws-ssm, nats-publish).
func New(opts Options) *Engine {
	if opts.Loader == nil {
		opts.Loader = newDefaultFileLoader(opts.StrictKeys)
	}
	reg := NewRegistry()
	RegisterBuiltins(reg)
	return &Engine{opts: opts, registry: reg}
}

// Registry exposes the Engine's component registry so callers can
// register additional `_target_` constructors before merging.
func (e *Engine) Registry() *Registry { return e.registry }

// Load parses YAML bytes into a normalized raw tree, ready to be
// passed to Merge as one layer.
func (e *Engine) Load(data []byte) (map[string]interface{}, error) {
	return LoadYAML(data, e.opts.StrictKeys)
}

// LoadFile parses a YAML file on disk into a normalized raw tree.
func (e *Engine) LoadFile(file string) (map[string]interface{}, error) {
	return LoadYAMLFile(file, e.opts.StrictKeys)
}

// Merge folds layers together (spec.md §4.2) and builds the graph and
// resolver over the result (spec.md §4.4). It replaces any
// previously-built graph and its resolved cache.
func (e *Engine) Merge(layers ...map[string]interface{}) error {
	merged, err := merger.Merge(layers...)
	if err != nil {
		return NewMergeError(err.Error(), err)
	}
	e.layers = append([]map[string]interface{}{}, layers...)
	return e.build(merged)
}

func (e *Engine) build(merged map[string]interface{}) error {
	g, err := NewGraph(merged, e.opts.Loader)
	if err != nil {
		return err
	}
	e.graph = g
	e.resolver = NewResolver(g, e.opts.ResolveOptions, GovaluateEvaluator{Functions: e.opts.Functions}, e.registry)
	return nil
}

// Resolve materializes the value at the given canonical identifier
// text (spec.md §4.3).
func (e *Engine) Resolve(identifier string) (interface{}, error) {
	if e.graph == nil {
		return nil, NewValidationError(identifier, "engine has no merged configuration to resolve against")
	}
	id, err := path.Parse(identifier)
	if err != nil {
		return nil, err
	}
	return e.graph.Resolve(id)
}

// ResolveAll resolves every item in the graph, per-resolve cycle
// detection still applies to each one. See Resolver.ResolveAll for
// the dataflowOrder knob.
func (e *Engine) ResolveAll(dataflowOrder bool) (map[string]interface{}, error) {
	if e.resolver == nil {
		return nil, NewValidationError("", "engine has no merged configuration to resolve against")
	}
	return e.resolver.ResolveAll(dataflowOrder)
}

// Has reports whether identifier names an item in the graph.
func (e *Engine) Has(identifier string) bool {
	if e.graph == nil {
		return false
	}
	id, err := path.Parse(identifier)
	if err != nil {
		return false
	}
	return e.graph.Has(id)
}

// Keys lists every identifier in the graph, grouped by top-level
// section.
func (e *Engine) Keys() map[string][]string {
	if e.graph == nil {
		return nil
	}
	return e.graph.Keys()
}

// Update applies CLI-style `[~|=]<identifier>=<literal>` override
// strings (spec.md §4.2/§6) as a final layer on top of the layers
// already merged, rebuilding the graph and discarding the resolved
// cache (spec.md §4.4's `update(overrides)`).
func (e *Engine) Update(overrides []string) error {
	tree, err := merger.OverrideTree(overrides)
	if err != nil {
		return NewMergeError(err.Error(), err)
	}
	return e.Merge(append(append([]map[string]interface{}{}, e.layers...), tree)...)
}

// Set replaces the raw node at identifier directly and invalidates
// its resolved cache (and anything depending on it).
func (e *Engine) Set(identifier string, value interface{}) error {
	if e.graph == nil {
		return NewValidationError(identifier, "engine has no merged configuration to set against")
	}
	id, err := path.Parse(identifier)
	if err != nil {
		return err
	}
	e.graph.Set(id, value)
	return nil
}
