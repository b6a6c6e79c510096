package sparkwheel

import (
	"sort"
	"strings"

	"github.com/project-lighter/sparkwheel/internal/swlog"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel/path"
)

// Reserved directive keys, spec.md §4.5.
const (
	keyTarget   = "_target_"
	keyArgs     = "_args_"
	keyDisabled = "_disabled_"
	keyRequires = "_requires_"
	keyMode     = "_mode_"
)

var reservedKeys = map[string]bool{
	keyTarget:   true,
	keyArgs:     true,
	keyDisabled: true,
	keyRequires: true,
	keyMode:     true,
}

// Mode values, spec.md §4.5.
const (
	modeDefault  = "default"
	modeCallable = "callable"
	modeDebug    = "debug"
)

func isInstantiationSite(m map[string]interface{}) bool {
	_, ok := m[keyTarget]
	return ok
}

// Partial is the value returned by a `_mode_: callable` instantiation
// site that carries arguments to bind: calling it supplies any
// further positional/keyword arguments and invokes the underlying
// Constructor.
type Partial struct {
	Target Constructor
	Args   []interface{}
	Kwargs map[string]interface{}
}

// Call invokes the bound target, appending extraArgs and overlaying
// extraKwargs on top of the Partial's own bound arguments.
func (p Partial) Call(extraArgs []interface{}, extraKwargs map[string]interface{}) (interface{}, error) {
	args := append(append([]interface{}{}, p.Args...), extraArgs...)
	kwargs := make(map[string]interface{}, len(p.Kwargs)+len(extraKwargs))
	for k, v := range p.Kwargs {
		kwargs[k] = v
	}
	for k, v := range extraKwargs {
		kwargs[k] = v
	}
	return p.Target(args, kwargs)
}

// instantiate implements the six-step protocol of spec.md §4.5 for the
// directive mapping m found at id.
func (r *Resolver) instantiate(id path.Identifier, key string, m map[string]interface{}) (interface{}, error) {
	// 1. _disabled_
	if raw, ok := m[keyDisabled]; ok {
		disabledVal, err := r.resolveDirectiveValue(id, key, keyDisabled, raw)
		if err != nil {
			return nil, err
		}
		if truthy(disabledVal) {
			swlog.DEBUG("%s: _disabled_ is true, skipping instantiation", key)
			return nil, nil
		}
	}

	// 2. _requires_
	if raw, ok := m[keyRequires]; ok {
		list, _ := raw.([]interface{})
		for _, entry := range list {
			text, ok := entry.(string)
			if !ok {
				continue
			}
			idText := text
			if stripped, isRef := wholeReference(text); isRef {
				idText = stripped
			}
			reqID, err := path.Parse(idText)
			if err != nil {
				return nil, NewInstantiationError(key, "malformed _requires_ entry \""+text+"\"", err)
			}
			if _, err := r.resolve(path.Join(id, reqID), key); err != nil {
				return nil, err
			}
		}
	}

	// 3. _target_
	targetVal, err := r.resolve(id.AppendKey(keyTarget), key)
	if err != nil {
		return nil, err
	}
	ctor, err := r.resolveTarget(key, targetVal)
	if err != nil {
		return nil, err
	}

	// 4. _args_ and kwargs
	var args []interface{}
	if _, ok := m[keyArgs]; ok {
		val, err := r.resolve(id.AppendKey(keyArgs), key)
		if err != nil {
			return nil, err
		}
		if list, ok := val.([]interface{}); ok {
			args = list
		}
	}

	kwargs := map[string]interface{}{}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if reservedKeys[k] {
			continue
		}
		val, err := r.resolve(id.AppendKey(k), key)
		if err != nil {
			return nil, err
		}
		kwargs[k] = val
	}

	// 5. _mode_ branch
	mode := modeDefault
	if raw, ok := m[keyMode]; ok {
		val, err := r.resolveDirectiveValue(id, key, keyMode, raw)
		if err != nil {
			return nil, err
		}
		if s, ok := val.(string); ok && s != "" {
			mode = s
		}
	}

	switch mode {
	case modeCallable:
		if len(args) > 0 || len(kwargs) > 0 {
			return Partial{Target: ctor, Args: args, Kwargs: kwargs}, nil
		}
		return ctor, nil

	case modeDebug:
		swlog.DEBUG("%s: invoking under debug mode", key)
		result, err := ctor(args, kwargs)
		swlog.DEBUG("%s: debug invocation returned (err=%v)", key, err)
		if err != nil {
			return nil, NewInstantiationError(key, "invocation failed", err)
		}
		return result, nil

	default:
		result, err := ctor(args, kwargs)
		if err != nil {
			return nil, NewInstantiationError(key, "invocation failed", err)
		}
		return result, nil
	}
}

// resolveDirectiveValue resolves a reserved-key's raw value the same
// way an ordinary child item would be (it is still just a normal
// scalar/reference/expression node addressed at id.AppendKey(name));
// this helper exists only to name the step for readability.
func (r *Resolver) resolveDirectiveValue(id path.Identifier, parentKey, name string, _ interface{}) (interface{}, error) {
	return r.resolve(id.AppendKey(name), parentKey)
}

func (r *Resolver) resolveTarget(key string, targetVal interface{}) (Constructor, error) {
	switch t := targetVal.(type) {
	case Constructor:
		return t, nil
	case string:
		if r.registry == nil {
			return nil, NewInstantiationError(key, "no component registry configured", nil)
		}
		ctor, ok := r.registry.Locate(t)
		if !ok {
			return nil, NewInstantiationError(key, "no component registered for target \""+t+"\"", nil)
		}
		return ctor, nil
	default:
		return nil, NewInstantiationError(key, "_target_ did not resolve to a string path or a callable", nil)
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && strings.ToLower(t) != "false"
	default:
		return true
	}
}
