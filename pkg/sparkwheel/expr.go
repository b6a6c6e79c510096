package sparkwheel

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// ExpressionEvaluator evaluates `$SRC` expression markers (spec.md
// §4.3). govaluate.EvaluableExpression.Evaluate(parameters) matches
// the contract spec.md describes almost exactly: source text plus a
// name->value parameter map, returning a value or an error. This is
// the only expression-evaluation library present anywhere in the
// retrieved example corpus, so it is the natural (and only) choice
// here rather than a hand-rolled evaluator.
type ExpressionEvaluator interface {
	Evaluate(source string, bindings map[string]interface{}) (interface{}, error)
}

// GovaluateEvaluator adapts github.com/Knetic/govaluate to
// ExpressionEvaluator.
type GovaluateEvaluator struct {
	// Functions are exposed to every expression by name, matching
	// govaluate's own EvaluableExpressionWithFunctions constructor;
	// this is the "caller-provided namespace" spec.md §4.3 calls for.
	Functions map[string]govaluate.ExpressionFunction
}

func (g GovaluateEvaluator) Evaluate(source string, bindings map[string]interface{}) (interface{}, error) {
	var expr *govaluate.EvaluableExpression
	var err error
	if len(g.Functions) > 0 {
		expr, err = govaluate.NewEvaluableExpressionWithFunctions(source, g.Functions)
	} else {
		expr, err = govaluate.NewEvaluableExpression(source)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing expression %q: %w", source, err)
	}

	params := make(map[string]interface{}, len(bindings))
	for k, v := range bindings {
		params[k] = v
	}

	result, err := expr.Evaluate(params)
	if err != nil {
		return nil, fmt.Errorf("evaluating expression %q: %w", source, err)
	}
	return result, nil
}
