package sparkwheel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starkandwayne/goutils/ansi"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// ErrorKind categorizes a sparkwheel error (spec.md §7).
type ErrorKind string

const (
	// ParseErrorKind indicates a YAML load/parse failure.
	ParseErrorKind ErrorKind = "parse_error"
	// MergeErrorKind indicates a failure during layered merge.
	MergeErrorKind ErrorKind = "merge_error"
	// KeyNotFoundErrorKind indicates a reference or lookup named a
	// path that does not exist in the graph.
	KeyNotFoundErrorKind ErrorKind = "key_not_found_error"
	// CycleErrorKind indicates a reference cycle was detected while
	// resolving.
	CycleErrorKind ErrorKind = "cycle_error"
	// ExpressionErrorKind indicates a "$SRC" expression failed to parse
	// or evaluate.
	ExpressionErrorKind ErrorKind = "expression_error"
	// InstantiationErrorKind indicates a `_target_` directive failed
	// to construct its component.
	InstantiationErrorKind ErrorKind = "instantiation_error"
	// ValidationErrorKind indicates a structurally invalid directive
	// or configuration value.
	ValidationErrorKind ErrorKind = "validation_error"
)

// Error is sparkwheel's uniform error type: every failure surfaced
// across path/merger/graph/resolver/instantiate carries a Kind, the
// identifier it occurred at (if any), and an optional wrapped Cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Path    string
	Cause   error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind ErrorKind, path, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Path: path, Cause: cause}
}

// NewParseError reports a YAML load/parse failure.
func NewParseError(message string, cause error) *Error {
	return newErr(ParseErrorKind, "", message, cause)
}

// NewMergeError reports a layered-merge failure.
func NewMergeError(message string, cause error) *Error {
	return newErr(MergeErrorKind, "", message, cause)
}

// NewKeyNotFoundError reports a reference to a path absent from the
// graph, optionally suggesting a similarly-spelled existing path.
func NewKeyNotFoundError(path string, suggestion string) *Error {
	msg := "no such key in the configuration graph"
	if suggestion != "" {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, suggestion)
	}
	return newErr(KeyNotFoundErrorKind, path, msg, nil)
}

// NewCycleError reports a reference cycle, rendering the cycle's
// member identifiers in detection order.
func NewCycleError(cycle []string) *Error {
	return newErr(CycleErrorKind, cycle[0], fmt.Sprintf("reference cycle: %s", strings.Join(cycle, " -> ")), nil)
}

// NewExpressionError reports a "$SRC" expression failure.
func NewExpressionError(path, message string, cause error) *Error {
	return newErr(ExpressionErrorKind, path, message, cause)
}

// NewInstantiationError reports a `_target_` construction failure.
func NewInstantiationError(path, message string, cause error) *Error {
	return newErr(InstantiationErrorKind, path, message, cause)
}

// NewValidationError reports a structurally invalid directive.
func NewValidationError(path, message string) *Error {
	return newErr(ValidationErrorKind, path, message, nil)
}

// MultiError aggregates several errors raised during one operation
// (e.g. resolving every item in a graph). Grounded on the teacher's
// pkg/graft MultiError: sorted rendering, nested-MultiError flattening
// on Append.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	lines := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		lines[i] = fmt.Sprintf(" - %s", err)
	}
	sort.Strings(lines)
	return ansi.Sprintf("@R{%d} error(s) detected:\n%s", len(e.Errors), strings.Join(lines, "\n"))
}

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

func (e *MultiError) Count() int { return len(e.Errors) }

// AsError returns the MultiError as an error if it holds any, or nil.
func (e *MultiError) AsError() error {
	if e.Count() > 0 {
		return *e
	}
	return nil
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}

// EditDistance computes the Levenshtein distance between a and b, used
// by the graph to suggest a similarly-spelled key on a lookup miss
// (spec.md §7's KeyNotFoundError suggestion feature). The teacher's
// go.mod pulls in texttheater/golang-levenshtein only indirectly; we
// promote it to a direct dependency rather than hand-roll the same
// algorithm a second time.
func EditDistance(a, b string) int {
	return levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
}

// ClosestKey returns the candidate in candidates with the smallest
// edit distance to target, provided that distance is within a
// reasonable typo threshold; otherwise it returns "".
func ClosestKey(target string, candidates []string) string {
	best := ""
	bestDist := -1
	threshold := len(target)/2 + 2
	for _, c := range candidates {
		d := EditDistance(target, c)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist >= 0 && bestDist <= threshold {
		return best
	}
	return ""
}
