package sparkwheel

import "regexp"

// identifierPattern matches the longest valid identifier text starting
// right after a `@` or `%` sigil: zero or more leading relative `::`
// markers, then `::`-joined segments of word characters. This is the
// "longest-valid-identifier" grammar decided for Open Question 3 (see
// DESIGN.md): greedily consume identifier text, leaving anything that
// doesn't fit (a `.method(...)` call, a `[key]` index, or simply the
// end of a containing expression) as trailing source text.
var identifierPattern = regexp.MustCompile(`^(?:::)*[A-Za-z0-9_]+(?:::[A-Za-z0-9_]+)*`)

// referencePattern finds every `@<identifier>` occurrence inside a
// larger string (used to extract embedded references from `$`
// expression source, per spec.md §4.3).
var referencePattern = regexp.MustCompile(`@(?:::)*[A-Za-z0-9_]+(?:::[A-Za-z0-9_]+)*`)

// wholeExpr reports whether text is entirely a `$`-expression marker,
// returning its source.
func wholeExpr(text string) (src string, ok bool) {
	if len(text) >= 1 && text[0] == '$' {
		return text[1:], true
	}
	return "", false
}

// wholeReference reports whether text is entirely a `@`-reference
// marker (no trailing characters past the identifier), returning the
// identifier text.
func wholeReference(text string) (idText string, ok bool) {
	if len(text) < 2 || text[0] != '@' {
		return "", false
	}
	rest := text[1:]
	m := identifierPattern.FindString(rest)
	if m == rest {
		return m, true
	}
	return "", false
}

// embeddedReferences returns every `@identifier` match found in text,
// in left-to-right order, alongside the identifier text each one
// carries (without the leading `@`).
func embeddedReferences(text string) []string {
	matches := referencePattern.FindAllString(text, -1)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m[1:]
	}
	return out
}
