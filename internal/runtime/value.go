// Package runtime implements the per-request ExecutionContext (spec §4.10)
// and the explainability trace (spec §9).
package runtime

import "strings"

// Unknown is the three-valued-logic sentinel produced by a missing path,
// type mismatch, or absorbed error (spec §4.8/§4.10). It is distinct from
// Go's nil so namespace readers can tell "resolved to null" apart from
// "could not resolve".
type Unknown struct{}

// IsUnknown reports whether v is the Unknown sentinel.
func IsUnknown(v any) bool {
	_, ok := v.(Unknown)
	return ok
}

// getPath walks a dot-segment path into a closed value tree
// (map[string]any / []any / scalars, as decoded from JSON or YAML). It
// never panics and never errors: a missing or mistyped segment simply
// yields (nil, false).
func getPath(root any, segments []string) (any, bool) {
	cur := root
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		val, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = val
	}
	return cur, true
}

// setPath writes value at the dot-segment path within root, creating
// intermediate maps as needed. root must be a non-nil map[string]any.
func setPath(root map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}
	cur := root
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = value
}

// JoinPath renders dot-segments back into a single string, for diagnostics.
func JoinPath(segments []string) string {
	return strings.Join(segments, ".")
}
