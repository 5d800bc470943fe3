package expr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/corintai/corint/internal/corinterr"
)

// templateRefPattern matches `${ns.path}` reference segments.
var templateRefPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// TemplateSegment is either a literal string or a context reference.
type TemplateSegment struct {
	Literal      string
	Ref          *Path
	InsideQuotes bool // true if this ref sits inside a JSON string literal
}

// Template is a compiled `${ns.path}`-interpolated string (spec §4.3).
type Template struct {
	Segments []TemplateSegment
	Raw      string
}

// CompileTemplate parses raw into a Template, recording for each reference
// whether it is nested inside JSON double-quotes (by parity of unescaped
// `"` characters seen so far in the literal prefix).
func CompileTemplate(raw, location string) (*Template, error) {
	t := &Template{Raw: raw}

	matches := templateRefPattern.FindAllStringSubmatchIndex(raw, -1)
	last := 0
	quoteCount := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		refStart, refEnd := m[2], m[3]

		literal := raw[last:start]
		quoteCount += countUnescapedQuotes(literal)
		insideQuotes := quoteCount%2 == 1

		if literal != "" {
			t.Segments = append(t.Segments, TemplateSegment{Literal: literal})
		}

		refRaw := strings.TrimSpace(raw[refStart:refEnd])
		path, ok := ParsePath(refRaw)
		if !ok {
			return nil, corinterr.Compile(corinterr.KindInvalidExpression, location,
				fmt.Sprintf("unresolvable template reference ${%s}", refRaw), nil)
		}
		t.Segments = append(t.Segments, TemplateSegment{Ref: &path, InsideQuotes: insideQuotes})

		last = end
	}

	if last < len(raw) {
		t.Segments = append(t.Segments, TemplateSegment{Literal: raw[last:]})
	}

	return t, nil
}

func countUnescapedQuotes(s string) int {
	count := 0
	escaped := false
	for _, c := range s {
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			count++
		}
	}
	return count
}

// Lookup resolves a Path to its runtime value; implemented by the execution
// context at runtime.
type Lookup func(Path) (any, bool)

// Render produces the interpolated string, applying JSON-aware quoting per
// segment (spec §4.3 / Testable Property #9).
func (t *Template) Render(lookup Lookup) (string, error) {
	var sb strings.Builder
	for _, seg := range t.Segments {
		if seg.Ref == nil {
			sb.WriteString(seg.Literal)
			continue
		}
		val, _ := lookup(*seg.Ref)
		if seg.InsideQuotes {
			sb.WriteString(jsonStringBody(val))
		} else {
			sb.WriteString(jsonScalar(val))
		}
	}
	return sb.String(), nil
}

// jsonStringBody renders val as the body of an already-open JSON string
// literal (no surrounding quotes, but escaped per RFC 8259).
func jsonStringBody(val any) string {
	s := fmt.Sprintf("%v", val)
	if val == nil {
		s = ""
	}
	quoted, _ := json.Marshal(s)
	// quoted is `"..."`: strip the surrounding quotes added by Marshal.
	return string(quoted[1 : len(quoted)-1])
}

// jsonScalar renders val as a standalone JSON scalar (quoted if a string).
func jsonScalar(val any) string {
	b, err := json.Marshal(val)
	if err != nil {
		return fmt.Sprintf("%v", val)
	}
	return string(b)
}
