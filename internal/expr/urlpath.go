package expr

import "regexp"

var urlPlaceholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// RenderURLPath resolves REST-style `{param}` placeholders in an endpoint
// path template against the endpoint's already-rendered `params:` map
// (spec §4.3: "resolved against the endpoint's params: map, not against raw
// context paths"). A placeholder with no matching param is left as-is.
func RenderURLPath(pathTemplate string, params map[string]string) string {
	return urlPlaceholderPattern.ReplaceAllStringFunc(pathTemplate, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := params[name]; ok {
			return v
		}
		return match
	})
}
