package expr

import "testing"

func TestRenderURLPath(t *testing.T) {
	cases := []struct {
		name     string
		tmpl     string
		params   map[string]string
		expected string
	}{
		{
			name:     "single placeholder resolved",
			tmpl:     "/v1/users/{user_id}",
			params:   map[string]string{"user_id": "123"},
			expected: "/v1/users/123",
		},
		{
			name:     "multiple placeholders",
			tmpl:     "/v1/orgs/{org_id}/users/{user_id}",
			params:   map[string]string{"org_id": "acme", "user_id": "7"},
			expected: "/v1/orgs/acme/users/7",
		},
		{
			name:     "unmatched placeholder left as-is",
			tmpl:     "/v1/users/{user_id}",
			params:   map[string]string{},
			expected: "/v1/users/{user_id}",
		},
		{
			name:     "no placeholders",
			tmpl:     "/v1/health",
			params:   nil,
			expected: "/v1/health",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderURLPath(tc.tmpl, tc.params); got != tc.expected {
				t.Fatalf("RenderURLPath() = %q, want %q", got, tc.expected)
			}
		})
	}
}
