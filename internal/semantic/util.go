package semantic

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
)

// windowPattern constrains an aggregation feature's `window:` to a bare
// integer plus a single duration unit: seconds, minutes, hours, days,
// weeks, months, quarters, or years (spec §4.9).
var windowPattern = regexp.MustCompile(`^[1-9][0-9]*(s|m|h|d|w|mo|q|y)$`)

func sortedRuleKeys(m map[string]*artifact.Rule) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedRulesetKeys(m map[string]*artifact.Ruleset) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedFeatureKeys(m map[string]*artifact.Feature) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func setKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// validateRefs checks that every feature/list reference a compiled condition
// collected actually resolves against the repository's known features/lists.
func validateRefs(cr *expr.CompileResult, features map[string]*ir.FeatureIR, lists map[string]*ir.ListIR, location string) error {
	for fid := range cr.FeatureRefs {
		if _, ok := features[fid]; !ok {
			return corinterr.Compile(corinterr.KindUnknownRef, location,
				fmt.Sprintf("reference to unknown feature %q", fid), nil)
		}
	}
	for lid := range cr.ListRefs {
		if _, ok := lists[lid]; !ok {
			return corinterr.Compile(corinterr.KindUnknownRef, location,
				fmt.Sprintf("reference to unknown list %q", lid), nil)
		}
	}
	return nil
}
