package semantic

import (
	"fmt"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/loader"
)

// compileRegistry compiles the top-level registry (spec §4.5): an ordered
// list of pipeline routes, matched first-hit at decide time.
func compileRegistry(repo *loader.UnresolvedRepo, pipelines map[string]*ir.PipelineIR, features map[string]*ir.FeatureIR, lists map[string]*ir.ListIR) (*ir.RegistryIR, error) {
	if repo.Registry == nil {
		return &ir.RegistryIR{}, nil
	}

	out := &ir.RegistryIR{}
	for _, entry := range repo.Registry.Entries {
		if _, ok := pipelines[entry.Pipeline]; !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, repo.Registry.SourcePath,
				fmt.Sprintf("registry entry references unknown pipeline %q", entry.Pipeline), nil)
		}

		var when *expr.Condition
		if entry.When != nil {
			cr, err := expr.CompileCondition(entry.When, repo.Registry.SourcePath)
			if err != nil {
				return nil, err
			}
			if err := validateRefs(cr, features, lists, repo.Registry.SourcePath); err != nil {
				return nil, err
			}
			when = cr.Condition
		}

		out.Entries = append(out.Entries, ir.RegistryEntryIR{PipelineID: entry.Pipeline, When: when})
	}

	return out, nil
}
