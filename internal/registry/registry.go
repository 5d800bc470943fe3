// Package registry implements the top-level Registry matcher (spec §4.5):
// a first-match linear scan over the compiled routing table that selects
// which pipeline handles an inbound event.
package registry

import (
	"github.com/corintai/corint/internal/condeval"
	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/runtime"
)

// Match scans reg's entries in declaration order and returns the id of the
// first pipeline whose `when` evaluates True (an absent `when` always
// matches, so a trailing catch-all entry is the idiomatic way to declare a
// default route). Unknown is treated the same as False: a registry entry
// never fires on a merely-unresolved condition.
func Match(reg *ir.RegistryIR, ctx *runtime.Context) (string, error) {
	for _, entry := range reg.Entries {
		if condeval.Eval(entry.When, ctx, nil).Bool() {
			return entry.PipelineID, nil
		}
	}
	return "", corinterr.Fatal(corinterr.KindNoPipelineMatched,
		"no registry entry matched the inbound event", nil)
}
