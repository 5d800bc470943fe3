package semantic

import (
	"fmt"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/loader"
)

// compileLists validates and compiles every `lists:` entry (spec §4.1,
// §6.2's list backends). Lists carry no expressions of their own, so
// compilation here is pure field validation per backend.
func compileLists(repo *loader.UnresolvedRepo) (map[string]*ir.ListIR, error) {
	out := make(map[string]*ir.ListIR, len(repo.Lists))
	for id, l := range repo.Lists {
		li := &ir.ListIR{
			ID:           l.ID,
			Backend:      l.Backend,
			Entries:      l.Entries,
			DatasourceID: l.Datasource,
			Key:          l.Key,
			Query:        l.Query,
			Path:         l.Path,
			EntriesPath:  l.EntriesPath,
		}

		switch l.Backend {
		case "static":
			if len(l.Entries) == 0 {
				return nil, corinterr.Compile(corinterr.KindMissingField, l.SourcePath,
					fmt.Sprintf("static list %q requires entries", id), nil)
			}
		case "redis_set":
			if l.Datasource == "" || l.Key == "" {
				return nil, corinterr.Compile(corinterr.KindMissingField, l.SourcePath,
					fmt.Sprintf("redis_set list %q requires datasource and key", id), nil)
			}
		case "sql":
			if l.Datasource == "" || l.Query == "" {
				return nil, corinterr.Compile(corinterr.KindMissingField, l.SourcePath,
					fmt.Sprintf("sql list %q requires datasource and query", id), nil)
			}
		case "json_file":
			if l.Path == "" {
				return nil, corinterr.Compile(corinterr.KindMissingField, l.SourcePath,
					fmt.Sprintf("json_file list %q requires path", id), nil)
			}
			if li.EntriesPath == "" {
				li.EntriesPath = "$" // whole document is the array, per PaesslerAG/jsonpath root selector
			}
		default:
			return nil, corinterr.Compile(corinterr.KindDialectViolation, l.SourcePath,
				fmt.Sprintf("list %q has unknown backend %q", id, l.Backend), nil)
		}

		out[id] = li
	}
	return out, nil
}
