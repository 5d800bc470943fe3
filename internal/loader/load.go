// Package loader implements the Artifact Loader (spec §4.1): it walks a
// repository root, parses every YAML artifact file, resolves `import:`
// documents, detects import cycles, and enforces global ID uniqueness.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/corinterr"
)

// UnresolvedRepo is the output of the loader: typed-but-unresolved artifacts
// keyed by kind and ID, ready for config substitution and semantic analysis.
type UnresolvedRepo struct {
	Rules     map[string]*artifact.Rule
	Rulesets  map[string]*artifact.Ruleset
	Pipelines map[string]*artifact.Pipeline
	Registry  *artifact.Registry
	Features  map[string]*artifact.Feature
	Lists     map[string]*artifact.List
	APIs      map[string]*artifact.API
	Services  map[string]*artifact.Service
}

func newRepo() *UnresolvedRepo {
	return &UnresolvedRepo{
		Rules:     map[string]*artifact.Rule{},
		Rulesets:  map[string]*artifact.Ruleset{},
		Pipelines: map[string]*artifact.Pipeline{},
		Features:  map[string]*artifact.Feature{},
		Lists:     map[string]*artifact.List{},
		APIs:      map[string]*artifact.API{},
		Services:  map[string]*artifact.Service{},
	}
}

// document is the minimal shape used to detect which top-level key a YAML
// document carries, before decoding it into its fully-typed artifact.
type document struct {
	Import   *artifact.Import `yaml:"import"`
	Rule     *artifact.Rule     `yaml:"rule"`
	Ruleset  *artifact.Ruleset  `yaml:"ruleset"`
	Pipeline *artifact.Pipeline `yaml:"pipeline"`
	Registry *artifact.Registry `yaml:"registry"`
	Features []artifact.Feature `yaml:"features"`
	Lists    []artifact.List    `yaml:"lists"`
	APIs     []artifact.API     `yaml:"apis"`
	Services []artifact.Service `yaml:"services"`
}

// Load parses every YAML artifact under root and returns the combined,
// deduplicated, unresolved repository.
func Load(root string) (*UnresolvedRepo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, corinterr.Compile(corinterr.KindImportNotFound, root, "resolve repository root", err)
	}

	paths, err := discoverYAMLFiles(absRoot)
	if err != nil {
		return nil, err
	}

	l := &loadState{
		root:    absRoot,
		repo:    newRepo(),
		docs:    map[string][]document{},
		visited: map[string]bool{},
		onStack: map[string]bool{},
	}

	for _, p := range paths {
		if err := l.loadFile(p, nil); err != nil {
			return nil, err
		}
	}

	return l.repo, nil
}

type loadState struct {
	root    string
	repo    *UnresolvedRepo
	docs    map[string][]document
	visited map[string]bool
	onStack map[string]bool
}

func discoverYAMLFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, corinterr.Compile(corinterr.KindImportNotFound, root, "walk repository root", err)
	}
	return paths, nil
}

// resolveImportPath resolves a path from an `import:` document strictly
// relative to the repository root; "./" and "../" prefixes are rejected.
func (l *loadState) resolveImportPath(raw string) (string, error) {
	if strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") || strings.HasPrefix(raw, "/") {
		return "", corinterr.Compile(corinterr.KindImportNotFound, raw,
			"import paths must be root-relative, not prefixed with './', '../' or '/'", nil)
	}
	full := filepath.Join(l.root, raw)
	if _, err := os.Stat(full); err != nil {
		return "", corinterr.Compile(corinterr.KindImportNotFound, raw, "imported path does not exist", err)
	}
	return full, nil
}

// loadFile parses the file at path (if not already parsed), follows its
// import chain for cycle detection, and merges its artifacts into the repo.
// chain is the DFS stack of paths currently being loaded, used to report the
// full cycle on detection.
func (l *loadState) loadFile(path string, chain []string) error {
	if l.onStack[path] {
		cycle := append(append([]string{}, chain...), path)
		return corinterr.Compile(corinterr.KindCircularImport, path,
			fmt.Sprintf("circular import: %s", strings.Join(cycle, " -> ")), nil)
	}
	if l.visited[path] {
		return nil
	}

	l.onStack[path] = true
	chain = append(chain, path)
	defer func() {
		delete(l.onStack, path)
	}()

	docs, err := parseDocuments(path)
	if err != nil {
		return err
	}
	l.visited[path] = true

	for _, doc := range docs {
		if doc.Import != nil {
			for _, rel := range doc.Import.Rules {
				full, err := l.resolveImportPath(rel)
				if err != nil {
					return err
				}
				if err := l.loadFile(full, chain); err != nil {
					return err
				}
			}
			for _, rel := range doc.Import.Rulesets {
				full, err := l.resolveImportPath(rel)
				if err != nil {
					return err
				}
				if err := l.loadFile(full, chain); err != nil {
					return err
				}
			}
			for _, rel := range doc.Import.Pipelines {
				full, err := l.resolveImportPath(rel)
				if err != nil {
					return err
				}
				if err := l.loadFile(full, chain); err != nil {
					return err
				}
			}
		}
		if err := l.mergeDoc(path, doc); err != nil {
			return err
		}
	}
	return nil
}

func parseDocuments(path string) ([]document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, corinterr.Compile(corinterr.KindInvalidYAML, path, "read artifact file", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)

	var docs []document
	for {
		var d document
		if err := dec.Decode(&d); err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, corinterr.Compile(corinterr.KindInvalidYAML, path, "decode YAML document", err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (l *loadState) mergeDoc(path string, doc document) error {
	repo := l.repo

	if doc.Rule != nil && doc.Rule.ID != "" {
		if err := checkDuplicate(repo.Rules, doc.Rule.ID, path, "rule"); err != nil {
			return err
		}
		if err := checkNamespaceConflict(repo.Rulesets, doc.Rule.ID, path); err != nil {
			return err
		}
		r := *doc.Rule
		r.SourcePath = path
		repo.Rules[r.ID] = &r
	}

	if doc.Ruleset != nil && doc.Ruleset.ID != "" {
		if err := checkDuplicate(repo.Rulesets, doc.Ruleset.ID, path, "ruleset"); err != nil {
			return err
		}
		if err := checkNamespaceConflict(repo.Rules, doc.Ruleset.ID, path); err != nil {
			return err
		}
		rs := *doc.Ruleset
		rs.SourcePath = path
		repo.Rulesets[rs.ID] = &rs
	}

	if doc.Pipeline != nil && doc.Pipeline.ID != "" {
		if err := checkDuplicate(repo.Pipelines, doc.Pipeline.ID, path, "pipeline"); err != nil {
			return err
		}
		p := *doc.Pipeline
		p.SourcePath = path
		repo.Pipelines[p.ID] = &p
	}

	if doc.Registry != nil {
		if repo.Registry != nil {
			return corinterr.Compile(corinterr.KindDuplicateID, path,
				"only one registry artifact is allowed per repository", nil)
		}
		reg := *doc.Registry
		reg.SourcePath = path
		repo.Registry = &reg
	}

	for i := range doc.Features {
		f := doc.Features[i]
		if f.ID == "" {
			continue
		}
		if err := checkDuplicate(repo.Features, f.ID, path, "feature"); err != nil {
			return err
		}
		f.SourcePath = path
		repo.Features[f.ID] = &f
	}

	for i := range doc.Lists {
		ls := doc.Lists[i]
		if ls.ID == "" {
			continue
		}
		if err := checkDuplicate(repo.Lists, ls.ID, path, "list"); err != nil {
			return err
		}
		ls.SourcePath = path
		repo.Lists[ls.ID] = &ls
	}

	for i := range doc.APIs {
		a := doc.APIs[i]
		if a.ID == "" {
			continue
		}
		if err := checkDuplicate(repo.APIs, a.ID, path, "api"); err != nil {
			return err
		}
		a.SourcePath = path
		repo.APIs[a.ID] = &a
	}

	for i := range doc.Services {
		s := doc.Services[i]
		if s.ID == "" {
			continue
		}
		if err := checkDuplicate(repo.Services, s.ID, path, "service"); err != nil {
			return err
		}
		s.SourcePath = path
		repo.Services[s.ID] = &s
	}

	return nil
}

// idHolder is any map[string]*T so checkDuplicate can be generic over kind.
type idHolder[T any] map[string]*T

func checkDuplicate[T any](m idHolder[T], id, path, kind string) error {
	if existing, ok := m[id]; ok {
		first := sourcePathOf(existing)
		return corinterr.Compile(corinterr.KindDuplicateID, path,
			fmt.Sprintf("duplicate %s id %q (first defined at %s)", kind, id, first), nil)
	}
	return nil
}

// checkNamespaceConflict enforces that rule IDs and ruleset IDs are disjoint.
func checkNamespaceConflict[T any](m idHolder[T], id, path string) error {
	if _, ok := m[id]; ok {
		return corinterr.Compile(corinterr.KindIDNamespaceConfl, path,
			fmt.Sprintf("id %q is used by both a rule and a ruleset", id), nil)
	}
	return nil
}

func sourcePathOf(v any) string {
	switch t := v.(type) {
	case *artifact.Rule:
		return t.SourcePath
	case *artifact.Ruleset:
		return t.SourcePath
	case *artifact.Pipeline:
		return t.SourcePath
	case *artifact.Feature:
		return t.SourcePath
	case *artifact.List:
		return t.SourcePath
	case *artifact.API:
		return t.SourcePath
	case *artifact.Service:
		return t.SourcePath
	default:
		return "?"
	}
}
