package semantic

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/loader"
)

// configRefPattern matches `@{a.b.c}` tokens (spec §4.2), distinct from the
// `${…}` template references the expr package resolves at runtime.
var configRefPattern = regexp.MustCompile(`@\{([^}]*)\}`)

// substituteConfig walks every artifact in repo and replaces `@{a.b.c}`
// tokens with the corresponding value from tree, in place. It runs before
// any expression/template compilation so that no later pass ever observes
// an `@{…}` token; tree may be nil (e.g. `corint lint`), in which case any
// `@{…}` reference fails to resolve.
func substituteConfig(repo *loader.UnresolvedRepo, tree *engineconfig.Tree) error {
	for _, r := range repo.Rules {
		if err := substituteStruct(reflect.ValueOf(r).Elem(), r.SourcePath, tree); err != nil {
			return err
		}
	}
	for _, rs := range repo.Rulesets {
		if err := substituteStruct(reflect.ValueOf(rs).Elem(), rs.SourcePath, tree); err != nil {
			return err
		}
	}
	for _, p := range repo.Pipelines {
		if err := substituteStruct(reflect.ValueOf(p).Elem(), p.SourcePath, tree); err != nil {
			return err
		}
	}
	if repo.Registry != nil {
		if err := substituteStruct(reflect.ValueOf(repo.Registry).Elem(), repo.Registry.SourcePath, tree); err != nil {
			return err
		}
	}
	for _, f := range repo.Features {
		if err := substituteStruct(reflect.ValueOf(f).Elem(), f.SourcePath, tree); err != nil {
			return err
		}
	}
	for _, l := range repo.Lists {
		if err := substituteStruct(reflect.ValueOf(l).Elem(), l.SourcePath, tree); err != nil {
			return err
		}
	}
	for _, a := range repo.APIs {
		if err := substituteStruct(reflect.ValueOf(a).Elem(), a.SourcePath, tree); err != nil {
			return err
		}
	}
	for _, s := range repo.Services {
		if err := substituteStruct(reflect.ValueOf(s).Elem(), s.SourcePath, tree); err != nil {
			return err
		}
	}
	return nil
}

// substituteStruct walks rv (addressable) replacing every string leaf it
// finds, skipping the SourcePath bookkeeping field.
func substituteStruct(rv reflect.Value, location string, tree *engineconfig.Tree) error {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return substituteStruct(rv.Elem(), location, tree)

	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		replaced, err := substituteAny(rv.Interface(), location, tree)
		if err != nil {
			return err
		}
		if replaced == nil {
			rv.Set(reflect.Zero(rv.Type()))
		} else {
			rv.Set(reflect.ValueOf(replaced))
		}
		return nil

	case reflect.String:
		s, err := substituteString(rv.String(), location, tree)
		if err != nil {
			return err
		}
		rv.SetString(s)
		return nil

	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if t.Field(i).Name == "SourcePath" {
				continue
			}
			if err := substituteStruct(rv.Field(i), location, tree); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := substituteStruct(rv.Index(i), location, tree); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key()
			valCopy := reflect.New(rv.Type().Elem()).Elem()
			valCopy.Set(iter.Value())
			if err := substituteStruct(valCopy, location, tree); err != nil {
				return err
			}
			rv.SetMapIndex(key, valCopy)
		}
		return nil

	default:
		return nil
	}
}

// substituteAny is the pure-value counterpart of substituteStruct, used for
// the dynamically shaped content (string | map[string]any | []any | scalar)
// that YAML produces for every `any`-typed artifact field (`when`,
// `fallback`, and so on).
func substituteAny(v any, location string, tree *engineconfig.Tree) (any, error) {
	switch t := v.(type) {
	case string:
		return substituteString(t, location, tree)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			replaced, err := substituteAny(child, location, tree)
			if err != nil {
				return nil, err
			}
			out[k] = replaced
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			replaced, err := substituteAny(child, location, tree)
			if err != nil {
				return nil, err
			}
			out[i] = replaced
		}
		return out, nil
	default:
		return v, nil
	}
}

// substituteString replaces every `@{a.b.c}` token in raw, failing with
// UnknownConfigRef on a miss and rejecting a runtime-namespace prefix inside
// the reference (spec §4.2).
func substituteString(raw, location string, tree *engineconfig.Tree) (string, error) {
	matches := configRefPattern.FindAllStringSubmatchIndex(raw, -1)
	if matches == nil {
		return raw, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		refStart, refEnd := m[2], m[3]

		sb.WriteString(raw[last:start])

		path := strings.TrimSpace(raw[refStart:refEnd])
		if ns := namespacePrefix(path); expr.IsNamespace(ns) {
			return "", corinterr.Compile(corinterr.KindDialectViolation, location,
				fmt.Sprintf("config reference @{%s} may not start with runtime namespace %q", path, ns), nil)
		}

		val, ok := tree.Lookup(path)
		if !ok {
			return "", corinterr.Compile(corinterr.KindUnknownConfigRef, location,
				fmt.Sprintf("unresolved config reference @{%s}", path), nil)
		}
		sb.WriteString(fmt.Sprintf("%v", val))

		last = end
	}
	sb.WriteString(raw[last:])
	return sb.String(), nil
}

func namespacePrefix(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}
