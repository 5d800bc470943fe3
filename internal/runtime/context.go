package runtime

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/corintai/corint/internal/expr"
)

// writableNamespaces mirrors the mutability table of spec §4.10: only
// features/api/service/vars may be written through the generic Set path.
// event/sys/env/results are populated through dedicated, narrower setters
// that only the engine itself calls (request boundary, engine injection,
// config substitution, and the Ruleset Evaluator respectively).
var writableNamespaces = map[expr.Namespace]bool{
	expr.NsFeatures: true,
	expr.NsAPI:      true,
	expr.NsService:  true,
	expr.NsVars:     true,
}

// ErrReadOnlyNamespace is returned by Set when the target namespace is not
// writable through the generic path.
var ErrReadOnlyNamespace = fmt.Errorf("namespace is read-only")

// Context is the per-request store of the eight namespaces (spec §4.10). It
// is created at the start of a request and discarded on reply.
type Context struct {
	TraceID string
	Trace   *Trace

	event    map[string]any
	features map[string]any
	api      map[string]any
	service  map[string]any
	vars     map[string]any
	sys      map[string]any
	env      map[string]any
	results  map[string]*SignalRecord

	regexCache sync.Map // pattern string -> *regexp.Regexp, shared across rule evaluation

	featureResolver func(c *Context, featureID string) error
	listChecker     func(listID string, value any) (member bool, known bool)
}

// SetFeatureResolver installs the Feature Engine hook used to lazily
// compute and memoize features.* values on first reference (spec §4.9).
func (c *Context) SetFeatureResolver(fn func(c *Context, featureID string) error) {
	c.featureResolver = fn
}

// ResolveFeature ensures features.<id> has been computed (or is already
// memoized, including as Unknown) before a condition reads it.
func (c *Context) ResolveFeature(featureID string) error {
	if _, already := c.features[featureID]; already {
		return nil
	}
	if c.featureResolver == nil {
		c.features[featureID] = Unknown{}
		return nil
	}
	return c.featureResolver(c, featureID)
}

// SetListChecker installs the List backend membership hook used by
// `in list.<id>` / `not in list.<id>` atoms.
func (c *Context) SetListChecker(fn func(listID string, value any) (member bool, known bool)) {
	c.listChecker = fn
}

// CheckListMembership reports whether value is a member of listID. known is
// false if the list backend could not answer (spec §4.8: "returning Unknown
// on transient backend error").
func (c *Context) CheckListMembership(listID string, value any) (member bool, known bool) {
	if c.listChecker == nil {
		return false, false
	}
	return c.listChecker(listID, value)
}

// New creates an ExecutionContext for one request.
func New(traceID string, event map[string]any, env map[string]any, sys map[string]any, traceEnabled bool) *Context {
	if event == nil {
		event = map[string]any{}
	}
	if env == nil {
		env = map[string]any{}
	}
	if sys == nil {
		sys = map[string]any{}
	}
	return &Context{
		TraceID:  traceID,
		Trace:    NewTrace(traceID, traceEnabled),
		event:    event,
		features: map[string]any{},
		api:      map[string]any{},
		service:  map[string]any{},
		vars:     map[string]any{},
		sys:      sys,
		env:      env,
		results:  map[string]*SignalRecord{},
	}
}

func (c *Context) namespaceRoot(ns expr.Namespace) (map[string]any, bool) {
	switch ns {
	case expr.NsEvent:
		return c.event, true
	case expr.NsFeatures:
		return c.features, true
	case expr.NsAPI:
		return c.api, true
	case expr.NsService:
		return c.service, true
	case expr.NsVars:
		return c.vars, true
	case expr.NsSys:
		return c.sys, true
	case expr.NsEnv:
		return c.env, true
	default:
		return nil, false
	}
}

// Get resolves a namespace Path to its value. A missing path (including a
// whole missing namespace) resolves to (nil, false) — Unknown, never an
// error (spec §4.10).
func (c *Context) Get(path expr.Path) (any, bool) {
	if path.Namespace == expr.NsResults {
		return c.getResults(path.Segments)
	}
	root, ok := c.namespaceRoot(path.Namespace)
	if !ok {
		return nil, false
	}
	return getPath(root, path.Segments)
}

// getResults supports `results.<ruleset_id>` and
// `results.<ruleset_id>.<field>` (signal/total_score/triggered_rules/reason).
func (c *Context) getResults(segments []string) (any, bool) {
	if len(segments) == 0 {
		return nil, false
	}
	rec, ok := c.results[segments[0]]
	if !ok {
		return nil, false
	}
	if len(segments) == 1 {
		return rec, true
	}
	switch segments[1] {
	case "signal":
		return rec.Signal, true
	case "total_score":
		return float64(rec.TotalScore), true
	case "triggered_rules":
		out := make([]any, len(rec.TriggeredRules))
		for i, r := range rec.TriggeredRules {
			out[i] = r
		}
		return out, true
	case "reason":
		return rec.Reason, true
	case "terminate":
		return rec.Terminate, true
	}
	return nil, false
}

// Set writes value at path within a writable namespace (features/api/
// service/vars). Writing to event/sys/env/results is rejected.
func (c *Context) Set(path expr.Path, value any) error {
	if !writableNamespaces[path.Namespace] {
		return fmt.Errorf("%w: %s", ErrReadOnlyNamespace, path.Namespace)
	}
	root, _ := c.namespaceRoot(path.Namespace)
	setPath(root, path.Segments, value)
	return nil
}

// SetResult records a ruleset's SignalRecord at results.<ruleset_id>. Only
// the Ruleset Evaluator calls this.
func (c *Context) SetResult(rulesetID string, rec *SignalRecord) {
	c.results[rulesetID] = rec
}

// Results returns the accumulated results map (for DecisionRecord assembly).
func (c *Context) Results() map[string]*SignalRecord {
	return c.results
}

// Lookup adapts Get to the expr.Lookup function signature used by template
// rendering.
func (c *Context) Lookup(path expr.Path) (any, bool) {
	return c.Get(path)
}

// CompiledRegex returns a cached compiled regexp for pattern, compiling and
// caching it on first use (spec §4.8: "Regex compilation is cached").
func (c *Context) CompiledRegex(pattern string) (*regexp.Regexp, error) {
	if v, ok := c.regexCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.regexCache.Store(pattern, re)
	return re, nil
}
