package semantic

import (
	"fmt"
	"sort"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/loader"
)

// compilePipelines compiles every `pipeline:` artifact: its steps (spec
// §4.6), DAG wellformedness, and its authoritative `decision:` block (spec
// §4.4 Open Question: decision is required, unlike a ruleset's conclusion).
func compilePipelines(
	repo *loader.UnresolvedRepo,
	rulesets map[string]*ir.RulesetIR,
	apis map[string]*ir.APIIR,
	services map[string]*ir.ServiceIR,
	features map[string]*ir.FeatureIR,
	lists map[string]*ir.ListIR,
) (map[string]*ir.PipelineIR, error) {
	out := make(map[string]*ir.PipelineIR, len(repo.Pipelines))
	ids := make([]string, 0, len(repo.Pipelines))
	for id := range repo.Pipelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := repo.Pipelines[id]

		if len(p.Decision) == 0 {
			return nil, corinterr.Compile(corinterr.KindMissingField, p.SourcePath,
				fmt.Sprintf("pipeline %q requires a decision block", id), nil)
		}
		if p.Entry == "" {
			return nil, corinterr.Compile(corinterr.KindMissingField, p.SourcePath,
				fmt.Sprintf("pipeline %q requires an entry step", id), nil)
		}
		if _, ok := p.Steps[p.Entry]; !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, p.SourcePath,
				fmt.Sprintf("pipeline %q entry %q is not a declared step", id, p.Entry), nil)
		}

		var pipelineWhen *expr.Condition
		if p.When != nil {
			cr, err := expr.CompileCondition(p.When, p.SourcePath)
			if err != nil {
				return nil, err
			}
			if err := validateRefs(cr, features, lists, p.SourcePath); err != nil {
				return nil, err
			}
			pipelineWhen = cr.Condition
		}

		steps := make(map[string]*ir.StepIR, len(p.Steps))
		stepIDs := make([]string, 0, len(p.Steps))
		for sid := range p.Steps {
			stepIDs = append(stepIDs, sid)
		}
		sort.Strings(stepIDs)

		for _, sid := range stepIDs {
			step := p.Steps[sid]
			stepIR, err := compileStep(sid, step, p, rulesets, apis, services, repo, features, lists)
			if err != nil {
				return nil, err
			}
			steps[sid] = stepIR
		}

		if err := validateStepTargets(p, steps); err != nil {
			return nil, err
		}
		if err := detectStepCycle(p, steps); err != nil {
			return nil, err
		}

		decision, err := compileDecisionArms(p.Decision, p.SourcePath, features, lists)
		if err != nil {
			return nil, err
		}

		out[id] = &ir.PipelineIR{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			When:        pipelineWhen,
			Entry:       p.Entry,
			Steps:       steps,
			Decision:    decision,
		}
	}

	// Sub-pipeline step references are only resolvable by id against the
	// full repository, so validate them in a second pass once every
	// pipeline id is known to be declared.
	for id, p := range out {
		for sid, step := range p.Steps {
			if step.Type != artifact.StepPipeline {
				continue
			}
			if _, ok := out[step.SubPipelineID]; !ok {
				return nil, corinterr.Compile(corinterr.KindUnknownRef, "",
					fmt.Sprintf("pipeline %q step %q references unknown pipeline %q", id, sid, step.SubPipelineID), nil)
			}
		}
	}

	return out, nil
}

func compileStep(
	id string,
	step artifact.Step,
	p *artifact.Pipeline,
	rulesets map[string]*ir.RulesetIR,
	apis map[string]*ir.APIIR,
	services map[string]*ir.ServiceIR,
	repo *loader.UnresolvedRepo,
	features map[string]*ir.FeatureIR,
	lists map[string]*ir.ListIR,
) (*ir.StepIR, error) {
	loc := p.SourcePath

	var when *expr.Condition
	if step.When != nil {
		cr, err := expr.CompileCondition(step.When, loc)
		if err != nil {
			return nil, err
		}
		if err := validateRefs(cr, features, lists, loc); err != nil {
			return nil, err
		}
		when = cr.Condition
	}

	stepIR := &ir.StepIR{
		ID:   id,
		Type: step.Type,
		When: when,
		Next: step.Next,
	}

	switch step.Type {
	case artifact.StepRuleset:
		if step.Ruleset == "" {
			return nil, corinterr.Compile(corinterr.KindMissingField, loc,
				fmt.Sprintf("pipeline %q step %q requires ruleset", p.ID, id), nil)
		}
		if _, ok := rulesets[step.Ruleset]; !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, loc,
				fmt.Sprintf("pipeline %q step %q references unknown ruleset %q", p.ID, id, step.Ruleset), nil)
		}
		stepIR.RulesetID = step.Ruleset

	case artifact.StepRouter:
		if len(step.Routes) == 0 {
			return nil, corinterr.Compile(corinterr.KindMissingField, loc,
				fmt.Sprintf("pipeline %q router step %q requires routes", p.ID, id), nil)
		}
		for _, route := range step.Routes {
			cr, err := expr.CompileCondition(route.When, loc)
			if err != nil {
				return nil, err
			}
			if err := validateRefs(cr, features, lists, loc); err != nil {
				return nil, err
			}
			stepIR.Routes = append(stepIR.Routes, ir.RouteIR{When: cr.Condition, Next: route.Next})
		}
		stepIR.Default = step.Default

	case artifact.StepAPI:
		if step.API == "" || step.Endpoint == "" {
			return nil, corinterr.Compile(corinterr.KindMissingField, loc,
				fmt.Sprintf("pipeline %q api step %q requires api and endpoint", p.ID, id), nil)
		}
		api, ok := apis[step.API]
		if !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, loc,
				fmt.Sprintf("pipeline %q step %q references unknown api %q", p.ID, id, step.API), nil)
		}
		if _, ok := api.Endpoints[step.Endpoint]; !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, loc,
				fmt.Sprintf("pipeline %q step %q references unknown endpoint %q on api %q", p.ID, id, step.Endpoint, step.API), nil)
		}
		stepIR.APIID = step.API
		stepIR.Endpoint = step.Endpoint
		stepIR.Output = step.Output
		if stepIR.Output == "" {
			stepIR.Output = step.API + "." + step.Endpoint
		}
		if len(step.Params) > 0 {
			stepIR.Params = make(map[string]*expr.Template, len(step.Params))
			for k, v := range step.Params {
				s, ok := v.(string)
				if !ok {
					return nil, corinterr.Compile(corinterr.KindInvalidExpression, loc,
						fmt.Sprintf("pipeline %q step %q param %q must be a string template", p.ID, id, k), nil)
				}
				tmpl, err := expr.CompileTemplate(s, loc)
				if err != nil {
					return nil, err
				}
				stepIR.Params[k] = tmpl
			}
		}
		stepIR.Timeout = engineconfig.ParseDurationOrDefault(step.Timeout, api.Timeout)
		if step.OnError != nil {
			stepIR.HasOnError = true
			stepIR.OnErrorFallback = step.OnError.Fallback
		}

	case artifact.StepService:
		if step.Service == "" || step.Endpoint == "" {
			return nil, corinterr.Compile(corinterr.KindMissingField, loc,
				fmt.Sprintf("pipeline %q service step %q requires service and endpoint", p.ID, id), nil)
		}
		svc, ok := services[step.Service]
		if !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, loc,
				fmt.Sprintf("pipeline %q step %q references unknown service %q", p.ID, id, step.Service), nil)
		}
		if _, ok := svc.Endpoints[step.Endpoint]; !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, loc,
				fmt.Sprintf("pipeline %q step %q references unknown endpoint %q on service %q", p.ID, id, step.Endpoint, step.Service), nil)
		}
		stepIR.ServiceID = step.Service
		stepIR.Endpoint = step.Endpoint
		stepIR.Output = step.Output
		if stepIR.Output == "" {
			stepIR.Output = step.Service + "." + step.Endpoint
		}
		if len(step.Params) > 0 {
			stepIR.Params = make(map[string]*expr.Template, len(step.Params))
			for k, v := range step.Params {
				s, ok := v.(string)
				if !ok {
					return nil, corinterr.Compile(corinterr.KindInvalidExpression, loc,
						fmt.Sprintf("pipeline %q step %q param %q must be a string template", p.ID, id, k), nil)
				}
				tmpl, err := expr.CompileTemplate(s, loc)
				if err != nil {
					return nil, err
				}
				stepIR.Params[k] = tmpl
			}
		}
		stepIR.Timeout = engineconfig.ParseDurationOrDefault(step.Timeout, svc.Timeout)
		if step.OnError != nil {
			stepIR.HasOnError = true
			stepIR.OnErrorFallback = step.OnError.Fallback
		}

	case artifact.StepPipeline:
		if step.Pipeline == "" {
			return nil, corinterr.Compile(corinterr.KindMissingField, loc,
				fmt.Sprintf("pipeline %q step %q requires pipeline", p.ID, id), nil)
		}
		if _, ok := repo.Pipelines[step.Pipeline]; !ok {
			return nil, corinterr.Compile(corinterr.KindUnknownRef, loc,
				fmt.Sprintf("pipeline %q step %q references unknown pipeline %q", p.ID, id, step.Pipeline), nil)
		}
		stepIR.SubPipelineID = step.Pipeline

	default:
		return nil, corinterr.Compile(corinterr.KindDialectViolation, loc,
			fmt.Sprintf("pipeline %q step %q has unknown type %q", p.ID, id, step.Type), nil)
	}

	return stepIR, nil
}

// validateStepTargets checks every `next`/route/default target names an
// existing step in the same pipeline, or is empty (a terminal step).
func validateStepTargets(p *artifact.Pipeline, steps map[string]*ir.StepIR) error {
	exists := func(target string) bool {
		if target == "" {
			return true
		}
		_, ok := steps[target]
		return ok
	}
	for sid, step := range steps {
		if !exists(step.Next) {
			return corinterr.Compile(corinterr.KindUnknownRef, p.SourcePath,
				fmt.Sprintf("pipeline %q step %q has unknown next %q", p.ID, sid, step.Next), nil)
		}
		if !exists(step.Default) {
			return corinterr.Compile(corinterr.KindUnknownRef, p.SourcePath,
				fmt.Sprintf("pipeline %q step %q has unknown default %q", p.ID, sid, step.Default), nil)
		}
		for _, route := range step.Routes {
			if !exists(route.Next) {
				return corinterr.Compile(corinterr.KindUnknownRef, p.SourcePath,
					fmt.Sprintf("pipeline %q step %q has a route with unknown next %q", p.ID, sid, route.Next), nil)
			}
		}
	}
	return nil
}

// detectStepCycle walks every possible execution path from Entry and fails
// if any step is reachable twice on the same path (spec §4.6 DAG
// wellformedness).
func detectStepCycle(p *artifact.Pipeline, steps map[string]*ir.StepIR) error {
	var walk func(id string, path map[string]bool) error
	walk = func(id string, path map[string]bool) error {
		if path[id] {
			return corinterr.Compile(corinterr.KindPipelineCycle, p.SourcePath,
				fmt.Sprintf("pipeline %q contains a step cycle reaching %q again", p.ID, id), nil)
		}
		step, ok := steps[id]
		if !ok || id == "" {
			return nil
		}
		path[id] = true
		defer delete(path, id)

		targets := []string{step.Next, step.Default}
		for _, route := range step.Routes {
			targets = append(targets, route.Next)
		}
		for _, t := range targets {
			if t == "" {
				continue
			}
			if err := walk(t, path); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(p.Entry, map[string]bool{})
}

// compileDecisionArms compiles a pipeline's authoritative `decision:` arms.
func compileDecisionArms(arms []artifact.DecisionArm, location string, features map[string]*ir.FeatureIR, lists map[string]*ir.ListIR) ([]ir.DecisionArmIR, error) {
	out := make([]ir.DecisionArmIR, 0, len(arms))
	for _, a := range arms {
		cr, err := expr.CompileCondition(a.When, location)
		if err != nil {
			return nil, err
		}
		if err := validateRefs(cr, features, lists, location); err != nil {
			return nil, err
		}

		var reasonTmpl *expr.Template
		if a.Reason != "" {
			reasonTmpl, err = expr.CompileTemplate(a.Reason, location)
			if err != nil {
				return nil, err
			}
		}

		out = append(out, ir.DecisionArmIR{
			When:    cr.Condition,
			Result:  a.Result,
			Reason:  reasonTmpl,
			Actions: a.Actions,
			Default: a.Default,
		})
	}
	return out, nil
}
