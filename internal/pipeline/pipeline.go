// Package pipeline implements the DAG step-machine executor (spec §4.6):
// dispatching ruleset/router/api/service/pipeline steps in sequence from a
// pipeline's entry step, and rendering the final DecisionRecord from the
// pipeline's decision arms.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/condeval"
	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/datasource"
	datasourcehttp "github.com/corintai/corint/internal/datasource/http"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/ruleset"
	"github.com/corintai/corint/internal/runtime"
)

// maxSteps bounds one pipeline invocation's step count as a last-resort
// guard against a cycle that somehow slipped past compile-time detection.
const maxSteps = 1000

// Executor runs compiled pipelines against a runtime.Context.
type Executor struct {
	repo    *ir.Repository
	gateway *datasource.Gateway
}

// New creates a pipeline Executor.
func New(repo *ir.Repository, gateway *datasource.Gateway) *Executor {
	return &Executor{repo: repo, gateway: gateway}
}

// Run executes pipeline p starting at its entry step and returns the
// DecisionRecord produced by the first matching decision arm.
func (e *Executor) Run(ctx *runtime.Context, p *ir.PipelineIR) (*runtime.DecisionRecord, error) {
	if condeval.Eval(p.When, ctx, nil) != condeval.True {
		return nil, nil
	}

	stepID := p.Entry
	visited := 0
	for stepID != "" {
		visited++
		if visited > maxSteps {
			return nil, corinterr.Fatal(corinterr.KindInternalInvariant, "pipeline exceeded max step count", nil)
		}

		step, ok := p.Steps[stepID]
		if !ok {
			return nil, corinterr.Fatal(corinterr.KindStepNotFound, "pipeline step "+stepID+" not found", nil)
		}

		if condeval.Eval(step.When, ctx, nil) != condeval.True {
			stepID = step.Next
			continue
		}

		ctx.Trace.Append(runtime.TraceStepDispatched, map[string]any{"pipeline_id": p.ID, "step_id": step.ID, "type": string(step.Type)})

		next, err := e.dispatch(ctx, step)
		if err != nil {
			return nil, err
		}
		stepID = next
	}

	return e.decide(ctx, p), nil
}

func (e *Executor) dispatch(ctx *runtime.Context, step *ir.StepIR) (string, error) {
	switch step.Type {
	case artifact.StepRuleset:
		return e.dispatchRuleset(ctx, step)
	case artifact.StepRouter:
		return e.dispatchRouter(ctx, step), nil
	case artifact.StepAPI:
		return step.Next, e.dispatchAPI(ctx, step)
	case artifact.StepService:
		return step.Next, e.dispatchService(ctx, step)
	case artifact.StepPipeline:
		return step.Next, e.dispatchSubPipeline(ctx, step)
	default:
		return step.Next, nil
	}
}

func (e *Executor) dispatchRuleset(ctx *runtime.Context, step *ir.StepIR) (string, error) {
	rs, ok := e.repo.Rulesets[step.RulesetID]
	if !ok {
		return "", corinterr.Fatal(corinterr.KindStepNotFound, "ruleset "+step.RulesetID+" not found", nil)
	}
	// A conclusion arm's terminate: true only aborts further arm evaluation
	// within the Ruleset Evaluator (spec §4.6 tie-breaks); it does not abort
	// the pipeline step graph.
	ruleset.Evaluate(rs, ctx)
	return step.Next, nil
}

func (e *Executor) dispatchRouter(ctx *runtime.Context, step *ir.StepIR) string {
	for _, route := range step.Routes {
		if condeval.Eval(route.When, ctx, nil) == condeval.True {
			return route.Next
		}
	}
	return step.Default
}

func (e *Executor) dispatchAPI(ctx *runtime.Context, step *ir.StepIR) error {
	api, ok := e.repo.APIs[step.APIID]
	if !ok {
		return corinterr.Fatal(corinterr.KindStepNotFound, "api "+step.APIID+" not found", nil)
	}
	ep, ok := api.Endpoints[step.Endpoint]
	if !ok {
		return corinterr.Fatal(corinterr.KindStepNotFound, "api endpoint "+step.Endpoint+" not found", nil)
	}

	baseURL, err := api.BaseURLTemplate.Render(ctx.Lookup)
	if err != nil {
		return e.handleStepError(ctx, step, err)
	}

	params, err := renderParams(step.Params, ctx.Lookup)
	if err != nil {
		return e.handleStepError(ctx, step, err)
	}

	auth := datasourcehttp.Request{}
	if api.AuthType != "" {
		auth.AuthType = api.AuthType
		auth.AuthKey = api.AuthKey
		if api.AuthValueTemplate != nil {
			v, err := api.AuthValueTemplate.Render(ctx.Lookup)
			if err == nil {
				auth.AuthValue = v
			}
		}
	}

	req, err := datasourcehttp.BuildRequest(baseURL, ep, params, auth, ctx.Lookup)
	if err != nil {
		return e.handleStepError(ctx, step, err)
	}
	if step.Timeout > 0 {
		req.Timeout = step.Timeout
	}

	callCtx, cancel := context.WithTimeout(context.Background(), timeoutOrDefault(req.Timeout))
	defer cancel()

	result, err := e.gateway.CallEndpoint(callCtx, step.APIID, endpointCacheKey(step.APIID, step.Endpoint), req)
	if err != nil {
		return e.handleStepError(ctx, step, err)
	}

	return e.storeOutput(ctx, step.Output, expr.NsAPI, result)
}

func (e *Executor) dispatchService(ctx *runtime.Context, step *ir.StepIR) error {
	svc, ok := e.repo.Services[step.ServiceID]
	if !ok {
		return corinterr.Fatal(corinterr.KindStepNotFound, "service "+step.ServiceID+" not found", nil)
	}
	ep, ok := svc.Endpoints[step.Endpoint]
	if !ok {
		return corinterr.Fatal(corinterr.KindStepNotFound, "service endpoint "+step.Endpoint+" not found", nil)
	}

	addr, err := serviceAddress(svc, ctx.Lookup)
	if err != nil {
		return e.handleStepError(ctx, step, err)
	}

	params, err := renderParams(step.Params, ctx.Lookup)
	if err != nil {
		return e.handleStepError(ctx, step, err)
	}

	req, err := datasourcehttp.BuildRequest(addr, ep, params, datasourcehttp.Request{}, ctx.Lookup)
	if err != nil {
		return e.handleStepError(ctx, step, err)
	}
	if step.Timeout > 0 {
		req.Timeout = step.Timeout
	}

	cacheKey := endpointCacheKey(step.ServiceID, step.Endpoint)

	if svc.Kind == artifact.ServiceMQ && !ep.Sync {
		go func() {
			callCtx, cancel := context.WithTimeout(context.Background(), timeoutOrDefault(req.Timeout))
			defer cancel()
			_, _ = e.gateway.CallEndpoint(callCtx, step.ServiceID, cacheKey, req)
		}()
		return nil
	}

	callCtx, cancel := context.WithTimeout(context.Background(), timeoutOrDefault(req.Timeout))
	defer cancel()

	result, err := e.gateway.CallEndpoint(callCtx, step.ServiceID, cacheKey, req)
	if err != nil {
		return e.handleStepError(ctx, step, err)
	}

	return e.storeOutput(ctx, step.Output, expr.NsService, result)
}

func serviceAddress(svc *ir.ServiceIR, lookup expr.Lookup) (string, error) {
	if svc.AddressTemplate != nil {
		return svc.AddressTemplate.Render(lookup)
	}
	return svc.BrokerTemplate.Render(lookup)
}

func (e *Executor) dispatchSubPipeline(ctx *runtime.Context, step *ir.StepIR) error {
	sub, ok := e.repo.Pipelines[step.SubPipelineID]
	if !ok {
		return corinterr.Fatal(corinterr.KindStepNotFound, "pipeline "+step.SubPipelineID+" not found", nil)
	}
	_, err := e.Run(ctx, sub)
	return err
}

// handleStepError applies the on_error fallback chain (spec §7:
// on_error.fallback, then the endpoint's own response.fallback, then null)
// for a recoverable api/service call failure. A fatal error still aborts
// the pipeline.
func (e *Executor) handleStepError(ctx *runtime.Context, step *ir.StepIR, err error) error {
	if !corinterr.IsRecoverable(err) {
		return err
	}

	ctx.Trace.Append(runtime.TraceRecoverableErr, map[string]any{"step_id": step.ID, "error": err.Error()})

	var fallbackVal any
	switch {
	case step.HasOnError:
		fallbackVal = step.OnErrorFallback
	default:
		fallbackVal = e.fallbackFor(step)
	}

	ctx.Trace.Append(runtime.TraceFallbackUsed, map[string]any{"step_id": step.ID})
	return e.storeOutput(ctx, step.Output, outputNamespace(step), fallbackVal)
}

// fallbackFor resolves the §7 fallback chain once on_error.fallback is
// absent: the endpoint's own declared response.fallback, then the gateway's
// cached last-known-good response, then nil.
func (e *Executor) fallbackFor(step *ir.StepIR) any {
	if step.Type == artifact.StepAPI {
		if api, ok := e.repo.APIs[step.APIID]; ok {
			if ep, ok := api.Endpoints[step.Endpoint]; ok && ep.HasFallback {
				return ep.Fallback
			}
		}
		if cached, ok := e.gateway.CachedEndpointResult(endpointCacheKey(step.APIID, step.Endpoint)); ok {
			return cached
		}
		return nil
	}
	if step.Type == artifact.StepService {
		if svc, ok := e.repo.Services[step.ServiceID]; ok {
			if ep, ok := svc.Endpoints[step.Endpoint]; ok && ep.HasFallback {
				return ep.Fallback
			}
		}
		if cached, ok := e.gateway.CachedEndpointResult(endpointCacheKey(step.ServiceID, step.Endpoint)); ok {
			return cached
		}
	}
	return nil
}

func endpointCacheKey(ownerID, endpoint string) string {
	return ownerID + "." + endpoint
}

func outputNamespace(step *ir.StepIR) expr.Namespace {
	if step.Type == artifact.StepAPI {
		return expr.NsAPI
	}
	return expr.NsService
}

func (e *Executor) storeOutput(ctx *runtime.Context, output string, ns expr.Namespace, value any) error {
	if output == "" {
		return nil
	}
	return ctx.Set(expr.Path{Namespace: ns, Segments: strings.Split(output, ".")}, value)
}

func renderParams(params map[string]*expr.Template, lookup expr.Lookup) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(params))
	for k, tmpl := range params {
		v, err := tmpl.Render(lookup)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// decide renders the pipeline's decision arms into the final DecisionRecord
// (spec §4.6). The first matching arm wins; a `default: true` arm matches
// unconditionally as the catch-all.
func (e *Executor) decide(ctx *runtime.Context, p *ir.PipelineIR) *runtime.DecisionRecord {
	for _, arm := range p.Decision {
		matched := arm.Default || condeval.Eval(arm.When, ctx, nil).Bool()
		if !matched {
			continue
		}
		rec := &runtime.DecisionRecord{Result: arm.Result, Actions: arm.Actions, Signals: ctx.Results()}
		if arm.Reason != nil {
			if reason, err := arm.Reason.Render(ctx.Lookup); err == nil {
				rec.Reason = reason
			}
		}
		rec.Trace = ctx.Trace.Events()
		return rec
	}
	return &runtime.DecisionRecord{Signals: ctx.Results(), Trace: ctx.Trace.Events()}
}
