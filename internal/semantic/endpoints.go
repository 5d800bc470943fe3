package semantic

import (
	"strings"
	"time"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
)

// compileEndpoint compiles one named endpoint shared by both `apis:` and
// `services:` artifacts (spec §4.3, §4.6 api/service steps).
func compileEndpoint(ep artifact.Endpoint, location string, defaultTimeout time.Duration) (*ir.EndpointIR, error) {
	method := strings.ToUpper(ep.Method)
	if method == "" {
		method = "GET"
	}

	epIR := &ir.EndpointIR{
		PathTemplate: ep.Path,
		Method:       method,
		ResponseMap:  ep.ResponseMap,
		Fallback:     ep.Fallback,
		HasFallback:  ep.Fallback != nil,
		Timeout:      engineconfig.ParseDurationOrDefault(ep.Timeout, defaultTimeout),
		Topic:        ep.Topic,
		Sync:         ep.Sync,
	}

	if len(ep.Params) > 0 {
		epIR.Params = make(map[string]*expr.Template, len(ep.Params))
		for k, v := range ep.Params {
			tmpl, err := expr.CompileTemplate(v, location)
			if err != nil {
				return nil, err
			}
			epIR.Params[k] = tmpl
		}
	}

	if ep.RequestBody != "" {
		tmpl, err := expr.CompileTemplate(ep.RequestBody, location)
		if err != nil {
			return nil, err
		}
		epIR.RequestBody = tmpl
	}

	return epIR, nil
}
