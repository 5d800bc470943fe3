package semantic

import (
	"fmt"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
	"github.com/corintai/corint/internal/loader"
)

// compileAPIs compiles every `apis:` entry (spec §4.1, §4.6 api steps).
func compileAPIs(repo *loader.UnresolvedRepo) (map[string]*ir.APIIR, error) {
	defaults := engineconfig.DefaultTimeouts()

	out := make(map[string]*ir.APIIR, len(repo.APIs))
	for id, a := range repo.APIs {
		if a.BaseURL == "" {
			return nil, corinterr.Compile(corinterr.KindMissingField, a.SourcePath,
				fmt.Sprintf("api %q requires base_url", id), nil)
		}
		baseTmpl, err := expr.CompileTemplate(a.BaseURL, a.SourcePath)
		if err != nil {
			return nil, err
		}

		ai := &ir.APIIR{
			ID:              a.ID,
			BaseURLTemplate: baseTmpl,
			Timeout:         engineconfig.ParseDurationOrDefault(a.Timeout, defaults.HTTP),
			Endpoints:       make(map[string]*ir.EndpointIR, len(a.Endpoints)),
		}

		if a.Auth != nil {
			ai.AuthType = a.Auth.Type
			ai.AuthKey = a.Auth.Key
			if a.Auth.Value != "" {
				vt, err := expr.CompileTemplate(a.Auth.Value, a.SourcePath)
				if err != nil {
					return nil, err
				}
				ai.AuthValueTemplate = vt
			}
		}

		for name, ep := range a.Endpoints {
			epIR, err := compileEndpoint(ep, a.SourcePath, ai.Timeout)
			if err != nil {
				return nil, err
			}
			ai.Endpoints[name] = epIR
		}

		out[id] = ai
	}
	return out, nil
}

// compileServices compiles every `services:` entry (spec §4.1, §4.6 service
// steps). Kind is restricted to the three transport shapes spec §6 names.
func compileServices(repo *loader.UnresolvedRepo) (map[string]*ir.ServiceIR, error) {
	defaults := engineconfig.DefaultTimeouts()

	out := make(map[string]*ir.ServiceIR, len(repo.Services))
	for id, s := range repo.Services {
		switch s.Kind {
		case artifact.ServiceHTTP, artifact.ServiceGRPC, artifact.ServiceMQ:
		default:
			return nil, corinterr.Compile(corinterr.KindDialectViolation, s.SourcePath,
				fmt.Sprintf("service %q has unknown kind %q", id, s.Kind), nil)
		}

		si := &ir.ServiceIR{
			ID:        s.ID,
			Kind:      s.Kind,
			Timeout:   engineconfig.ParseDurationOrDefault(s.Timeout, defaults.Service),
			Endpoints: make(map[string]*ir.EndpointIR, len(s.Endpoints)),
		}

		if s.Address != "" {
			tmpl, err := expr.CompileTemplate(s.Address, s.SourcePath)
			if err != nil {
				return nil, err
			}
			si.AddressTemplate = tmpl
		}
		if s.Broker != "" {
			tmpl, err := expr.CompileTemplate(s.Broker, s.SourcePath)
			if err != nil {
				return nil, err
			}
			si.BrokerTemplate = tmpl
		}
		if s.Kind == artifact.ServiceMQ && s.Broker == "" {
			return nil, corinterr.Compile(corinterr.KindMissingField, s.SourcePath,
				fmt.Sprintf("message_queue service %q requires broker", id), nil)
		}
		if s.Kind != artifact.ServiceMQ && s.Address == "" {
			return nil, corinterr.Compile(corinterr.KindMissingField, s.SourcePath,
				fmt.Sprintf("service %q requires address", id), nil)
		}

		for name, ep := range s.Endpoints {
			epIR, err := compileEndpoint(ep, s.SourcePath, si.Timeout)
			if err != nil {
				return nil, err
			}
			si.Endpoints[name] = epIR
		}

		out[id] = si
	}
	return out, nil
}
