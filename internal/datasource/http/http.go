// Package http is the HTTP backend of the Datasource Gateway: it issues
// api/service step requests built from compiled ir.APIIR/ir.ServiceIR/
// ir.EndpointIR shapes, extracts the declared response_map via
// PaesslerAG/jsonpath, and wraps every call in the standard resilience
// policy (spec §4.6 api/service steps, §7).
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/corintlog"
	"github.com/corintai/corint/internal/datasource/resilience"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/ir"
)

// Request is a fully rendered HTTP call ready to send.
type Request struct {
	Method      string
	URL         string
	Query       map[string]string
	Body        string
	AuthType    string
	AuthKey     string
	AuthValue   string
	ResponseMap map[string]string
	Timeout     time.Duration
}

// Backend issues HTTP requests on behalf of api/service steps, one
// *http.Client shared across every call, guarded per-datasource by a
// circuit breaker.
type Backend struct {
	client *http.Client
	cbs    map[string]*resilience.CircuitBreaker
	retry  resilience.RetryConfig
	logger *corintlog.Logger
}

// New creates a Backend with a shared HTTP client.
func New(logger *corintlog.Logger) *Backend {
	return &Backend{
		client: &http.Client{},
		cbs:    make(map[string]*resilience.CircuitBreaker),
		retry:  resilience.DefaultRetryConfig(),
		logger: logger,
	}
}

func (b *Backend) breakerFor(id string) *resilience.CircuitBreaker {
	if cb, ok := b.cbs[id]; ok {
		return cb
	}
	cb := resilience.New(resilience.DatasourceCBConfig(id, b.logger))
	b.cbs[id] = cb
	return cb
}

// Call issues req identified by id (the owning api_id or service_id, for
// circuit-breaker bookkeeping) and extracts req.ResponseMap from the
// response body, returning the mapped fields keyed by their declared
// output names.
func (b *Backend) Call(ctx context.Context, id string, req Request) (map[string]any, error) {
	cb := b.breakerFor(id)

	var result map[string]any
	cbErr := cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, b.retry, func() error {
			mapped, err := b.doOnce(ctx, req)
			if err != nil {
				return err
			}
			result = mapped
			return nil
		})
	})

	if cbErr != nil {
		return nil, mapHTTPError(cbErr)
	}
	return result, nil
}

func (b *Backend) doOnce(ctx context.Context, req Request) (map[string]any, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	url := req.URL
	if len(req.Query) > 0 {
		var parts []string
		for k, v := range req.Query {
			parts = append(parts, k+"="+v)
		}
		url += "?" + strings.Join(parts, "&")
	}

	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = bytes.NewBufferString(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	if req.Body != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	applyAuth(httpReq, req)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("http: server error %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, corinterr.Recoverable(corinterr.KindExternalAPIError,
			fmt.Sprintf("http status %d", resp.StatusCode), nil)
	}

	return extractResponseMap(raw, req.ResponseMap)
}

func applyAuth(httpReq *http.Request, req Request) {
	switch req.AuthType {
	case "header":
		httpReq.Header.Set(req.AuthKey, req.AuthValue)
	case "bearer":
		httpReq.Header.Set("Authorization", "Bearer "+req.AuthValue)
	case "query":
		q := httpReq.URL.Query()
		q.Set(req.AuthKey, req.AuthValue)
		httpReq.URL.RawQuery = q.Encode()
	}
}

// extractResponseMap decodes raw as JSON and pulls out each declared
// response_map field via its JSONPath expression.
func extractResponseMap(raw []byte, responseMap map[string]string) (map[string]any, error) {
	if len(responseMap) == 0 {
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("http: decode response body: %w", err)
	}

	out := make(map[string]any, len(responseMap))
	for field, path := range responseMap {
		v, err := jsonpath.Get(path, doc)
		if err != nil {
			out[field] = nil
			continue
		}
		out[field] = v
	}
	return out, nil
}

// BuildRequest renders a compiled api/service endpoint plus step params
// into a ready-to-send Request. lookup resolves event/vars/results paths
// referenced by the endpoint's params/body templates.
func BuildRequest(baseURL string, ep *ir.EndpointIR, renderedParams map[string]string, auth Request, lookup expr.Lookup) (Request, error) {
	body := ""
	if ep.RequestBody != nil {
		rendered, err := ep.RequestBody.Render(lookup)
		if err != nil {
			return Request{}, err
		}
		body = rendered
	}

	path := expr.RenderURLPath(ep.PathTemplate, renderedParams)

	req := Request{
		Method:      ep.Method,
		URL:         baseURL + path,
		Body:        body,
		AuthType:    auth.AuthType,
		AuthKey:     auth.AuthKey,
		AuthValue:   auth.AuthValue,
		ResponseMap: ep.ResponseMap,
		Timeout:     ep.Timeout,
	}

	if req.Method == "GET" || req.Method == "DELETE" {
		req.Query = renderedParams
	}

	return req, nil
}

func mapHTTPError(err error) error {
	var ce *corinterr.Error
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "http datasource circuit open", err)
	case errors.Is(err, context.DeadlineExceeded):
		return corinterr.Recoverable(corinterr.KindTimeout, "http request deadline exceeded", err)
	default:
		return corinterr.Recoverable(corinterr.KindExternalAPIError, "http request failed", err)
	}
}
