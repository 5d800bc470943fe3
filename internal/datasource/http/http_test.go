package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/ir"
)

func TestCallExtractsResponseMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"decision": {"score": 42}, "status": "ok"}`))
	}))
	defer srv.Close()

	b := New(nil)
	req := Request{
		Method:      "POST",
		URL:         srv.URL + "/v1/score",
		AuthType:    "bearer",
		AuthValue:   "test-token",
		ResponseMap: map[string]string{"score": "$.decision.score", "status": "$.status"},
	}

	out, err := b.Call(context.Background(), "risk-api", req)
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	scoreF, ok := out["score"].(float64)
	if !ok || scoreF != 42 {
		t.Fatalf("out[score] = %v", out["score"])
	}
	if out["status"] != "ok" {
		t.Fatalf("out[status] = %v", out["status"])
	}
}

func TestCallMapsClientErrorStatusToRecoverable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	b := New(nil)
	req := Request{Method: "GET", URL: srv.URL + "/v1/score"}

	_, err := b.Call(context.Background(), "risk-api", req)
	if err == nil {
		t.Fatalf("expected an error for a 400 response")
	}
	kind, ok := corinterr.KindOf(err)
	if !ok || kind != corinterr.KindExternalAPIError {
		t.Fatalf("KindOf(err) = (%v, %v), want (%v, true)", kind, ok, corinterr.KindExternalAPIError)
	}
}

func TestCallMapsServerErrorStatusAfterRetriesExhausted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := New(nil)
	req := Request{Method: "GET", URL: srv.URL + "/v1/score"}

	_, err := b.Call(context.Background(), "risk-api", req)
	if err == nil {
		t.Fatalf("expected an error for a 500 response")
	}
	if !corinterr.IsRecoverable(err) {
		t.Fatalf("expected a recoverable error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (DefaultRetryConfig.MaxAttempts)", calls)
	}
}

func TestCallQueryStringAndHeaderAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "42" {
			t.Errorf("query user_id = %q, want 42", got)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("X-Api-Key header = %q, want secret", got)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	b := New(nil)
	req := Request{
		Method:    "GET",
		URL:       srv.URL + "/v1/lookup",
		Query:     map[string]string{"user_id": "42"},
		AuthType:  "header",
		AuthKey:   "X-Api-Key",
		AuthValue: "secret",
	}

	if _, err := b.Call(context.Background(), "lookup-api", req); err != nil {
		t.Fatalf("Call() error: %v", err)
	}
}

func TestBuildRequestRendersPathAndQueryForGET(t *testing.T) {
	ep := &ir.EndpointIR{
		PathTemplate: "/v1/users/{user_id}",
		Method:       "GET",
	}
	req, err := BuildRequest("https://api.example.com", ep, map[string]string{"user_id": "42"}, Request{}, nil)
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}
	if req.URL != "https://api.example.com/v1/users/42" {
		t.Fatalf("URL = %q", req.URL)
	}
	if req.Query["user_id"] != "42" {
		t.Fatalf("Query = %v", req.Query)
	}
}

func TestBuildRequestNoQueryForPOST(t *testing.T) {
	ep := &ir.EndpointIR{PathTemplate: "/v1/users", Method: "POST"}
	req, err := BuildRequest("https://api.example.com", ep, map[string]string{"user_id": "42"}, Request{}, nil)
	if err != nil {
		t.Fatalf("BuildRequest() error: %v", err)
	}
	if req.Query != nil {
		t.Fatalf("Query = %v, want nil for a POST request", req.Query)
	}
}
