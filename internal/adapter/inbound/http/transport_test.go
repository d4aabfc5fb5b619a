package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/param-gate/paramgate/internal/domain/registry"
	"github.com/param-gate/paramgate/internal/service"
	"github.com/param-gate/paramgate/pkg/changeset"
	"github.com/param-gate/paramgate/pkg/validate"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testTransport builds a transport around a small registry with one
// validated action and returns its root handler.
func testTransport(t *testing.T, opts ...Option) http.Handler {
	t.Helper()

	nameRequired := validate.Func(func(r *http.Request, params map[string]any) *changeset.Changeset {
		cs := changeset.New(params)
		if _, ok := params["name"]; !ok {
			cs.AddError("name", "can't be blank")
		}
		return cs
	})

	reg := registry.New(discardLogger())
	reg.MustRegister(registry.Action{
		Name: "create_user", Method: "POST", Pattern: "/users",
		Validator: nameRequired,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}),
	})

	promReg := prometheus.NewRegistry()
	opts = append([]Option{
		WithLogger(discardLogger()),
		WithMetrics(NewMetrics(promReg), promReg),
	}, opts...)

	return NewTransport(reg, opts...).buildHandler()
}

func TestTransport_DispatchesValidatedAction(t *testing.T) {
	handler := testTransport(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{"name":"ada"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestTransport_RejectsInvalidParams(t *testing.T) {
	handler := testTransport(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body)
	}
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("rejection body is not JSON: %v", err)
	}
	if len(body.Errors["name"]) == 0 {
		t.Errorf("expected name error, got %v", body.Errors)
	}
}

func TestTransport_HealthEndpoint(t *testing.T) {
	handler := testTransport(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("healthy")) {
		t.Errorf("unexpected health body: %s", rec.Body)
	}
}

func TestTransport_MetricsEndpoint(t *testing.T) {
	handler := testTransport(t)

	// Generate one request so counters exist.
	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{"name":"ada"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "paramgate_requests_total") {
		t.Errorf("metrics output missing paramgate_requests_total:\n%s", rec.Body)
	}
}

func TestTransport_DocsEndpoint(t *testing.T) {
	reg := registry.New(discardLogger())
	reg.MustRegister(registry.Action{
		Name: "ping", Method: "GET", Pattern: "/ping",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	})

	promReg := prometheus.NewRegistry()
	tr := NewTransport(reg,
		WithLogger(discardLogger()),
		WithMetrics(NewMetrics(promReg), promReg),
		WithDocs(service.NewDocsService(reg, "demo", "0.1.0")),
	)
	handler := tr.buildHandler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/docs/openapi.yaml", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("document is not valid YAML: %v", err)
	}
	if doc["openapi"] != "3.0.3" {
		t.Errorf("unexpected openapi version: %v", doc["openapi"])
	}
}

func TestTransport_PreservesClientRequestID(t *testing.T) {
	handler := testTransport(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/favicon.ico", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
}
