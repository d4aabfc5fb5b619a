package demo

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/param-gate/paramgate/internal/adapter/outbound/cel"
	"github.com/param-gate/paramgate/internal/domain/registry"
	"github.com/param-gate/paramgate/internal/service"
)

func demoMux(t *testing.T) *http.ServeMux {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := cel.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	reg := registry.New(logger)
	if err := RegisterActions(reg, service.NewSchemaService(engine, logger)); err != nil {
		t.Fatalf("RegisterActions failed: %v", err)
	}

	mux := http.NewServeMux()
	reg.Build(mux)
	return mux
}

func TestCreateUser_Valid(t *testing.T) {
	mux := demoMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{"name":"ada","email":"ada@lovelace.dev"}`))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %s", rec.Code, rec.Body)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["name"] != "ada" {
		t.Errorf("name = %v, want ada", resp["name"])
	}
}

func TestCreateUser_MissingFields(t *testing.T) {
	mux := demoMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body)
	}
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Errors["name"]) == 0 || len(body.Errors["email"]) == 0 {
		t.Errorf("expected name and email errors, got %v", body.Errors)
	}
}

func TestCreateUser_RuleRejectsExampleDomain(t *testing.T) {
	mux := demoMux(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{"name":"ada","email":"ada@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "example.com addresses are not accepted") {
		t.Errorf("expected rule message, got %s", rec.Body)
	}
}

func TestSearch_QueryParams(t *testing.T) {
	mux := demoMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/search?q=go", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/search?q=x", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("short query: status = %d, want 422", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/search", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing query: status = %d, want 422", rec.Code)
	}
}

func TestPing_Unwrapped(t *testing.T) {
	mux := demoMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != `{"pong":true}` {
		t.Errorf("unexpected body %q", rec.Body)
	}
}
