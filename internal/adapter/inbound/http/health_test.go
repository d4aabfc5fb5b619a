package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	auditstore "github.com/param-gate/paramgate/internal/adapter/outbound/audit"
	"github.com/param-gate/paramgate/internal/service"
)

func TestHealthChecker_Healthy(t *testing.T) {
	svc := service.NewAuditService(auditstore.NewStdoutStore(io.Discard), discardLogger())
	hc := NewHealthChecker(svc, "1.2.3")

	rec := httptest.NewRecorder()
	hc.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", resp.Version)
	}
	if _, ok := resp.Checks["audit"]; !ok {
		t.Errorf("missing audit check: %v", resp.Checks)
	}
}

func TestHealthChecker_NoAuditService(t *testing.T) {
	hc := NewHealthChecker(nil, "")

	resp := hc.Check()
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks["audit"] != "not configured" {
		t.Errorf("audit check = %q, want 'not configured'", resp.Checks["audit"])
	}
}
