package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auditstore "github.com/param-gate/paramgate/internal/adapter/outbound/audit"
	"github.com/param-gate/paramgate/internal/domain/audit"
	"github.com/param-gate/paramgate/internal/service"
)

func sha256Hash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func adminFixture(t *testing.T) *http.ServeMux {
	t.Helper()

	store := auditstore.NewStdoutStore(io.Discard)
	if err := store.Append(context.Background(),
		audit.Entry{ID: "e1", Time: time.Now(), Action: "create_user", Method: "POST", Path: "/users", Status: 422},
		audit.Entry{ID: "e2", Time: time.Now(), Action: "update_user", Method: "PUT", Path: "/users/1", Status: 422},
	); err != nil {
		t.Fatalf("seeding store failed: %v", err)
	}
	svc := service.NewAuditService(store, discardLogger())

	mux := http.NewServeMux()
	NewAdminHandler(sha256Hash("letmein"), svc, discardLogger()).Register(mux)
	return mux
}

func TestAdminHandler_RequiresKey(t *testing.T) {
	mux := adminFixture(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/rejections", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/rejections", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", rec.Code)
	}
}

func TestAdminHandler_ReturnsRejections(t *testing.T) {
	mux := adminFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/rejections", nil)
	req.Header.Set("Authorization", "Bearer letmein")
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var body struct {
		Count      int           `json:"count"`
		Rejections []audit.Entry `json:"rejections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}
	if len(body.Rejections) != 2 || body.Rejections[0].ID != "e2" {
		t.Errorf("expected newest-first rejections, got %+v", body.Rejections)
	}
}

func TestAdminHandler_LimitValidation(t *testing.T) {
	mux := adminFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin/rejections?limit=0", nil)
	req.Header.Set("Authorization", "Bearer letmein")
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/admin/rejections?limit=1", nil)
	req.Header.Set("Authorization", "Bearer letmein")
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("limit=1: status = %d, want 200", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}
