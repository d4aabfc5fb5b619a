package validate

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/param-gate/paramgate/pkg/catalog"
	"github.com/param-gate/paramgate/pkg/changeset"
)

// acceptAll is a validator that accepts every request.
var acceptAll = Func(func(r *http.Request, params map[string]any) *changeset.Changeset {
	return changeset.New(params)
})

// rejectAll rejects every request with a fixed error.
var rejectAll = Func(func(r *http.Request, params map[string]any) *changeset.Changeset {
	return changeset.New(params).AddError("name", "is required")
})

func decodeErrors(t *testing.T, body io.Reader) map[string][]string {
	t.Helper()
	var payload struct {
		Errors map[string][]string `json:"errors"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return payload.Errors
}

func TestWrapped_ValidInputRunsHandlerUnchanged(t *testing.T) {
	ran := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	})

	h := Wrapped(acceptAll, next)

	req := httptest.NewRequest("POST", "/users?name=alice", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !ran {
		t.Fatal("handler did not run")
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if rec.Body.String() != `{"id":1}` {
		t.Errorf("handler body altered: %q", rec.Body.String())
	}
}

func TestWrapped_InvalidInputNeverRunsHandler(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for invalid input")
	})

	h := Wrapped(rejectAll, next)

	req := httptest.NewRequest("POST", "/users", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	errs := decodeErrors(t, rec.Body)
	if got := errs["name"]; len(got) != 1 || got[0] != "is required" {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestWrapped_ChangesetInContext(t *testing.T) {
	v := Func(func(r *http.Request, params map[string]any) *changeset.Changeset {
		cs := changeset.New(params)
		cs.PutChange("name", "alice")
		return cs
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs, ok := FromContext(r.Context())
		if !ok {
			t.Fatal("changeset missing from context")
		}
		if v, _ := cs.Get("name"); v != "alice" {
			t.Errorf("unexpected change value: %v", v)
		}
	})

	req := httptest.NewRequest("GET", "/users", nil)
	Wrapped(v, next).ServeHTTP(httptest.NewRecorder(), req)
}

func TestWrapped_NilChangesetIsRejection(t *testing.T) {
	v := Func(func(r *http.Request, params map[string]any) *changeset.Changeset {
		return nil
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for malformed validator output")
	})

	rec := httptest.NewRecorder()
	Wrapped(v, next, WithLogger(slog.New(slog.DiscardHandler))).
		ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for nil changeset, got %d", rec.Code)
	}
	if errs := decodeErrors(t, rec.Body); len(errs) != 0 {
		t.Errorf("expected empty errors object, got %v", errs)
	}
}

func TestWrapped_CustomStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Wrapped(rejectAll, http.NotFoundHandler(), WithErrorStatus(http.StatusBadRequest)).
		ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestWrapped_CatalogStatusOverride(t *testing.T) {
	cat := catalog.New()
	cat.MustDeclare("bad_request", catalog.WithDescription("validation failed"))

	rec := httptest.NewRecorder()
	Wrapped(rejectAll, http.NotFoundHandler(), WithCatalog(cat)).
		ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected catalogue status 400, got %d", rec.Code)
	}
}

func TestWrapped_JSONBodyParams(t *testing.T) {
	var seen map[string]any
	v := Func(func(r *http.Request, params map[string]any) *changeset.Changeset {
		seen = params
		return changeset.New(params)
	})

	body := strings.NewReader(`{"name":"alice","age":42}`)
	req := httptest.NewRequest("POST", "/users?source=web", body)
	req.Header.Set("Content-Type", "application/json")

	var handlerBody []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerBody, _ = io.ReadAll(r.Body)
	})

	Wrapped(v, next).ServeHTTP(httptest.NewRecorder(), req)

	if seen["name"] != "alice" {
		t.Errorf("body param missing: %v", seen)
	}
	if seen["age"] != float64(42) {
		t.Errorf("expected JSON number, got %v (%T)", seen["age"], seen["age"])
	}
	if seen["source"] != "web" {
		t.Errorf("query param missing: %v", seen)
	}
	// The wrapper must restore the body for the inner handler.
	if string(handlerBody) != `{"name":"alice","age":42}` {
		t.Errorf("handler saw altered body: %q", handlerBody)
	}
}

func TestWrapped_FormBodyParams(t *testing.T) {
	var seen map[string]any
	v := Func(func(r *http.Request, params map[string]any) *changeset.Changeset {
		seen = params
		return changeset.New(params)
	})

	req := httptest.NewRequest("POST", "/users", strings.NewReader("name=bob&tag=a&tag=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	Wrapped(v, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), req)

	if seen["name"] != "bob" {
		t.Errorf("form param missing: %v", seen)
	}
	tags, ok := seen["tag"].([]string)
	if !ok || len(tags) != 2 {
		t.Errorf("expected repeated key as slice, got %v", seen["tag"])
	}
}

func TestWrapped_MalformedBodyRejected(t *testing.T) {
	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run for malformed body")
	})

	rec := httptest.NewRecorder()
	Wrapped(acceptAll, next, WithLogger(slog.New(slog.DiscardHandler))).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
	errs := decodeErrors(t, rec.Body)
	if len(errs["_params"]) != 1 {
		t.Errorf("expected _params error, got %v", errs)
	}
}

func TestWrapped_OversizedBodyRejected(t *testing.T) {
	req := httptest.NewRequest("POST", "/users", strings.NewReader(`{"name":"alice"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	Wrapped(acceptAll, http.NotFoundHandler(),
		WithMaxBodyBytes(4),
		WithLogger(slog.New(slog.DiscardHandler)),
	).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for oversized body, got %d", rec.Code)
	}
}

func TestWrapped_OnInvalidHook(t *testing.T) {
	var hookStatus int
	var hookErrors map[string][]string

	rec := httptest.NewRecorder()
	Wrapped(rejectAll, http.NotFoundHandler(),
		WithOnInvalid(func(r *http.Request, cs *changeset.Changeset, status int) {
			hookStatus = status
			hookErrors = cs.Errors
		}),
	).ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

	if hookStatus != http.StatusUnprocessableEntity {
		t.Errorf("hook saw status %d", hookStatus)
	}
	if len(hookErrors["name"]) != 1 {
		t.Errorf("hook saw errors %v", hookErrors)
	}
}

func TestWrapped_OnValidHook(t *testing.T) {
	validCalls := 0
	invalidCalls := 0

	h := Wrapped(acceptAll, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		WithOnValid(func(r *http.Request, cs *changeset.Changeset, _ int) {
			validCalls++
			if cs == nil || !cs.Valid {
				t.Error("hook must see the valid changeset")
			}
		}),
		WithOnInvalid(func(r *http.Request, cs *changeset.Changeset, status int) {
			invalidCalls++
		}),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if validCalls != 1 {
		t.Errorf("onValid calls = %d, want 1", validCalls)
	}
	if invalidCalls != 0 {
		t.Errorf("onInvalid calls = %d, want 0", invalidCalls)
	}
}

func TestWrapped_PairResponseFailureLogsOnly(t *testing.T) {
	pair := Pair{
		Request: acceptAll,
		Response: Func(func(r *http.Request, params map[string]any) *changeset.Changeset {
			return changeset.New(params).AddError("id", "is missing")
		}),
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"alice"}`))
	})

	rec := httptest.NewRecorder()
	Wrapped(pair, next, WithLogger(slog.New(slog.DiscardHandler))).
		ServeHTTP(rec, httptest.NewRequest("GET", "/users/1", nil))

	// The client response is untouched by response-side failures.
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"name":"alice"}` {
		t.Errorf("response body altered: %q", rec.Body.String())
	}
}

// flushRecorder counts Flush calls reaching the underlying writer.
type flushRecorder struct {
	*httptest.ResponseRecorder
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestWrapped_PairForwardsFlush(t *testing.T) {
	pair := Pair{Request: acceptAll, Response: acceptAll}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
		if f, ok := w.(http.Flusher); !ok {
			t.Fatal("capture writer must implement http.Flusher")
		} else {
			f.Flush()
		}
	})

	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	Wrapped(pair, next).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.flushes != 1 {
		t.Errorf("flushes = %d, want 1", rec.flushes)
	}
}

func TestPair_NilRequestAcceptsEverything(t *testing.T) {
	cs := Pair{}.Validate(httptest.NewRequest("GET", "/", nil), map[string]any{"x": 1})
	if cs == nil || !cs.Valid {
		t.Error("expected nil request validator to accept")
	}
}

func TestLookupView(t *testing.T) {
	if _, ok := LookupView("json"); !ok {
		t.Error("json view should be registered by default")
	}
	if _, ok := LookupView("nope"); ok {
		t.Error("unexpected view for unknown name")
	}

	RegisterView("custom", JSONErrorView{})
	if _, ok := LookupView("custom"); !ok {
		t.Error("registered view not found")
	}
}
