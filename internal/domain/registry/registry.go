// Package registry accumulates a service's HTTP actions and, at build
// time, splices the validation wrapper around every annotated action.
// Registration is the annotation step; Build is the finalization step
// that emits the wrapped handlers onto a mux.
package registry

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/param-gate/paramgate/pkg/catalog"
	"github.com/param-gate/paramgate/pkg/schema"
	"github.com/param-gate/paramgate/pkg/validate"
)

// Action is one registered controller action. Multiple registrations may
// share a Name: they are clauses of the same action, tried in
// registration order, each optionally guarded by a request predicate.
type Action struct {
	// Name identifies the action in docs, logs, and audit entries.
	Name string

	// Method is the HTTP method the action serves.
	Method string

	// Pattern is the mux path pattern, e.g. "/users" or "/users/{id}".
	Pattern string

	// Handler is the action body.
	Handler http.Handler

	// Validator annotates the action for validation wrapping. Nil means
	// the action is mounted completely unmodified.
	Validator validate.Validator

	// Guard is an optional per-clause predicate. A clause handles the
	// request only when its guard is nil or returns true.
	Guard func(*http.Request) bool

	// Catalog declares the action's documented responses. Its error
	// response, when present, overrides the default rejection status.
	Catalog *catalog.Catalog

	// Schema optionally records the request schema for documentation.
	Schema *schema.Schema
}

// Registry accumulates actions until Build emits them onto a mux.
type Registry struct {
	mu      sync.Mutex
	actions []Action
	order   []string // action names in first-registration order
	logger  *slog.Logger
	opts    []validate.Option
}

// New creates a registry. The wrap options apply to every annotated
// action (error view, status, body limit, rejection hooks); per-action
// catalogues are appended automatically.
func New(logger *slog.Logger, opts ...validate.Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, opts: opts}
}

// Register records an action. It fails on incomplete registrations and
// on clauses that disagree with the first clause's method or pattern.
func (g *Registry) Register(a Action) error {
	if a.Name == "" {
		return fmt.Errorf("action name is required")
	}
	if a.Method == "" || a.Pattern == "" {
		return fmt.Errorf("action %q: method and pattern are required", a.Name)
	}
	if a.Handler == nil {
		return fmt.Errorf("action %q: handler is required", a.Name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	first := true
	for _, existing := range g.actions {
		if existing.Name != a.Name {
			continue
		}
		first = false
		if existing.Method != a.Method || existing.Pattern != a.Pattern {
			return fmt.Errorf("action %q: clause route %s %s conflicts with %s %s",
				a.Name, a.Method, a.Pattern, existing.Method, existing.Pattern)
		}
	}
	if first {
		g.order = append(g.order, a.Name)
	}

	g.actions = append(g.actions, a)
	return nil
}

// MustRegister is Register that panics on error. Intended for static
// route tables at program start.
func (g *Registry) MustRegister(a Action) *Registry {
	if err := g.Register(a); err != nil {
		panic(err)
	}
	return g
}

// Actions returns all registered actions in registration order.
func (g *Registry) Actions() []Action {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Action(nil), g.actions...)
}

// Build mounts every action onto the mux. Annotated actions are wrapped
// with their validator; unannotated ones are mounted as-is.
//
// When an action has multiple clauses and any clause beyond the first
// carries a guard, the action is mounted with guard dispatch but WITHOUT
// validation wrapping, and a warning is logged. This mirrors the refusal
// to wrap conflicting clause heads: skipping the wrap is preferred over
// guessing which clause the annotation belongs to.
func (g *Registry) Build(mux *http.ServeMux) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, name := range g.order {
		clauses := g.clausesOf(name)
		first := clauses[0]

		handler := dispatchHandler(clauses, g.logger)

		if v := firstValidator(clauses); v != nil {
			if hasConflictingGuards(clauses) {
				g.logger.Warn("skipping validation wrap: action has guarded clauses beyond the first",
					"action", name,
					"clauses", len(clauses),
				)
			} else {
				opts := g.opts
				if first.Catalog != nil {
					opts = append(append([]validate.Option(nil), opts...), validate.WithCatalog(first.Catalog))
				}
				handler = validate.Wrapped(v, handler, opts...)
			}
		} else if len(clauses) == 1 && first.Guard == nil {
			// Unannotated, unguarded single clause: mount the handler
			// itself so behavior is byte-identical to the raw handler.
			handler = first.Handler
		}

		mux.Handle(first.Method+" "+first.Pattern, handler)
	}
}

// clausesOf returns the clauses registered under name, in order.
// Caller holds the lock.
func (g *Registry) clausesOf(name string) []Action {
	var out []Action
	for _, a := range g.actions {
		if a.Name == name {
			out = append(out, a)
		}
	}
	return out
}

// firstValidator returns the first clause's validator annotation.
func firstValidator(clauses []Action) validate.Validator {
	for _, c := range clauses {
		if c.Validator != nil {
			return c.Validator
		}
	}
	return nil
}

// hasConflictingGuards reports whether any clause beyond the first
// carries its own guard.
func hasConflictingGuards(clauses []Action) bool {
	for _, c := range clauses[1:] {
		if c.Guard != nil {
			return true
		}
	}
	return false
}

// dispatchHandler tries each clause in order and serves with the first
// whose guard accepts the request. A request no clause accepts is a
// routing bug in the registered actions, not a client error.
func dispatchHandler(clauses []Action, logger *slog.Logger) http.Handler {
	if len(clauses) == 1 && clauses[0].Guard == nil {
		return clauses[0].Handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, c := range clauses {
			if c.Guard == nil || c.Guard(r) {
				c.Handler.ServeHTTP(w, r)
				return
			}
		}
		logger.Error("no clause matched request",
			"action", clauses[0].Name,
			"method", r.Method,
			"path", r.URL.Path,
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	})
}
