// Package demo registers the reference actions served by paramgate's
// built-in server. They exercise schema validation, cross-field rules,
// response catalogues, and guarded clause dispatch.
package demo

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/param-gate/paramgate/internal/domain/registry"
	"github.com/param-gate/paramgate/internal/service"
	"github.com/param-gate/paramgate/pkg/catalog"
	"github.com/param-gate/paramgate/pkg/schema"
	"github.com/param-gate/paramgate/pkg/validate"
)

// RegisterActions mounts the reference actions onto the registry.
func RegisterActions(reg *registry.Registry, schemas *service.SchemaService) error {
	createUser := schema.New("create_user",
		schema.Field{Name: "name", Type: schema.String, Required: true, Constraint: "min=1,max=100"},
		schema.Field{Name: "email", Type: schema.String, Required: true, Constraint: "email"},
		schema.Field{Name: "age", Type: schema.Integer, Constraint: "gte=0,lte=150"},
	).WithRules(
		schema.Rule{
			Name:    "email",
			Expr:    `!params.email.endsWith("@example.com")`,
			Message: "example.com addresses are not accepted",
		},
	)
	createUserValidator, err := schemas.Bind(createUser)
	if err != nil {
		return fmt.Errorf("binding create_user schema: %w", err)
	}

	createUserCatalog := catalog.New()
	createUserCatalog.MustDeclare("created",
		catalog.WithDescription("user created"),
		catalog.WithExample(map[string]any{"id": "u-1", "name": "ada"}),
	)
	createUserCatalog.MustDeclare("unprocessable_entity",
		catalog.WithDescription("parameter validation failed"),
	)

	if err := reg.Register(registry.Action{
		Name:      "create_user",
		Method:    "POST",
		Pattern:   "/users",
		Validator: createUserValidator,
		Handler:   http.HandlerFunc(handleCreateUser),
		Catalog:   createUserCatalog,
		Schema:    createUser,
	}); err != nil {
		return err
	}

	search := schema.New("search",
		schema.Field{Name: "q", Type: schema.String, Required: true, Constraint: "min=2"},
		schema.Field{Name: "limit", Type: schema.Integer, Constraint: "gte=1,lte=50"},
	)
	searchValidator, err := schemas.Bind(search)
	if err != nil {
		return fmt.Errorf("binding search schema: %w", err)
	}

	if err := reg.Register(registry.Action{
		Name:      "search",
		Method:    "GET",
		Pattern:   "/search",
		Validator: searchValidator,
		Handler:   http.HandlerFunc(handleSearch),
		Schema:    search,
	}); err != nil {
		return err
	}

	// Unannotated action: mounted completely unmodified.
	return reg.Register(registry.Action{
		Name:    "ping",
		Method:  "GET",
		Pattern: "/ping",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"pong":true}`))
		}),
	})
}

// handleCreateUser echoes the validated changes back with a synthetic ID.
func handleCreateUser(w http.ResponseWriter, r *http.Request) {
	cs, _ := validate.FromContext(r.Context())

	resp := map[string]any{"id": "u-1"}
	if cs != nil {
		if name, ok := cs.Get("name"); ok {
			resp["name"] = name
		}
		if email, ok := cs.Get("email"); ok {
			resp["email"] = email
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleSearch returns an empty result page for the validated query.
func handleSearch(w http.ResponseWriter, r *http.Request) {
	cs, _ := validate.FromContext(r.Context())

	resp := map[string]any{"results": []any{}}
	if cs != nil {
		if q, ok := cs.Get("q"); ok {
			resp["query"] = q
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
