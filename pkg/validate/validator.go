// Package validate provides the validation dispatch wrapper: a decorator
// that runs a Validator against the incoming request parameters before the
// wrapped handler executes, short-circuiting with a structured error
// response when validation fails.
package validate

import (
	"context"
	"net/http"

	"github.com/param-gate/paramgate/pkg/changeset"
)

// Validator judges a request's parameters. Implementations return a
// changeset that is valid if and only if the parameters are acceptable.
//
// The dispatch wrapper treats any result other than a changeset with
// Valid == true as a failure, including a nil changeset. A misbehaving
// validator therefore produces the configured error response rather than
// a distinct fault.
type Validator interface {
	Validate(r *http.Request, params map[string]any) *changeset.Changeset
}

// Func adapts a plain function to the Validator interface.
type Func func(r *http.Request, params map[string]any) *changeset.Changeset

// Validate calls f.
func (f Func) Validate(r *http.Request, params map[string]any) *changeset.Changeset {
	return f(r, params)
}

// Pair configures separate request and response validators for a single
// action. The request validator gates the handler as usual; the response
// validator is applied to the handler's JSON response body after the fact,
// and failures are logged rather than returned to the client.
type Pair struct {
	Request  Validator
	Response Validator
}

// Validate delegates to the request-side validator. A Pair with a nil
// Request accepts every request.
func (p Pair) Validate(r *http.Request, params map[string]any) *changeset.Changeset {
	if p.Request == nil {
		return changeset.New(params)
	}
	return p.Request.Validate(r, params)
}

// changesetContextKey is the context key type for the validated changeset.
type changesetContextKey struct{}

// NewContext returns a context carrying the validated changeset.
func NewContext(ctx context.Context, cs *changeset.Changeset) context.Context {
	return context.WithValue(ctx, changesetContextKey{}, cs)
}

// FromContext retrieves the changeset stored by the dispatch wrapper.
// The second return is false when the handler was not wrapped.
func FromContext(ctx context.Context) (*changeset.Changeset, bool) {
	cs, ok := ctx.Value(changesetContextKey{}).(*changeset.Changeset)
	return cs, ok
}

// Compile-time checks.
var (
	_ Validator = Func(nil)
	_ Validator = Pair{}
)
