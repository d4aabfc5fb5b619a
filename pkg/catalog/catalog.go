// Package catalog records the response shapes an action can produce:
// status code, description, content type, example payload, and an
// optional schema. The catalogue feeds documentation generation and lets
// an action override the default validation-error status.
package catalog

import (
	"fmt"
	"sort"

	"github.com/param-gate/paramgate/pkg/schema"
)

// Response describes one declared response of an action.
type Response struct {
	// Status is the numeric HTTP status code.
	Status int

	// Description is the human-readable summary shown in generated docs.
	Description string

	// ContentType is the response media type. Default "application/json".
	ContentType string

	// Example is an example payload for documentation.
	Example any

	// Schema optionally describes the response body's field shape.
	Schema *schema.Schema
}

// ResponseOption configures a declared response.
type ResponseOption func(*Response)

// WithDescription sets the response description.
func WithDescription(desc string) ResponseOption {
	return func(r *Response) {
		r.Description = desc
	}
}

// WithContentType sets the response content type.
func WithContentType(ct string) ResponseOption {
	return func(r *Response) {
		r.ContentType = ct
	}
}

// WithExample sets the documented example payload.
func WithExample(example any) ResponseOption {
	return func(r *Response) {
		r.Example = example
	}
}

// WithSchema attaches a body schema to the response.
func WithSchema(s *schema.Schema) ResponseOption {
	return func(r *Response) {
		r.Schema = s
	}
}

// Catalog is an ordered set of declared responses for one action.
type Catalog struct {
	responses []Response
}

// New creates an empty catalogue.
func New() *Catalog {
	return &Catalog{}
}

// Declare records a response. The status may be a numeric code (422) or
// a symbolic name ("unprocessable_entity"); both record the identical
// numeric code. Declaring the same status twice replaces the earlier
// declaration.
func (c *Catalog) Declare(status any, opts ...ResponseOption) error {
	code, err := StatusCode(status)
	if err != nil {
		return fmt.Errorf("declaring response: %w", err)
	}

	resp := Response{
		Status:      code,
		ContentType: "application/json",
	}
	for _, opt := range opts {
		opt(&resp)
	}

	for i := range c.responses {
		if c.responses[i].Status == code {
			c.responses[i] = resp
			return nil
		}
	}
	c.responses = append(c.responses, resp)
	return nil
}

// MustDeclare is Declare that panics on error. Intended for static
// catalogue construction at program start.
func (c *Catalog) MustDeclare(status any, opts ...ResponseOption) *Catalog {
	if err := c.Declare(status, opts...); err != nil {
		panic(err)
	}
	return c
}

// Responses returns the declared responses sorted by status code.
func (c *Catalog) Responses() []Response {
	out := append([]Response(nil), c.responses...)
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

// ErrorResponse returns the declared error response: the lowest declared
// status in the 4xx/5xx range. The dispatch wrapper uses its status in
// place of the default 422.
func (c *Catalog) ErrorResponse() (Response, bool) {
	found := false
	var best Response
	for _, resp := range c.responses {
		if resp.Status < 400 {
			continue
		}
		if !found || resp.Status < best.Status {
			best = resp
			found = true
		}
	}
	return best, found
}
