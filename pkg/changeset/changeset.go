// Package changeset defines the structured validation result exchanged
// between validators and the dispatch wrapper. It is the wire-level
// contract: a changeset is valid if and only if Valid is true, and the
// error path serializes as {"errors": {field: [messages]}}.
package changeset

import "encoding/json"

// Changeset carries the outcome of validating a set of request parameters.
// Params holds the raw input, Changes the values that survived casting and
// validation, and Errors the field-level failure messages.
type Changeset struct {
	// Valid reports whether validation succeeded. Anything other than
	// Valid == true is treated as a failure by the dispatch wrapper,
	// including a changeset with an empty Errors map.
	Valid bool

	// Params is the raw parameter map as parsed from the request.
	Params map[string]any

	// Changes holds the cast parameter values. Only fields that passed
	// casting appear here.
	Changes map[string]any

	// Errors maps field (or rule) names to failure messages.
	Errors map[string][]string
}

// New creates a changeset for the given raw params. It starts valid with
// no changes and no errors.
func New(params map[string]any) *Changeset {
	return &Changeset{
		Valid:   true,
		Params:  params,
		Changes: make(map[string]any),
		Errors:  make(map[string][]string),
	}
}

// AddError records a failure message for the given field and marks the
// changeset invalid.
func (c *Changeset) AddError(field, message string) *Changeset {
	if c.Errors == nil {
		c.Errors = make(map[string][]string)
	}
	c.Errors[field] = append(c.Errors[field], message)
	c.Valid = false
	return c
}

// PutChange records a cast value for the given field.
func (c *Changeset) PutChange(field string, value any) *Changeset {
	if c.Changes == nil {
		c.Changes = make(map[string]any)
	}
	c.Changes[field] = value
	return c
}

// Get returns the cast value for field, falling back to the raw param
// when the field was never cast. The second return reports presence.
func (c *Changeset) Get(field string) (any, bool) {
	if v, ok := c.Changes[field]; ok {
		return v, true
	}
	v, ok := c.Params[field]
	return v, ok
}

// errorBody is the JSON error representation rendered to clients.
type errorBody struct {
	Errors map[string][]string `json:"errors"`
}

// MarshalJSON renders the changeset in its client-facing error shape.
// Valid changesets marshal with an empty errors object.
func (c *Changeset) MarshalJSON() ([]byte, error) {
	errs := c.Errors
	if errs == nil {
		errs = map[string][]string{}
	}
	return json.Marshal(errorBody{Errors: errs})
}
