// Package schema provides declarative parameter schemas for validators:
// a field shape (name, type, required, constraint tag) plus optional
// cross-field rules evaluated by a pluggable rule engine. Binding a
// schema to an engine yields a validator that casts and checks incoming
// parameters and reports failures as a changeset.
package schema

import (
	"context"
)

// FieldType enumerates the primitive types a field can be cast to.
type FieldType string

// Supported field types.
const (
	String  FieldType = "string"
	Integer FieldType = "integer"
	Float   FieldType = "float"
	Boolean FieldType = "boolean"
	Any     FieldType = "any"
)

// Field declares one parameter of a schema.
type Field struct {
	// Name is the parameter key.
	Name string

	// Type is the target type the raw value is cast to. Default Any.
	Type FieldType

	// Required rejects requests that omit the field.
	Required bool

	// Constraint is a go-playground/validator tag string applied to the
	// cast value, e.g. "min=3,max=40" or "email".
	Constraint string
}

// Rule declares a cross-field check as a rule-engine expression over the
// params map. The expression must evaluate to a boolean.
type Rule struct {
	// Name keys the rule's error messages in the changeset.
	Name string

	// Expr is the engine expression, e.g. `int(params.min) <= int(params.max)`.
	Expr string

	// Message is the failure message. Default "is invalid".
	Message string
}

// Program is a compiled rule ready for evaluation.
type Program interface {
	// Eval evaluates the rule against the cast params. A false result or
	// an error both count as a rule failure.
	Eval(ctx context.Context, params map[string]any) (bool, error)
}

// RuleEngine compiles rule expressions. The CEL adapter in this module
// implements it; tests use trivial stand-ins.
type RuleEngine interface {
	Compile(expr string) (Program, error)
}

// Schema is a declared parameter shape with optional rules.
type Schema struct {
	name   string
	fields []Field
	rules  []Rule
}

// New creates a schema with the given name and fields. The name is used
// in generated documentation.
func New(name string, fields ...Field) *Schema {
	return &Schema{name: name, fields: fields}
}

// WithRules appends cross-field rules and returns the schema.
func (s *Schema) WithRules(rules ...Rule) *Schema {
	s.rules = append(s.rules, rules...)
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Fields returns the declared fields.
func (s *Schema) Fields() []Field { return s.fields }

// Rules returns the declared rules.
func (s *Schema) Rules() []Rule { return s.rules }
