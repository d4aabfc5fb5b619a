package schema

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/param-gate/paramgate/pkg/changeset"
)

// BoundValidator is a schema bound to a rule engine, with all rule
// expressions pre-compiled. It satisfies the validate.Validator contract.
type BoundValidator struct {
	schema   *Schema
	check    *validator.Validate
	programs map[string]Program // rule name -> compiled program
}

// Bind compiles the schema's rules with the given engine and returns a
// ready validator. A nil engine is allowed when the schema declares no
// rules.
func (s *Schema) Bind(engine RuleEngine) (*BoundValidator, error) {
	programs := make(map[string]Program, len(s.rules))
	for _, rule := range s.rules {
		if engine == nil {
			return nil, fmt.Errorf("schema %q declares rule %q but no rule engine is bound", s.name, rule.Name)
		}
		prog, err := engine.Compile(rule.Expr)
		if err != nil {
			return nil, fmt.Errorf("compiling rule %q of schema %q: %w", rule.Name, s.name, err)
		}
		programs[rule.Name] = prog
	}

	return &BoundValidator{
		schema:   s,
		check:    validator.New(validator.WithRequiredStructEnabled()),
		programs: programs,
	}, nil
}

// MustBind is Bind that panics on error. Intended for static schema
// construction at program start.
func (s *Schema) MustBind(engine RuleEngine) *BoundValidator {
	bound, err := s.Bind(engine)
	if err != nil {
		panic(err)
	}
	return bound
}

// Schema returns the underlying schema declaration.
func (v *BoundValidator) Schema() *Schema { return v.schema }

// Validate casts the params against the declared fields, applies the
// constraint tags, then evaluates the cross-field rules over the cast
// values. Every failure lands in the changeset's error map; rules run
// only when all fields cast and check cleanly.
func (v *BoundValidator) Validate(r *http.Request, params map[string]any) *changeset.Changeset {
	cs := changeset.New(params)

	for _, field := range v.schema.fields {
		raw, present := params[field.Name]
		if !present || raw == nil || isBlankString(raw) {
			if field.Required {
				cs.AddError(field.Name, "can't be blank")
			}
			continue
		}

		value, err := castValue(field.Type, raw)
		if err != nil {
			cs.AddError(field.Name, err.Error())
			continue
		}

		if field.Constraint != "" {
			if err := v.check.Var(value, field.Constraint); err != nil {
				for _, msg := range constraintMessages(err) {
					cs.AddError(field.Name, msg)
				}
				continue
			}
		}

		cs.PutChange(field.Name, value)
	}

	if !cs.Valid {
		return cs
	}

	for _, rule := range v.schema.rules {
		prog := v.programs[rule.Name]
		ok, err := prog.Eval(r.Context(), cs.Changes)
		if err != nil || !ok {
			// An engine error and a false result are the same failure;
			// there is no separate fault channel.
			msg := rule.Message
			if msg == "" {
				msg = "is invalid"
			}
			cs.AddError(rule.Name, msg)
		}
	}

	return cs
}

// isBlankString reports whether raw is the empty string. Query and form
// params surface absent values as "".
func isBlankString(raw any) bool {
	s, ok := raw.(string)
	return ok && s == ""
}

// constraintMessages turns validator tag failures into client-facing
// field messages.
func constraintMessages(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{"is invalid"}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("must be at least %s", fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("must be at most %s", fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("must be greater than %s", fe.Param()))
		case "lt":
			msgs = append(msgs, fmt.Sprintf("must be less than %s", fe.Param()))
		case "email":
			msgs = append(msgs, "must be a valid email address")
		case "url":
			msgs = append(msgs, "must be a valid URL")
		case "uuid", "uuid4":
			msgs = append(msgs, "must be a valid UUID")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("must be one of: %s", fe.Param()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("must have exactly %s characters", fe.Param()))
		default:
			msgs = append(msgs, "is invalid")
		}
	}
	return msgs
}
