package service

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/param-gate/paramgate/internal/domain/registry"
	"github.com/param-gate/paramgate/pkg/catalog"
	"github.com/param-gate/paramgate/pkg/schema"
)

// DocsService renders the registered actions, their parameter schemas,
// and their response catalogues as an OpenAPI-flavored YAML document.
type DocsService struct {
	reg     *registry.Registry
	title   string
	version string
}

// NewDocsService creates a DocsService over the given registry.
func NewDocsService(reg *registry.Registry, title, version string) *DocsService {
	return &DocsService{reg: reg, title: title, version: version}
}

// openapiDoc mirrors the subset of OpenAPI 3 the generator emits.
type openapiDoc struct {
	OpenAPI string                           `yaml:"openapi"`
	Info    openapiInfo                      `yaml:"info"`
	Paths   map[string]map[string]*operation `yaml:"paths"`
}

type openapiInfo struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

type operation struct {
	OperationID string                     `yaml:"operationId"`
	RequestBody *requestBody               `yaml:"requestBody,omitempty"`
	Responses   map[string]*responseObject `yaml:"responses"`
}

type requestBody struct {
	Required bool                  `yaml:"required"`
	Content  map[string]*mediaType `yaml:"content"`
}

type responseObject struct {
	Description string                `yaml:"description"`
	Content     map[string]*mediaType `yaml:"content,omitempty"`
}

type mediaType struct {
	Schema  *schemaObject `yaml:"schema,omitempty"`
	Example any           `yaml:"example,omitempty"`
}

type schemaObject struct {
	Type       string                    `yaml:"type"`
	Required   []string                  `yaml:"required,omitempty"`
	Properties map[string]*propertyShape `yaml:"properties,omitempty"`
}

type propertyShape struct {
	Type string `yaml:"type"`
}

// OpenAPI renders the document as YAML.
func (s *DocsService) OpenAPI() ([]byte, error) {
	doc := openapiDoc{
		OpenAPI: "3.0.3",
		Info:    openapiInfo{Title: s.title, Version: s.version},
		Paths:   make(map[string]map[string]*operation),
	}

	seen := make(map[string]bool) // action name -> emitted (one op per clause group)
	for _, a := range s.reg.Actions() {
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true

		ops, ok := doc.Paths[a.Pattern]
		if !ok {
			ops = make(map[string]*operation)
			doc.Paths[a.Pattern] = ops
		}

		op := &operation{
			OperationID: a.Name,
			Responses:   responsesFor(a.Catalog),
		}
		if a.Schema != nil {
			op.RequestBody = &requestBody{
				Required: true,
				Content: map[string]*mediaType{
					"application/json": {Schema: schemaFor(a.Schema)},
				},
			}
		}
		ops[strings.ToLower(a.Method)] = op
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("rendering OpenAPI document: %w", err)
	}
	return out, nil
}

// responsesFor converts a catalogue into OpenAPI response objects.
// Actions without a catalogue document a bare 200.
func responsesFor(cat *catalog.Catalog) map[string]*responseObject {
	out := make(map[string]*responseObject)
	if cat == nil {
		out["200"] = &responseObject{Description: "OK"}
		return out
	}
	for _, resp := range cat.Responses() {
		obj := &responseObject{Description: resp.Description}
		if resp.Schema != nil || resp.Example != nil {
			mt := &mediaType{Example: resp.Example}
			if resp.Schema != nil {
				mt.Schema = schemaFor(resp.Schema)
			}
			ct := resp.ContentType
			if ct == "" {
				ct = "application/json"
			}
			obj.Content = map[string]*mediaType{ct: mt}
		}
		out[fmt.Sprintf("%d", resp.Status)] = obj
	}
	return out
}

// schemaFor converts a parameter schema into an OpenAPI object schema.
func schemaFor(s *schema.Schema) *schemaObject {
	obj := &schemaObject{
		Type:       "object",
		Properties: make(map[string]*propertyShape),
	}
	for _, f := range s.Fields() {
		obj.Properties[f.Name] = &propertyShape{Type: propertyType(f.Type)}
		if f.Required {
			obj.Required = append(obj.Required, f.Name)
		}
	}
	return obj
}

// propertyType maps field types onto OpenAPI primitive types.
func propertyType(t schema.FieldType) string {
	switch t {
	case schema.Integer:
		return "integer"
	case schema.Float:
		return "number"
	case schema.Boolean:
		return "boolean"
	case schema.String:
		return "string"
	default:
		return "object"
	}
}
