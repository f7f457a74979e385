package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/m4xw311/aide/errors"
)

// Schema is a structural description of a tool's parameters: enough of JSON
// Schema to validate arguments before dispatch and to convert losslessly
// into each backend's declared-parameters shape. Object/array/enum/primitive
// nesting and required-field lists survive the conversion in both
// directions.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// ObjectSchema builds the common top-level shape: an object with named
// properties and a required list.
func ObjectSchema(properties map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: "object", Properties: properties, Required: required}
}

// StringSchema builds a string property.
func StringSchema(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// Validate checks args structurally against the schema: required fields
// present, value types matching, enum membership, recursing into nested
// objects and arrays. It returns a plain error; callers contain it into a
// failed ToolResult rather than aborting.
func (s *Schema) Validate(args map[string]interface{}) error {
	if s == nil {
		return nil
	}
	if s.Type != "object" && s.Type != "" {
		return errors.New("top-level schema must be an object, got %q", s.Type)
	}
	return s.validateObject(args, "")
}

func (s *Schema) validateObject(value map[string]interface{}, path string) error {
	for _, name := range s.Required {
		if _, ok := value[name]; !ok {
			return errors.New("missing required argument %q", joinPath(path, name))
		}
	}
	for name, got := range value {
		prop, ok := s.Properties[name]
		if !ok {
			// Unknown arguments are tolerated; the tool decides what to do
			// with extras. Declared ones must match.
			continue
		}
		if err := prop.validateValue(got, joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) validateValue(value interface{}, path string) error {
	if value == nil {
		return errors.New("argument %q is null", path)
	}
	switch s.Type {
	case "string":
		str, ok := value.(string)
		if !ok {
			return errors.New("argument %q must be a string", path)
		}
		if len(s.Enum) > 0 && !containsString(s.Enum, str) {
			return errors.New("argument %q must be one of %v, got %q", path, s.Enum, str)
		}
	case "number":
		if !isNumber(value) {
			return errors.New("argument %q must be a number", path)
		}
	case "integer":
		f, ok := asFloat(value)
		if !ok || f != math.Trunc(f) {
			return errors.New("argument %q must be an integer", path)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return errors.New("argument %q must be a boolean", path)
		}
	case "array":
		items, ok := value.([]interface{})
		if !ok {
			return errors.New("argument %q must be an array", path)
		}
		if s.Items != nil {
			for i, item := range items {
				if err := s.Items.validateValue(item, indexPath(path, i)); err != nil {
					return err
				}
			}
		}
	case "object", "":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return errors.New("argument %q must be an object", path)
		}
		if err := s.validateObject(obj, path); err != nil {
			return err
		}
	default:
		return errors.New("argument %q has unsupported schema type %q", path, s.Type)
	}
	return nil
}

// AsMap renders the schema as the generic JSON-object form most backends
// accept directly. The conversion is lossless for everything Schema can
// express.
func (s *Schema) AsMap() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	m := map[string]interface{}{}
	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		enum := make([]interface{}, len(s.Enum))
		for i, e := range s.Enum {
			enum[i] = e
		}
		m["enum"] = enum
	}
	if len(s.Properties) > 0 {
		props := map[string]interface{}{}
		for name, prop := range s.Properties {
			props[name] = prop.AsMap()
		}
		m["properties"] = props
	} else if s.Type == "object" {
		m["properties"] = map[string]interface{}{}
	}
	if len(s.Required) > 0 {
		required := make([]interface{}, len(s.Required))
		for i, r := range s.Required {
			required[i] = r
		}
		m["required"] = required
	}
	if s.Items != nil {
		m["items"] = s.Items.AsMap()
	}
	return m
}

// SchemaFromMap parses the generic JSON-object form back into a Schema,
// used for tools declared by external MCP servers.
func SchemaFromMap(m map[string]interface{}) *Schema {
	if m == nil {
		return ObjectSchema(nil)
	}
	s := &Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = t
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := m["enum"].([]interface{}); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if props, ok := m["properties"].(map[string]interface{}); ok {
		s.Properties = map[string]*Schema{}
		for name, raw := range props {
			if sub, ok := raw.(map[string]interface{}); ok {
				s.Properties[name] = SchemaFromMap(sub)
			}
		}
	}
	if required, ok := m["required"].([]interface{}); ok {
		for _, r := range required {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if items, ok := m["items"].(map[string]interface{}); ok {
		s.Items = SchemaFromMap(items)
	}
	return s
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func isNumber(value interface{}) bool {
	_, ok := asFloat(value)
	return ok
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
