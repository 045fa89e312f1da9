package model

import (
	"encoding/json"
	"fmt"
)

// FieldType is the JSON type an upload field accepts.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// Known reports whether t is one of the supported field types.
func (t FieldType) Known() bool {
	switch t {
	case FieldString, FieldNumber, FieldBoolean, FieldArray, FieldObject:
		return true
	}
	return false
}

// FieldSpec describes one field of an uploadable entity.
type FieldSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Type     FieldType `yaml:"type" json:"type"`
	Required bool      `yaml:"required" json:"required"`
	Example  any       `yaml:"example" json:"example,omitempty"`
}

// ValidatePayload checks an upload payload of the form {PayloadKey: [item, ...]}
// against the endpoint's upload fields and returns every problem found. Null
// and empty-string values are accepted for any field.
func (e Endpoint) ValidatePayload(payload map[string]any) []string {
	key := e.PayloadKey()
	raw, ok := payload[key]
	if !ok {
		return []string{fmt.Sprintf("payload must contain %q key with an array of items", key)}
	}
	items, ok := raw.([]any)
	if !ok {
		return []string{fmt.Sprintf("%q must be an array", key)}
	}
	if len(e.UploadFields) == 0 {
		return nil
	}

	fields := make(map[string]FieldSpec, len(e.UploadFields))
	for _, f := range e.UploadFields {
		fields[f.Name] = f
	}

	var errs []string
	for idx, rawItem := range items {
		item, ok := rawItem.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("item %d must be an object", idx))
			continue
		}
		for _, f := range e.UploadFields {
			if _, present := item[f.Name]; f.Required && !present {
				errs = append(errs, fmt.Sprintf("item %d: missing required field: %s", idx, f.Name))
			}
		}
		for _, name := range sortedKeys(item) {
			f, known := fields[name]
			if !known {
				errs = append(errs, fmt.Sprintf("item %d: unknown field: %s", idx, name))
				continue
			}
			value := item[name]
			if value == nil || value == "" {
				continue
			}
			if got := jsonTypeOf(value); got != f.Type {
				errs = append(errs, fmt.Sprintf("item %d: invalid type for %q: expected %s, got %s", idx, name, f.Type, got))
			}
		}
	}
	return errs
}

// Template returns a sample upload payload holding one item built from the
// field examples.
func (e Endpoint) Template() map[string]any {
	item := make(map[string]any, len(e.UploadFields))
	for _, f := range e.UploadFields {
		item[f.Name] = f.Example
	}
	return map[string]any{e.PayloadKey(): []any{item}}
}

func jsonTypeOf(v any) FieldType {
	switch v.(type) {
	case string:
		return FieldString
	case bool:
		return FieldBoolean
	case float64, float32, int, int64, int32, json.Number:
		return FieldNumber
	case []any:
		return FieldArray
	case map[string]any:
		return FieldObject
	}
	return FieldType(fmt.Sprintf("%T", v))
}
