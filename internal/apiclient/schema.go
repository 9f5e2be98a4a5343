package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema used to accept or reject a response body
// before it is decoded into a typed value.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// CompileSchema compiles a schema document expressed as a Go map.
func CompileSchema(name string, doc map[string]any) (*Schema, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompileSchema is CompileSchema for package-level schema variables.
func MustCompileSchema(name string, doc map[string]any) *Schema {
	s, err := CompileSchema(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks raw JSON against the schema.
func (s *Schema) Validate(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode %s response: %w", s.name, err)
	}
	if err := s.schema.Validate(v); err != nil {
		return fmt.Errorf("%s response does not match schema: %w", s.name, err)
	}
	return nil
}

// Name returns the schema's name.
func (s *Schema) Name() string {
	return s.name
}
