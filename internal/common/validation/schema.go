package validation

import (
	"fmt"
	"strings"

	"eduprima/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for one task type's job variables.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document.
func Compile(name, schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks vars and returns an INVALID_JOB_VARIABLES error listing every violation.
func (s *Schema) Validate(vars map[string]interface{}) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(vars))
	if err != nil {
		return errors.NewInvalidJobVariablesError(fmt.Sprintf("%s: %v", s.name, err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	stdErr := errors.NewInvalidJobVariablesError(strings.Join(msgs, "; "))
	stdErr.Metadata = map[string]interface{}{"schema": s.name, "violations": len(msgs)}
	return stdErr
}
