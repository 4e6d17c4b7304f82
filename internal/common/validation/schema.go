// Package validation checks job variables against JSON Schema documents.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the errors into "field: message" strings.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Field+": "+e.Message)
	}
	return out
}

func (r *ValidationResult) String() string {
	return strings.Join(r.Messages(), "; ")
}

// Validate checks data against a schema given as a decoded JSON document.
// An error is returned only when the schema itself cannot be loaded.
func Validate(schema map[string]interface{}, data interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return convert(result), nil
}

// ValidateJSON is Validate for raw job variables.
func ValidateJSON(schema map[string]interface{}, raw string) (*ValidationResult, error) {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if !json.Valid([]byte(raw)) {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: "variables are not valid JSON",
			Code:    "INVALID_JSON",
		}}}, nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return convert(result), nil
}

func convert(result *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		field := e.Field()
		// required errors sit on the parent; report the missing property
		if e.Type() == "required" {
			if p, ok := e.Details()["property"].(string); ok {
				field = p
				if parent := e.Field(); parent != "(root)" {
					field = parent + "." + p
				}
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out
}
