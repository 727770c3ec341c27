// Package schemas checks the JSON wire form of a ranking result against an
// embedded JSON Schema.
package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed ranking_result.schema.json
var rankingResultSchema string

// RankingResultSchema returns the embedded schema text.
func RankingResultSchema() string { return rankingResultSchema }

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is one violation at a field path.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("schema validation failed with %d error(s): %s", len(e.Errors), strings.Join(parts, "; "))
}

// SchemaLoadError reports a schema or document that could not be loaded.
type SchemaLoadError struct {
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SchemaLoadError) Unwrap() error { return e.Cause }

// ValidateRankingResult validates raw JSON bytes.
func ValidateRankingResult(doc []byte) error {
	return validate(rankingResultSchema, gojsonschema.NewBytesLoader(doc))
}

// ValidateValue marshals v and validates the result.
func ValidateValue(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return &SchemaLoadError{Message: "marshal value", Cause: err}
	}
	return ValidateRankingResult(b)
}

func validate(schema string, doc gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), doc)
	if err != nil {
		return &SchemaLoadError{Message: "schema validation failed during load", Cause: err}
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
