package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/receipts-api/internal/common"
)

// Validator checks raw request bodies against a compiled JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles schemaMap once for reuse across requests.
func NewValidator(name string, schemaMap map[string]any) (*Validator, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// NewBatchCreateValidator compiles the batch-create payload schema.
func NewBatchCreateValidator() (*Validator, error) {
	return NewValidator("receipts-batch.json", BuildBatchCreateSchema())
}

// Validate returns a BAD_REQUEST AppError for malformed JSON and a
// VALIDATION_ERROR AppError listing every schema violation.
func (v *Validator) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return common.BadRequest("request body is not valid JSON", err)
	}
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return common.BadRequest("request body could not be validated", err)
	}
	details := make([]map[string]string, 0)
	flatten(ve, &details)
	return common.ValidationFailed("request body does not match the receipt schema", details)
}

func flatten(ve *jsonschema.ValidationError, out *[]map[string]string) {
	if len(ve.Causes) == 0 {
		field := ve.InstanceLocation
		if field == "" {
			field = "/"
		}
		*out = append(*out, map[string]string{"field": field, "message": ve.Message})
		return
	}
	for _, c := range ve.Causes {
		flatten(c, out)
	}
}
