package dvf

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed envelope.schema.json
var envelopeSchema []byte

const envelopeSchemaURL = "envelope.schema.json"

// compileEnvelopeSchema compiles the schema every API response must satisfy.
func compileEnvelopeSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(envelopeSchemaURL, bytes.NewReader(envelopeSchema)); err != nil {
		return nil, fmt.Errorf("dvf: add schema resource: %w", err)
	}
	schema, err := compiler.Compile(envelopeSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("dvf: compile schema: %w", err)
	}
	return schema, nil
}
