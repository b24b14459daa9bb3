package analysis

import (
	"bytes"
	_ "embed"
	"errors"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("analysis.json")
}

// diagnose lists schema deviations of a raw model object. The list is for
// logs only; normalization repairs whatever it reports.
func diagnose(schema *jsonschema.Schema, m map[string]any) []string {
	if schema == nil {
		return nil
	}
	err := schema.Validate(m)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	for _, leaf := range leaves(ve) {
		out = append(out, leaf.InstanceLocation+": "+leaf.Message)
	}
	return out
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}
