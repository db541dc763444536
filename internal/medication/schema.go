package medication

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const newMedicationSchemaJSON = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "maxLength": 200},
		"dosageAmount": {"type": "string", "maxLength": 100},
		"dosageForm": {"type": "string", "maxLength": 100},
		"instructions": {"type": "string", "maxLength": 2000},
		"frequency": {"type": "string"},
		"dailyReminder": {"type": "boolean"},
		"reminderTime": {"type": ["string", "null"], "format": "date-time"},
		"refillReminder": {"type": "boolean"},
		"refillDate": {"type": ["string", "null"], "format": "date-time"},
		"labelImage": {"type": "string", "pattern": "^([A-Za-z0-9_-]+\\.png)?$"}
	},
	"required": ["name", "dosageAmount", "dosageForm"],
	"additionalProperties": false
}`

var newMedicationSchema = mustCompileSchema("new_medication.json", newMedicationSchemaJSON)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// DecodeNewMedication validates a create-medication request body and decodes it
func DecodeNewMedication(data []byte) (NewMedication, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return NewMedication{}, fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := newMedicationSchema.Validate(v); err != nil {
		return NewMedication{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var in NewMedication
	if err := json.Unmarshal(data, &in); err != nil {
		return NewMedication{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return in, nil
}
