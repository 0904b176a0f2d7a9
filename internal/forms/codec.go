package forms

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"
)

// formSchema is the shape a stored form must have to be trusted. Field
// types are only required to be strings so unknown types still decode.
const formSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "type", "label", "required"],
    "properties": {
      "id": {"type": "string"},
      "type": {"type": "string"},
      "label": {"type": "string"},
      "required": {"type": "boolean"},
      "options": {"type": "array", "items": {"type": "string"}},
      "placeholder": {"type": "string"}
    }
  }
}`

var formSchemaLoader = mustSchema(formSchema)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

// Responses maps a field id to the value the student gave for it.
type Responses map[string]any

// Encode serializes a form into the text stored on the workshop record.
func Encode(form Form) (string, error) {
	if len(form) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(form)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a stored form. Anything that is not a well formed field
// array yields an empty form instead of an error.
func Decode(raw string) Form {
	result, err := formSchemaLoader.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		return Form{}
	}

	var form Form
	if err := json.Unmarshal([]byte(raw), &form); err != nil || form == nil {
		return Form{}
	}
	return form
}

func EncodeResponses(r Responses) (string, error) {
	if len(r) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeResponses parses stored responses, degrading to an empty map.
func DecodeResponses(raw string) Responses {
	var r Responses
	if err := json.Unmarshal([]byte(raw), &r); err != nil || r == nil {
		return Responses{}
	}
	return r
}
