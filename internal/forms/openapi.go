package forms

import "github.com/danielgtaylor/huma/v2"

// Schema describes the JSON wire shape of a field for the API docs and
// request validation.
func (Field) Schema(r huma.Registry) *huma.Schema {
	types := make([]any, 0, len(FieldTypes))
	for _, t := range FieldTypes {
		types = append(types, string(t))
	}
	s := &huma.Schema{
		Type:     huma.TypeObject,
		Required: []string{"id", "type", "label", "required"},
		Properties: map[string]*huma.Schema{
			"id":          {Type: huma.TypeString},
			"type":        {Type: huma.TypeString, Enum: types},
			"label":       {Type: huma.TypeString},
			"required":    {Type: huma.TypeBoolean},
			"options":     {Type: huma.TypeArray, Items: &huma.Schema{Type: huma.TypeString}},
			"placeholder": {Type: huma.TypeString},
		},
	}
	s.PrecomputeMessages()
	return s
}
