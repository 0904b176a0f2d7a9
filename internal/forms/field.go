// Package forms models the dynamic application forms masters attach to
// workshops: the field schema, the builder operations used to edit it and
// the renderers used to preview and fill it in.
package forms

import (
	"encoding/json"
	"slices"

	"github.com/google/uuid"
)

type FieldType string

const (
	TypeTextInput      FieldType = "text-input"
	TypeTextarea       FieldType = "textarea"
	TypeMultipleChoice FieldType = "multiple-choice"
	TypeImageUpload    FieldType = "image-upload"
	TypeVideoUpload    FieldType = "video-upload"
)

// FieldTypes lists the closed set of supported field types in builder order.
var FieldTypes = []FieldType{
	TypeTextInput,
	TypeTextarea,
	TypeMultipleChoice,
	TypeImageUpload,
	TypeVideoUpload,
}

func (t FieldType) Valid() bool {
	return slices.Contains(FieldTypes, t)
}

func (t FieldType) IsText() bool {
	return t == TypeTextInput || t == TypeTextarea
}

func (t FieldType) IsUpload() bool {
	return t == TypeImageUpload || t == TypeVideoUpload
}

// Kind holds the attributes that only make sense for one field type.
type Kind interface {
	Type() FieldType
}

type TextInput struct {
	Placeholder string
}

type Textarea struct {
	Placeholder string
}

type MultipleChoice struct {
	Options []string
}

type ImageUpload struct{}

type VideoUpload struct{}

// Unknown keeps a field with an unrecognised type readable; it renders
// nothing and fails ValidateField.
type Unknown struct {
	Name FieldType
}

func (TextInput) Type() FieldType      { return TypeTextInput }
func (Textarea) Type() FieldType       { return TypeTextarea }
func (MultipleChoice) Type() FieldType { return TypeMultipleChoice }
func (ImageUpload) Type() FieldType    { return TypeImageUpload }
func (VideoUpload) Type() FieldType    { return TypeVideoUpload }
func (u Unknown) Type() FieldType      { return u.Name }

// DefaultKind returns the fresh attributes for a newly created or retyped field.
func DefaultKind(t FieldType) Kind {
	switch t {
	case TypeTextInput:
		return TextInput{}
	case TypeTextarea:
		return Textarea{}
	case TypeMultipleChoice:
		return MultipleChoice{Options: []string{""}}
	case TypeImageUpload:
		return ImageUpload{}
	case TypeVideoUpload:
		return VideoUpload{}
	default:
		return Unknown{Name: t}
	}
}

// Field is a single question of an application form.
type Field struct {
	ID       string
	Label    string
	Required bool
	Kind     Kind
}

func NewFieldID() string {
	return "field_" + uuid.NewString()
}

func (f Field) Type() FieldType {
	if f.Kind == nil {
		return ""
	}
	return f.Kind.Type()
}

// Options returns a copy of the choices of a multiple-choice field, nil otherwise.
func (f Field) Options() []string {
	if mc, ok := f.Kind.(MultipleChoice); ok {
		return slices.Clone(mc.Options)
	}
	return nil
}

// Placeholder reports the placeholder of a text field.
func (f Field) Placeholder() (string, bool) {
	switch k := f.Kind.(type) {
	case TextInput:
		return k.Placeholder, true
	case Textarea:
		return k.Placeholder, true
	}
	return "", false
}

func (f Field) clone() Field {
	if mc, ok := f.Kind.(MultipleChoice); ok {
		f.Kind = MultipleChoice{Options: slices.Clone(mc.Options)}
	}
	return f
}

type wireField struct {
	ID          string    `json:"id"`
	Type        FieldType `json:"type"`
	Label       string    `json:"label"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options,omitempty"`
	Placeholder *string   `json:"placeholder,omitempty"`
}

func (f Field) MarshalJSON() ([]byte, error) {
	w := wireField{
		ID:       f.ID,
		Type:     f.Type(),
		Label:    f.Label,
		Required: f.Required,
	}
	switch k := f.Kind.(type) {
	case TextInput:
		w.Placeholder = &k.Placeholder
	case Textarea:
		w.Placeholder = &k.Placeholder
	case MultipleChoice:
		w.Options = k.Options
	}
	return json.Marshal(w)
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var w wireField
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	f.ID = w.ID
	f.Label = w.Label
	f.Required = w.Required

	placeholder := ""
	if w.Placeholder != nil {
		placeholder = *w.Placeholder
	}

	switch w.Type {
	case TypeTextInput:
		f.Kind = TextInput{Placeholder: placeholder}
	case TypeTextarea:
		f.Kind = Textarea{Placeholder: placeholder}
	case TypeMultipleChoice:
		options := w.Options
		if options == nil {
			options = []string{}
		}
		f.Kind = MultipleChoice{Options: options}
	case TypeImageUpload:
		f.Kind = ImageUpload{}
	case TypeVideoUpload:
		f.Kind = VideoUpload{}
	default:
		f.Kind = Unknown{Name: w.Type}
	}
	return nil
}
