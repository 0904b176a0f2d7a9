package forms

import (
	"embed"
	"html/template"
	"io"
	"regexp"
)

// DefaultColor is the accent used when a workshop has no form color.
const DefaultColor = "#3B82F6"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

// Color returns c when it is a hex color and DefaultColor otherwise.
func Color(c string) string {
	if hexColor.MatchString(c) {
		return c
	}
	return DefaultColor
}

// Control is the render model of one field.
type Control struct {
	ID          string
	Label       string
	Required    bool
	Type        FieldType
	Input       string
	Placeholder string
	Options     []string
	Accept      string
	Value       string
	Error       string
	Disabled    bool
}

// controlFor reports false for fields that must not be rendered.
func controlFor(f Field) (Control, bool) {
	c := Control{
		ID:       f.ID,
		Label:    f.Label,
		Required: f.Required,
		Type:     f.Type(),
	}
	switch k := f.Kind.(type) {
	case TextInput:
		c.Input = "text"
		c.Placeholder = k.Placeholder
	case Textarea:
		c.Input = "textarea"
		c.Placeholder = k.Placeholder
	case MultipleChoice:
		c.Input = "radio"
		c.Options = k.Options
	case ImageUpload:
		c.Input = "file"
		c.Accept = "image/*"
	case VideoUpload:
		c.Input = "file"
		c.Accept = "video/*"
	default:
		return Control{}, false
	}
	return c, true
}

// Preview returns disabled controls describing what the form will ask.
func Preview(form Form) []Control {
	controls := make([]Control, 0, len(form))
	for _, f := range form {
		c, ok := controlFor(f)
		if !ok {
			continue
		}
		c.Disabled = true
		controls = append(controls, c)
	}
	return controls
}

type previewView struct {
	Color    string
	Controls []Control
}

func RenderPreview(w io.Writer, form Form, color string) error {
	return templates.ExecuteTemplate(w, "preview", previewView{
		Color:    Color(color),
		Controls: Preview(form),
	})
}

// Answer pairs a field with the stored response, for reviewing submissions.
type Answer struct {
	Field Field
	Value any
}

// Answers joins stored responses with the form in display order. Responses
// for fields no longer on the form are dropped.
func Answers(form Form, responses Responses) []Answer {
	answers := make([]Answer, 0, len(form))
	for _, f := range form {
		if _, ok := controlFor(f); !ok {
			continue
		}
		answers = append(answers, Answer{Field: f, Value: responses[f.ID]})
	}
	return answers
}
