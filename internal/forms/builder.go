package forms

import (
	"errors"
	"slices"
)

var (
	ErrIndexOutOfRange = errors.New("forms: index out of range")
	ErrUnknownType     = errors.New("forms: unknown field type")
)

// Form is an ordered sequence of fields; order is display order. Every
// editing method leaves the receiver untouched and returns a new Form.
type Form []Field

func (f Form) clone() Form {
	out := make(Form, len(f))
	for i, field := range f {
		out[i] = field.clone()
	}
	return out
}

func (f Form) inRange(i int) bool {
	return i >= 0 && i < len(f)
}

// FieldUpdate carries the attributes to merge into a field. Nil members are
// left unchanged. A type change is applied first and resets the type
// specific attributes.
type FieldUpdate struct {
	Label       *string    `json:"label,omitempty" doc:"Question text"`
	Required    *bool      `json:"required,omitempty" doc:"Whether an answer is mandatory"`
	Type        *FieldType `json:"type,omitempty" enum:"text-input,textarea,multiple-choice,image-upload,video-upload" doc:"New field type"`
	Placeholder *string    `json:"placeholder,omitempty" doc:"Placeholder, text fields only"`
	Options     []string   `json:"options,omitempty" doc:"Choices, multiple-choice only"`
}

func (f Form) AddField(t FieldType) (Form, error) {
	if !t.Valid() {
		return f, ErrUnknownType
	}
	out := f.clone()
	out = append(out, Field{
		ID:   NewFieldID(),
		Kind: DefaultKind(t),
	})
	return out, nil
}

func (f Form) UpdateField(index int, u FieldUpdate) (Form, error) {
	if !f.inRange(index) {
		return f, ErrIndexOutOfRange
	}
	out := f.clone()
	field := out[index]

	if u.Type != nil && *u.Type != field.Type() {
		if !u.Type.Valid() {
			return f, ErrUnknownType
		}
		field = NormalizeOnTypeChange(field, *u.Type)
	}
	if u.Label != nil {
		field.Label = *u.Label
	}
	if u.Required != nil {
		field.Required = *u.Required
	}
	if u.Placeholder != nil {
		switch field.Kind.(type) {
		case TextInput:
			field.Kind = TextInput{Placeholder: *u.Placeholder}
		case Textarea:
			field.Kind = Textarea{Placeholder: *u.Placeholder}
		}
	}
	if u.Options != nil {
		if _, ok := field.Kind.(MultipleChoice); ok {
			field.Kind = MultipleChoice{Options: slices.Clone(u.Options)}
		}
	}

	out[index] = field
	return out, nil
}

func (f Form) RemoveField(index int) (Form, error) {
	if !f.inRange(index) {
		return f, ErrIndexOutOfRange
	}
	return slices.Delete(f.clone(), index, index+1), nil
}

// ReorderField removes the field at from and inserts it at to, where to is
// an index into the sequence that no longer contains the moved field.
func (f Form) ReorderField(from, to int) (Form, error) {
	if !f.inRange(from) || to < 0 || to > len(f)-1 {
		return f, ErrIndexOutOfRange
	}
	out := f.clone()
	moved := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, moved), nil
}

func (f Form) AddOption(index int) (Form, error) {
	return f.editOptions(index, func(opts []string) ([]string, error) {
		return append(opts, ""), nil
	})
}

func (f Form) UpdateOption(index, optIndex int, value string) (Form, error) {
	return f.editOptions(index, func(opts []string) ([]string, error) {
		if optIndex < 0 || optIndex >= len(opts) {
			return nil, ErrIndexOutOfRange
		}
		opts[optIndex] = value
		return opts, nil
	})
}

func (f Form) RemoveOption(index, optIndex int) (Form, error) {
	return f.editOptions(index, func(opts []string) ([]string, error) {
		if optIndex < 0 || optIndex >= len(opts) {
			return nil, ErrIndexOutOfRange
		}
		return slices.Delete(opts, optIndex, optIndex+1), nil
	})
}

// editOptions is a no-op for fields that are not multiple-choice.
func (f Form) editOptions(index int, edit func([]string) ([]string, error)) (Form, error) {
	if !f.inRange(index) {
		return f, ErrIndexOutOfRange
	}
	mc, ok := f[index].Kind.(MultipleChoice)
	if !ok {
		return f, nil
	}
	opts, err := edit(slices.Clone(mc.Options))
	if err != nil {
		return f, err
	}
	out := f.clone()
	out[index].Kind = MultipleChoice{Options: opts}
	return out, nil
}

// Builder holds a form being edited together with the drag gesture in
// progress, if any. It never persists anything.
type Builder struct {
	form     Form
	dragged  int
	dragging bool
}

func NewBuilder(form Form) *Builder {
	return &Builder{form: form.clone()}
}

func (b *Builder) Form() Form {
	return b.form.clone()
}

// Apply runs a Form edit and keeps its result when it succeeds.
func (b *Builder) Apply(edit func(Form) (Form, error)) error {
	next, err := edit(b.form)
	if err != nil {
		return err
	}
	b.form = next
	return nil
}

func (b *Builder) StartDrag(index int) error {
	if !b.form.inRange(index) {
		return ErrIndexOutOfRange
	}
	b.dragged = index
	b.dragging = true
	return nil
}

func (b *Builder) Dragging() (int, bool) {
	return b.dragged, b.dragging
}

func (b *Builder) CancelDrag() {
	b.dragging = false
	b.dragged = 0
}

// Drop moves the dragged field to target. Without an active drag it does
// nothing; the drag is cleared whether or not the move succeeds.
func (b *Builder) Drop(target int) error {
	if !b.dragging {
		return nil
	}
	from := b.dragged
	b.CancelDrag()
	return b.Apply(func(f Form) (Form, error) {
		return f.ReorderField(from, target)
	})
}
