package forms

import (
	"fmt"
	"strings"
)

// ValidateField reports whether a field is structurally well formed. Labels
// may still be empty here; see ValidateForPublish.
func ValidateField(f Field) bool {
	return f.ID != "" && f.Type().Valid()
}

// NormalizeOnTypeChange switches the field to newType, resetting every
// type specific attribute. Previous options are never carried over.
func NormalizeOnTypeChange(f Field, newType FieldType) Field {
	f.Kind = DefaultKind(newType)
	return f
}

type Problem struct {
	Index   int    `json:"index"`
	FieldID string `json:"field_id"`
	Message string `json:"message"`
}

// Problems is returned by ValidateForPublish when a form cannot go live.
type Problems []Problem

func (p Problems) Error() string {
	msgs := make([]string, 0, len(p))
	for _, pr := range p {
		msgs = append(msgs, fmt.Sprintf("field %d: %s", pr.Index+1, pr.Message))
	}
	return "form is not ready to publish: " + strings.Join(msgs, "; ")
}

// ValidateForPublish applies the policy a form must satisfy before its
// workshop is published: known types, non-empty labels and at least one
// usable option for multiple-choice questions.
func ValidateForPublish(form Form) error {
	var problems Problems
	for i, f := range form {
		if !ValidateField(f) {
			problems = append(problems, Problem{Index: i, FieldID: f.ID, Message: fmt.Sprintf("unsupported field type %q", f.Type())})
			continue
		}
		if strings.TrimSpace(f.Label) == "" {
			problems = append(problems, Problem{Index: i, FieldID: f.ID, Message: "label is required"})
		}
		if mc, ok := f.Kind.(MultipleChoice); ok {
			usable := false
			for _, o := range mc.Options {
				if strings.TrimSpace(o) != "" {
					usable = true
					break
				}
			}
			if !usable {
				problems = append(problems, Problem{Index: i, FieldID: f.ID, Message: "multiple choice needs at least one option"})
			}
		}
	}
	if len(problems) > 0 {
		return problems
	}
	return nil
}
