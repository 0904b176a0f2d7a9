package forms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"slices"
	"sync"
)

// SubmitFailedMessage is the only text shown when storing a submission fails.
const SubmitFailedMessage = "Failed to submit application. Please try again."

var (
	ErrInvalidSubmission = errors.New("forms: submission has invalid fields")
	ErrSubmitInFlight    = errors.New("forms: submission already in progress")
)

// SubmitFunc stores the collected responses.
type SubmitFunc func(ctx context.Context, responses Responses) error

// Submission is the interactive state of one form being filled in: the
// values entered so far, per-field errors and the busy flag that prevents
// a second submit while the first is outstanding.
type Submission struct {
	form Form

	mu      sync.Mutex
	values  Responses
	errors  map[string]string
	message string
	busy    bool
}

func NewSubmission(form Form) *Submission {
	return &Submission{
		form:   form,
		values: Responses{},
		errors: map[string]string{},
	}
}

func (s *Submission) Set(fieldID string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[fieldID] = value
	delete(s.errors, fieldID)
}

// Bind captures posted values. Upload fields record the chosen file's name
// only; the file itself is not stored.
func (s *Submission) Bind(values url.Values, files map[string][]*multipart.FileHeader) {
	for _, f := range s.form {
		switch f.Kind.(type) {
		case TextInput, Textarea, MultipleChoice:
			if vs, ok := values[f.ID]; ok && len(vs) > 0 {
				s.Set(f.ID, vs[0])
			}
		case ImageUpload, VideoUpload:
			if fhs := files[f.ID]; len(fhs) > 0 && fhs[0].Filename != "" {
				s.Set(f.ID, fhs[0].Filename)
			}
		}
	}
}

// Responses returns a copy of the captured values.
func (s *Submission) Responses() Responses {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Responses, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Submission) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

func (s *Submission) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

func (s *Submission) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Validate recomputes the per-field errors. Values are never cleared.
func (s *Submission) Validate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = ValidateResponses(s.form, s.values)
	return len(s.errors) == 0
}

// ValidateResponses checks responses against the form and returns error
// messages keyed by field id.
func ValidateResponses(form Form, responses Responses) map[string]string {
	errs := map[string]string{}
	for _, f := range form {
		if _, ok := controlFor(f); !ok {
			continue
		}
		v, present := responses[f.ID]
		if f.Required && (!present || isEmpty(v)) {
			errs[f.ID] = fmt.Sprintf("%s is required", f.Label)
			continue
		}
		if mc, ok := f.Kind.(MultipleChoice); ok && present && !isEmpty(v) {
			choice, isString := v.(string)
			if !isString || !slices.Contains(mc.Options, choice) {
				errs[f.ID] = fmt.Sprintf("%s: invalid option", f.Label)
			}
		}
	}
	return errs
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// Submit validates and hands the responses to fn exactly once. Invalid
// input never reaches fn. When fn fails the entered values stay in place
// and Message reports SubmitFailedMessage.
func (s *Submission) Submit(ctx context.Context, fn SubmitFunc) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrSubmitInFlight
	}
	s.busy = true
	s.message = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if !s.Validate() {
		return ErrInvalidSubmission
	}

	if err := fn(ctx, s.Responses()); err != nil {
		s.mu.Lock()
		s.message = SubmitFailedMessage
		s.mu.Unlock()
		return err
	}
	return nil
}

type submissionView struct {
	Action   string
	Color    string
	Message  string
	Busy     bool
	Controls []Control
}

// Render writes the interactive form, repopulated with entered values and
// any errors.
func (s *Submission) Render(w io.Writer, action, color string) error {
	s.mu.Lock()
	view := submissionView{
		Action:  action,
		Color:   Color(color),
		Message: s.message,
		Busy:    s.busy,
	}
	for _, f := range s.form {
		c, ok := controlFor(f)
		if !ok {
			continue
		}
		if v, ok := s.values[f.ID].(string); ok {
			c.Value = v
		}
		c.Error = s.errors[f.ID]
		view.Controls = append(view.Controls, c)
	}
	s.mu.Unlock()

	return templates.ExecuteTemplate(w, "submission", view)
}
