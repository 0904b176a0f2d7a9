package handlers

import (
	"context"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/forms"
	"github.com/gdg-garage/garage-workshops/internal/services"
)

// FormHandler exposes the builder operations on a workshop's application
// form. Each request is one builder edit persisted on success.
type FormHandler struct {
	workshops *services.WorkshopService
}

func NewFormHandler(workshops *services.WorkshopService) *FormHandler {
	return &FormHandler{workshops: workshops}
}

type AddFieldRequest struct {
	ID   string `path:"id"`
	Body struct {
		Type forms.FieldType `json:"type" enum:"text-input,textarea,multiple-choice,image-upload,video-upload" doc:"Type of the new field"`
	}
}

type FieldRequest struct {
	ID    string `path:"id"`
	Index int    `path:"index" doc:"Position of the field in the form"`
}

type UpdateFieldRequest struct {
	ID    string `path:"id"`
	Index int    `path:"index"`
	Body  forms.FieldUpdate
}

type ReorderRequest struct {
	ID   string `path:"id"`
	Body struct {
		From int `json:"from" minimum:"0" doc:"Position of the dragged field"`
		To   int `json:"to" minimum:"0" doc:"Position it is dropped at"`
	}
}

type OptionRequest struct {
	ID     string `path:"id"`
	Index  int    `path:"index"`
	Option int    `path:"opt" doc:"Position of the option"`
}

type UpdateOptionRequest struct {
	ID     string `path:"id"`
	Index  int    `path:"index"`
	Option int    `path:"opt"`
	Body   struct {
		Value string `json:"value" doc:"Option text"`
	}
}

func (h *FormHandler) edit(ctx context.Context, id string, edit func(*forms.Builder) error) (*WorkshopResponse, error) {
	w, err := h.workshops.UpdateForm(ctx, access.FromContext(ctx), id, edit)
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopResponse{Body: w}, nil
}

// apply adapts a Form edit to the builder.
func apply(edit func(forms.Form) (forms.Form, error)) func(*forms.Builder) error {
	return func(b *forms.Builder) error {
		return b.Apply(edit)
	}
}

func (h *FormHandler) HandleAddField(ctx context.Context, input *AddFieldRequest) (*WorkshopResponse, error) {
	return h.edit(ctx, input.ID, apply(func(f forms.Form) (forms.Form, error) {
		return f.AddField(input.Body.Type)
	}))
}

func (h *FormHandler) HandleUpdateField(ctx context.Context, input *UpdateFieldRequest) (*WorkshopResponse, error) {
	return h.edit(ctx, input.ID, apply(func(f forms.Form) (forms.Form, error) {
		return f.UpdateField(input.Index, input.Body)
	}))
}

func (h *FormHandler) HandleRemoveField(ctx context.Context, input *FieldRequest) (*WorkshopResponse, error) {
	return h.edit(ctx, input.ID, apply(func(f forms.Form) (forms.Form, error) {
		return f.RemoveField(input.Index)
	}))
}

// HandleReorder replays a drag gesture: pick up From, drop at To.
func (h *FormHandler) HandleReorder(ctx context.Context, input *ReorderRequest) (*WorkshopResponse, error) {
	return h.edit(ctx, input.ID, func(b *forms.Builder) error {
		if err := b.StartDrag(input.Body.From); err != nil {
			return err
		}
		return b.Drop(input.Body.To)
	})
}

func (h *FormHandler) HandleAddOption(ctx context.Context, input *FieldRequest) (*WorkshopResponse, error) {
	return h.edit(ctx, input.ID, apply(func(f forms.Form) (forms.Form, error) {
		return f.AddOption(input.Index)
	}))
}

func (h *FormHandler) HandleUpdateOption(ctx context.Context, input *UpdateOptionRequest) (*WorkshopResponse, error) {
	return h.edit(ctx, input.ID, apply(func(f forms.Form) (forms.Form, error) {
		return f.UpdateOption(input.Index, input.Option, input.Body.Value)
	}))
}

func (h *FormHandler) HandleRemoveOption(ctx context.Context, input *OptionRequest) (*WorkshopResponse, error) {
	return h.edit(ctx, input.ID, apply(func(f forms.Form) (forms.Form, error) {
		return f.RemoveOption(input.Index, input.Option)
	}))
}

