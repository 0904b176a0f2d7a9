package handlers

import (
	"context"
	"mime/multipart"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"github.com/gdg-garage/garage-workshops/internal/services"
	"go.uber.org/zap"
)

type WorkshopHandler struct {
	workshops *services.WorkshopService
	log       *zap.Logger
}

func NewWorkshopHandler(workshops *services.WorkshopService, log *zap.Logger) *WorkshopHandler {
	return &WorkshopHandler{workshops: workshops, log: log.Named("workshops")}
}

type WorkshopIDInput struct {
	ID string `path:"id" doc:"Workshop id"`
}

type ListWorkshopsInput struct {
	Limit  int `query:"limit" minimum:"0" maximum:"100" doc:"Page size, defaults to 20"`
	Offset int `query:"offset" minimum:"0" doc:"Number of workshops to skip"`
}

type SearchWorkshopsInput struct {
	Query    string `query:"q" doc:"Matched against the title"`
	Category string `query:"category" doc:"Exact category"`
	Limit    int    `query:"limit" minimum:"0" maximum:"100"`
}

type WorkshopRequest struct {
	Body services.WorkshopInput
}

type UpdateWorkshopRequest struct {
	ID   string `path:"id"`
	Body services.WorkshopInput
}

type ImageRequest struct {
	ID      string `path:"id"`
	RawBody multipart.Form
}

type WorkshopResponse struct {
	Body models.Workshop
}

type WorkshopPageResponse struct {
	Body services.WorkshopPage
}

type WorkshopListResponse struct {
	Body []models.Workshop
}

type MasterDashboardResponse struct {
	Body services.MasterDashboard
}

func (h *WorkshopHandler) HandleList(ctx context.Context, input *ListWorkshopsInput) (*WorkshopPageResponse, error) {
	page, err := h.workshops.ListPublished(ctx, input.Limit, input.Offset)
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopPageResponse{Body: page}, nil
}

func (h *WorkshopHandler) HandleSearch(ctx context.Context, input *SearchWorkshopsInput) (*WorkshopPageResponse, error) {
	page, err := h.workshops.Search(ctx, input.Query, input.Category, input.Limit)
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopPageResponse{Body: page}, nil
}

func (h *WorkshopHandler) HandleGet(ctx context.Context, input *WorkshopIDInput) (*WorkshopResponse, error) {
	w, err := h.workshops.Get(ctx, access.FromContext(ctx), input.ID)
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopResponse{Body: w}, nil
}

func (h *WorkshopHandler) HandleMine(ctx context.Context, input *struct{}) (*WorkshopListResponse, error) {
	list, err := h.workshops.ListByMaster(ctx, access.FromContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopListResponse{Body: list}, nil
}

func (h *WorkshopHandler) HandleCreate(ctx context.Context, input *WorkshopRequest) (*WorkshopResponse, error) {
	w, err := h.workshops.Create(ctx, access.FromContext(ctx), input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopResponse{Body: w}, nil
}

func (h *WorkshopHandler) HandleUpdate(ctx context.Context, input *UpdateWorkshopRequest) (*WorkshopResponse, error) {
	w, err := h.workshops.Update(ctx, access.FromContext(ctx), input.ID, input.Body)
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopResponse{Body: w}, nil
}

func (h *WorkshopHandler) HandlePublish(ctx context.Context, input *WorkshopIDInput) (*WorkshopResponse, error) {
	return h.status(ctx, input.ID, h.workshops.Publish)
}

func (h *WorkshopHandler) HandleUnpublish(ctx context.Context, input *WorkshopIDInput) (*WorkshopResponse, error) {
	return h.status(ctx, input.ID, h.workshops.Unpublish)
}

func (h *WorkshopHandler) HandleCancel(ctx context.Context, input *WorkshopIDInput) (*WorkshopResponse, error) {
	return h.status(ctx, input.ID, h.workshops.Cancel)
}

func (h *WorkshopHandler) status(ctx context.Context, id string, change func(context.Context, access.Viewer, string) (models.Workshop, error)) (*WorkshopResponse, error) {
	w, err := change(ctx, access.FromContext(ctx), id)
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopResponse{Body: w}, nil
}

func (h *WorkshopHandler) HandleDelete(ctx context.Context, input *WorkshopIDInput) (*struct{}, error) {
	if err := h.workshops.Delete(ctx, access.FromContext(ctx), input.ID); err != nil {
		return nil, apiError(err)
	}
	return nil, nil
}

func (h *WorkshopHandler) HandleImage(ctx context.Context, input *ImageRequest) (*WorkshopResponse, error) {
	files := input.RawBody.File["image"]
	if len(files) == 0 {
		return nil, huma.Error422UnprocessableEntity("Please upload an image file", &huma.ErrorDetail{
			Location: "body.image",
			Message:  "is required",
		})
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, huma.Error400BadRequest("Failed to read upload")
	}
	defer f.Close()

	w, err := h.workshops.SetImage(ctx, access.FromContext(ctx), input.ID, files[0].Filename, f)
	if err != nil {
		return nil, apiError(err)
	}
	return &WorkshopResponse{Body: w}, nil
}

func (h *WorkshopHandler) HandleDashboard(ctx context.Context, input *struct{}) (*MasterDashboardResponse, error) {
	d, err := h.workshops.MasterDashboard(ctx, access.FromContext(ctx))
	if err != nil {
		return nil, apiError(err)
	}
	return &MasterDashboardResponse{Body: d}, nil
}
